// Package peft converts a trained MLX-style LoRA adapter into the
// PEFT-style layout expected by the model hub: tensor names are re-keyed
// under the PEFT naming convention and a PEFT adapter_config.json is
// synthesized from the source hyperparameters. Numeric tensor content is
// carried over byte for byte.
package peft

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vulntune/vulntune/internal/artifact"
	"github.com/vulntune/vulntune/internal/safetensors"
)

// Source and target file names.
const (
	SourceWeightsFile = "adapters.safetensors"
	ConfigFile        = "adapter_config.json"
	TargetWeightsFile = "adapter_model.safetensors"
	CardFile          = "README.md"
)

// Tensor naming conventions. The source format names low-rank matrices
// `<module>.lora_a` / `<module>.lora_b`; PEFT expects a `base_model.` root
// prefix and `.lora_A.weight` / `.lora_B.weight` suffixes. Only the prefix
// and the trailing suffix are touched, so layer/module addressing survives
// the rename byte-identical.
const (
	rootPrefix    = "base_model."
	sourceSuffixA = ".lora_a"
	sourceSuffixB = ".lora_b"
	targetSuffixA = ".lora_A.weight"
	targetSuffixB = ".lora_B.weight"
)

// targetModules is the fixed module list emitted in every synthesized
// config. The source format does not persist per-module targeting, so the
// standard attention/MLP projections are declared unconditionally.
var targetModules = []string{
	"q_proj", "k_proj", "v_proj", "o_proj",
	"gate_proj", "up_proj", "down_proj",
}

// ErrSourceNotFound reports a missing source weight or config file,
// detected before any parsing begins.
var ErrSourceNotFound = errors.New("adapter source not found")

// ErrPostValidation reports that the converted output failed structure
// validation after a nominally successful write. This indicates a logic
// bug in the conversion itself; it is checked anyway because silent
// corruption is worse than a loud failure.
var ErrPostValidation = errors.New("converted adapter failed post-validation")

// ConversionError wraps a lower-level parse or serialize failure.
type ConversionError struct {
	Op  string
	Err error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("converting adapter (%s): %v", e.Op, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// SourceConfig is the hyperparameter file the training subprocess leaves
// beside the adapter weights.
type SourceConfig struct {
	Model        string  `json:"model"`
	FineTuneType string  `json:"fine_tune_type"`
	NumLayers    int     `json:"num_layers"`
	Iters        int     `json:"iters"`
	LearningRate float64 `json:"learning_rate"`
	BatchSize    int     `json:"batch_size"`

	LoraParameters struct {
		Rank    int     `json:"rank"`
		Scale   float64 `json:"scale"`
		Dropout float64 `json:"dropout"`
	} `json:"lora_parameters"`
}

// TargetConfig is the synthesized PEFT adapter_config.json.
type TargetConfig struct {
	BaseModelNameOrPath string   `json:"base_model_name_or_path"`
	BiasMode            string   `json:"bias"`
	InferenceMode       bool     `json:"inference_mode"`
	LoraAlpha           float64  `json:"lora_alpha"`
	LoraDropout         float64  `json:"lora_dropout"`
	PeftType            string   `json:"peft_type"`
	R                   int      `json:"r"`
	TargetModules       []string `json:"target_modules"`
	TaskType            string   `json:"task_type"`
}

// Converter rewrites adapters from the source convention to PEFT.
// Mappings extends the built-in local-name → canonical-id table used for
// base_model_name_or_path.
type Converter struct {
	Mappings map[string]string
}

// Convert rewrites the adapter in srcDir into dstDir, failing if the
// source files are absent. baseModelPath is the local directory (or id)
// of the model the adapter was trained on.
func (c *Converter) Convert(srcDir, dstDir, baseModelPath string) error {
	for _, name := range []string{SourceWeightsFile, ConfigFile} {
		if _, err := os.Stat(filepath.Join(srcDir, name)); err != nil {
			return fmt.Errorf("%w: %s", ErrSourceNotFound, filepath.Join(srcDir, name))
		}
	}

	cfgBytes, err := os.ReadFile(filepath.Join(srcDir, ConfigFile))
	if err != nil {
		return &ConversionError{Op: "reading source config", Err: err}
	}
	var src SourceConfig
	if err := json.Unmarshal(cfgBytes, &src); err != nil {
		return &ConversionError{Op: "parsing source config", Err: err}
	}

	sf, err := safetensors.Open(filepath.Join(srcDir, SourceWeightsFile))
	if err != nil {
		return &ConversionError{Op: "opening source weights", Err: err}
	}
	defer sf.Close() //nolint:errcheck

	var tensors []safetensors.Tensor
	for _, name := range sf.ListTensors() {
		t, err := sf.GetTensor(name)
		if err != nil {
			return &ConversionError{Op: "reading tensor", Err: err}
		}
		t.Name = renameTensor(name)
		tensors = append(tensors, t)
	}

	if err := os.MkdirAll(dstDir, 0755); err != nil {
		return &ConversionError{Op: "creating output directory", Err: err}
	}
	if err := safetensors.Write(filepath.Join(dstDir, TargetWeightsFile), tensors, sf.Metadata()); err != nil {
		return &ConversionError{Op: "writing converted weights", Err: err}
	}

	target := TargetConfig{
		BaseModelNameOrPath: c.baseModelID(baseModelPath),
		BiasMode:            "none",
		InferenceMode:       true,
		LoraAlpha:           src.LoraParameters.Scale,
		LoraDropout:         src.LoraParameters.Dropout,
		PeftType:            "LORA",
		R:                   src.LoraParameters.Rank,
		TargetModules:       targetModules,
		TaskType:            "CAUSAL_LM",
	}
	targetBytes, err := json.MarshalIndent(&target, "", "  ")
	if err != nil {
		return &ConversionError{Op: "encoding target config", Err: err}
	}
	if err := os.WriteFile(filepath.Join(dstDir, ConfigFile), append(targetBytes, '\n'), 0644); err != nil {
		return &ConversionError{Op: "writing target config", Err: err}
	}

	card := cardData{
		AdapterName:  filepath.Base(dstDir),
		BaseModel:    target.BaseModelNameOrPath,
		Rank:         target.R,
		Alpha:        target.LoraAlpha,
		Dropout:      target.LoraDropout,
		Iters:        src.Iters,
		LearningRate: src.LearningRate,
	}
	if err := writeCard(filepath.Join(dstDir, CardFile), card); err != nil {
		return &ConversionError{Op: "writing model card", Err: err}
	}

	return c.postValidate(dstDir)
}

// ConvertOrPassthrough behaves like Convert, except that a missing source
// adapter is not an error: the input directory is returned untouched so
// the caller can publish it as-is. Any other failure is still fatal. The
// returned path is the directory to publish.
func (c *Converter) ConvertOrPassthrough(srcDir, dstDir, baseModelPath string) (string, error) {
	err := c.Convert(srcDir, dstDir, baseModelPath)
	if errors.Is(err, ErrSourceNotFound) {
		return srcDir, nil
	}
	if err != nil {
		return "", err
	}
	return dstDir, nil
}

// postValidate independently re-checks the output directory structure and
// the generated card.
func (c *Converter) postValidate(dstDir string) error {
	report, err := artifact.Validate(dstDir, artifact.KindPEFTAdapter)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPostValidation, err)
	}
	if !report.Valid {
		return fmt.Errorf("%w: missing %v, empty %v", ErrPostValidation, report.Missing, report.Empty)
	}

	cardBytes, err := os.ReadFile(filepath.Join(dstDir, CardFile))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPostValidation, err)
	}
	if err := verifyCard(cardBytes); err != nil {
		return fmt.Errorf("%w: %v", ErrPostValidation, err)
	}
	return nil
}

// renameTensor maps one source tensor name to its PEFT name. Total over
// the naming domain: names without a recognized suffix keep their suffix,
// and the root prefix is never doubled.
func renameTensor(name string) string {
	if !strings.HasPrefix(name, rootPrefix) {
		name = rootPrefix + name
	}
	switch {
	case strings.HasSuffix(name, sourceSuffixA):
		return strings.TrimSuffix(name, sourceSuffixA) + targetSuffixA
	case strings.HasSuffix(name, sourceSuffixB):
		return strings.TrimSuffix(name, sourceSuffixB) + targetSuffixB
	default:
		return name
	}
}
