// Package projectconfig provides the ProjectConfig struct and loader for
// .vulntune.yaml project-level configuration files.
package projectconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Default values for project configuration. These are the single source of
// truth: New() references them and no other code should duplicate them.
const (
	DefaultRunsDir = "runs"

	DefaultRunPrefix = "run_"
	DefaultBaseModel = "mlx-community/Llama-3.2-3B-Instruct-4bit"

	DefaultTrainCommand = "mlx_lm.lora"
	DefaultTrainIters   = 600
	DefaultTrainBatch   = 4

	DefaultArchiveBucket = "vulntune-runs"
	DefaultArchivePrefix = "snapshots/"
)

// PathsConfig holds directory paths for the run store.
type PathsConfig struct {
	Runs string `yaml:"runs,omitempty"`
}

// RunsConfig holds run creation settings.
type RunsConfig struct {
	Prefix    string `yaml:"prefix,omitempty"`
	BaseModel string `yaml:"base_model,omitempty"`
}

// TrainingConfig holds the training subprocess settings.
type TrainingConfig struct {
	Command      string   `yaml:"command,omitempty"`
	ExtraArgs    []string `yaml:"extra_args,omitempty"`
	Iters        int      `yaml:"iters,omitempty"`
	BatchSize    int      `yaml:"batch_size,omitempty"`
	LearningRate float64  `yaml:"learning_rate,omitempty"`
	NumLayers    int      `yaml:"num_layers,omitempty"`
}

// ConvertConfig holds adapter conversion settings. HubMappings maps local
// MLX model names to their Hugging Face Hub identifiers.
type ConvertConfig struct {
	HubMappings map[string]string `yaml:"hub_mappings,omitempty"`
}

// ArchiveConfig holds object storage settings for run snapshots.
// Credentials come from the environment, never from this file.
type ArchiveConfig struct {
	Endpoint string `yaml:"endpoint,omitempty"`
	Bucket   string `yaml:"bucket,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
	UseSSL   *bool  `yaml:"use_ssl,omitempty"`
}

// ProjectConfig is the top-level configuration loaded from .vulntune.yaml.
type ProjectConfig struct {
	Paths    PathsConfig    `yaml:"paths,omitempty"`
	Runs     RunsConfig     `yaml:"runs,omitempty"`
	Training TrainingConfig `yaml:"training,omitempty"`
	Convert  ConvertConfig  `yaml:"convert,omitempty"`
	Archive  ArchiveConfig  `yaml:"archive,omitempty"`
}

// New returns a ProjectConfig with all hard-coded defaults populated.
func New() *ProjectConfig {
	return &ProjectConfig{
		Paths: PathsConfig{
			Runs: DefaultRunsDir,
		},
		Runs: RunsConfig{
			Prefix:    DefaultRunPrefix,
			BaseModel: DefaultBaseModel,
		},
		Training: TrainingConfig{
			Command:   DefaultTrainCommand,
			Iters:     DefaultTrainIters,
			BatchSize: DefaultTrainBatch,
		},
		Archive: ArchiveConfig{
			Bucket: DefaultArchiveBucket,
			Prefix: DefaultArchivePrefix,
			UseSSL: boolPtr(true),
		},
	}
}

// Load finds .vulntune.yaml by walking up from startDir (max 10 levels),
// unmarshals it, and fills in missing fields with defaults.
// If no config file is found, returns defaults with a nil error.
// Real I/O errors (e.g. permission denied) are returned to the caller.
func Load(startDir string) (*ProjectConfig, error) {
	cfg := New()

	data, err := findConfigFile(startDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil // no file found → return defaults
		}
		return nil, fmt.Errorf("loading .vulntune.yaml: %w", err)
	}

	var fileCfg ProjectConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing .vulntune.yaml: %w", err)
	}

	mergeConfig(cfg, &fileCfg)
	return cfg, nil
}

// findConfigFile walks up from dir looking for .vulntune.yaml (max 10
// levels). Returns os.ErrNotExist if no config file is found. Propagates
// real I/O errors (e.g. permission denied) instead of silently swallowing
// them.
func findConfigFile(dir string) ([]byte, error) {
	// Convert to absolute path so filepath.Dir(".") walks correctly.
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for i := 0; i < 10; i++ {
		p := filepath.Join(dir, ".vulntune.yaml")
		data, err := os.ReadFile(p)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}
	return nil, os.ErrNotExist
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	// Paths
	if src.Paths.Runs != "" {
		dst.Paths.Runs = src.Paths.Runs
	}

	// Runs
	if src.Runs.Prefix != "" {
		dst.Runs.Prefix = src.Runs.Prefix
	}
	if src.Runs.BaseModel != "" {
		dst.Runs.BaseModel = src.Runs.BaseModel
	}

	// Training
	if src.Training.Command != "" {
		dst.Training.Command = src.Training.Command
	}
	if len(src.Training.ExtraArgs) > 0 {
		dst.Training.ExtraArgs = src.Training.ExtraArgs
	}
	if src.Training.Iters != 0 {
		dst.Training.Iters = src.Training.Iters
	}
	if src.Training.BatchSize != 0 {
		dst.Training.BatchSize = src.Training.BatchSize
	}
	if src.Training.LearningRate != 0 {
		dst.Training.LearningRate = src.Training.LearningRate
	}
	if src.Training.NumLayers != 0 {
		dst.Training.NumLayers = src.Training.NumLayers
	}

	// Convert
	if len(src.Convert.HubMappings) > 0 {
		dst.Convert.HubMappings = src.Convert.HubMappings
	}

	// Archive
	if src.Archive.Endpoint != "" {
		dst.Archive.Endpoint = src.Archive.Endpoint
	}
	if src.Archive.Bucket != "" {
		dst.Archive.Bucket = src.Archive.Bucket
	}
	if src.Archive.Prefix != "" {
		dst.Archive.Prefix = src.Archive.Prefix
	}
	if src.Archive.UseSSL != nil {
		dst.Archive.UseSSL = src.Archive.UseSSL
	}
}

func boolPtr(b bool) *bool {
	return &b
}
