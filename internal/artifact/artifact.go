// Package artifact validates the on-disk structure of training artifacts.
// A directory is checked against a fixed required-file set for its kind;
// content is never parsed, so validation stays cheap and side-effect free.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
)

// Kind identifies the structure an artifact directory must satisfy.
type Kind string

const (
	// KindLoRAAdapter is a trained low-rank adapter as the training
	// subprocess leaves it on disk.
	KindLoRAAdapter Kind = "lora-adapter"

	// KindFusedModel is a complete checkpoint with adapter weights merged
	// into the base weights.
	KindFusedModel Kind = "fused-model"

	// KindPEFTAdapter is the converted, upload-ready adapter layout.
	KindPEFTAdapter Kind = "peft-adapter"
)

// requiredFiles maps each kind to the files that must exist and be non-empty.
var requiredFiles = map[Kind][]string{
	KindLoRAAdapter: {"adapters.safetensors", "adapter_config.json"},
	KindFusedModel:  {"config.json", "model.safetensors", "tokenizer.json"},
	KindPEFTAdapter: {"adapter_model.safetensors", "adapter_config.json"},
}

// RequiredFiles returns the required-file set for a kind, or nil for an
// unknown kind.
func RequiredFiles(kind Kind) []string {
	files, ok := requiredFiles[kind]
	if !ok {
		return nil
	}
	out := make([]string, len(files))
	copy(out, files)
	return out
}

// Report is the result of validating one directory against one kind.
type Report struct {
	Valid   bool     `json:"valid"`
	Missing []string `json:"missing,omitempty"`
	Empty   []string `json:"empty,omitempty"`
}

// Validate checks dir against the required-file set for kind. A file counts
// as empty only when its size is exactly zero. Callers that need
// content-level guarantees must parse the files themselves.
//
// The kind is never guessed: a directory that happens to satisfy several
// kinds is validated only against the one the caller names.
func Validate(dir string, kind Kind) (Report, error) {
	files, ok := requiredFiles[kind]
	if !ok {
		return Report{}, fmt.Errorf("unknown artifact kind %q", kind)
	}

	report := Report{Valid: true}
	for _, name := range files {
		fi, err := os.Stat(filepath.Join(dir, name))
		switch {
		case err != nil:
			report.Missing = append(report.Missing, name)
			report.Valid = false
		case fi.IsDir():
			report.Missing = append(report.Missing, name)
			report.Valid = false
		case fi.Size() == 0:
			report.Empty = append(report.Empty, name)
			report.Valid = false
		}
	}
	return report, nil
}
