package run

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/vulntune/vulntune/internal/artifact"
)

// ErrNotFound reports that no run directory exists for the requested id.
var ErrNotFound = errors.New("run not found")

// ErrNoManifest reports that a manifest was never created or loaded for
// the run.
var ErrNoManifest = errors.New("no manifest loaded for run")

// ErrNoCompletedRuns reports that discovery found no run whose final model
// has materialized.
var ErrNoCompletedRuns = errors.New("no completed training runs found")

// MissingStageError reports that the manifest never declared the stage.
type MissingStageError struct {
	RunID string
	Stage int
}

func (e *MissingStageError) Error() string {
	return fmt.Sprintf("run %s: stage %d is not declared in the manifest", e.RunID, e.Stage)
}

// UnknownDatasetError reports a named-dataset lookup that matched nothing;
// it lists the declared keys so the caller can see what was available.
type UnknownDatasetError struct {
	RunID    string
	Stage    int
	Name     string
	Declared []string
}

func (e *UnknownDatasetError) Error() string {
	declared := append([]string(nil), e.Declared...)
	sort.Strings(declared)
	return fmt.Sprintf("run %s: stage %d has no dataset %q (declared: %s)",
		e.RunID, e.Stage, e.Name, strings.Join(declared, ", "))
}

// ValidationError reports that a declared artifact path exists as a concept
// but the files at that path are missing or empty.
type ValidationError struct {
	Dir     string
	Kind    artifact.Kind
	Missing []string
	Empty   []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Empty) > 0 {
		parts = append(parts, "empty: "+strings.Join(e.Empty, ", "))
	}
	return fmt.Sprintf("%s is not a valid %s (%s)", e.Dir, e.Kind, strings.Join(parts, "; "))
}
