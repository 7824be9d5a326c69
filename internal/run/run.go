// Package run manages training-run directories: the lazily validated
// TrainingRun handle and the Manager that creates, discovers and prunes
// runs under a shared root.
package run

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vulntune/vulntune/internal/artifact"
	"github.com/vulntune/vulntune/internal/manifest"
)

// FinalWeightFile is the weight file whose presence under the declared
// final-model path marks a run as complete.
const FinalWeightFile = "model.safetensors"

// TrainingRun is an in-memory handle bound to one run directory. It owns
// exactly one cached manifest; the cache is invalidated only by an explicit
// Reload, never automatically. A run directory is assumed to have a single
// writer for its lifetime.
type TrainingRun struct {
	root     string
	manifest *manifest.RunManifest
}

// New binds a handle to a run directory without touching the filesystem.
func New(root string) *TrainingRun {
	return &TrainingRun{root: root}
}

// Root returns the absolute run directory.
func (r *TrainingRun) Root() string {
	return r.root
}

// ID returns the run id, which by convention is the directory name.
func (r *TrainingRun) ID() string {
	return filepath.Base(r.root)
}

// ManifestPath returns the absolute path of the run's manifest file.
func (r *TrainingRun) ManifestPath() string {
	return filepath.Join(r.root, manifest.FileName)
}

// Manifest returns the cached manifest, loading it on first access.
func (r *TrainingRun) Manifest() (*manifest.RunManifest, error) {
	if r.manifest != nil {
		return r.manifest, nil
	}
	m, err := manifest.Load(r.ManifestPath())
	if err != nil {
		return nil, err
	}
	r.manifest = m
	return m, nil
}

// Reload drops the cached manifest and re-reads it from disk.
func (r *TrainingRun) Reload() error {
	r.manifest = nil
	_, err := r.Manifest()
	return err
}

// SetManifest installs an in-memory manifest without persisting it.
func (r *TrainingRun) SetManifest(m *manifest.RunManifest) {
	r.manifest = m
}

// SaveManifest persists the cached manifest.
func (r *TrainingRun) SaveManifest() error {
	if r.manifest == nil {
		return fmt.Errorf("run %s: %w", r.ID(), ErrNoManifest)
	}
	return manifest.Save(r.manifest, r.ManifestPath())
}

// Resolve returns the validated absolute path of a stage artifact. The
// declared path is looked up in the stage manifest, joined onto the run
// root, and the directory structure is validated for the given kind on
// every call; declaring a path never implies the artifact exists yet.
func (r *TrainingRun) Resolve(stage int, kind artifact.Kind) (string, error) {
	st, err := r.stage(stage)
	if err != nil {
		return "", err
	}

	var rel string
	switch kind {
	case artifact.KindLoRAAdapter, artifact.KindPEFTAdapter:
		rel = st.AdaptersPath
	case artifact.KindFusedModel:
		rel = st.MergedModelPath
	default:
		return "", fmt.Errorf("run %s: cannot resolve artifact kind %q", r.ID(), kind)
	}
	if rel == "" {
		return "", &MissingStageError{RunID: r.ID(), Stage: stage}
	}
	return r.validated(rel, kind)
}

// TrainingDataPath returns the absolute training-data path for a stage.
// A non-empty datasetName selects among the stage's named datasets.
func (r *TrainingRun) TrainingDataPath(stage int, datasetName string) (string, error) {
	st, err := r.stage(stage)
	if err != nil {
		return "", err
	}

	if datasetName == "" {
		if st.TrainingDataPath == "" {
			return "", &MissingStageError{RunID: r.ID(), Stage: stage}
		}
		return r.resolveRel(st.TrainingDataPath), nil
	}

	rel, ok := st.TrainingDataPaths[datasetName]
	if !ok {
		declared := make([]string, 0, len(st.TrainingDataPaths))
		for name := range st.TrainingDataPaths {
			declared = append(declared, name)
		}
		return "", &UnknownDatasetError{RunID: r.ID(), Stage: stage, Name: datasetName, Declared: declared}
	}
	return r.resolveRel(rel), nil
}

// EvaluationResultsPath returns the absolute path of a stage's evaluation
// results file, verifying the file has materialized.
func (r *TrainingRun) EvaluationResultsPath(stage int) (string, error) {
	st, err := r.stage(stage)
	if err != nil {
		return "", err
	}
	if st.EvaluationResultsPath == "" {
		return "", &MissingStageError{RunID: r.ID(), Stage: stage}
	}

	abs := r.resolveRel(st.EvaluationResultsPath)
	fi, err := os.Stat(abs)
	if err != nil || fi.IsDir() {
		return "", &ValidationError{Dir: filepath.Dir(abs), Missing: []string{filepath.Base(abs)}}
	}
	if fi.Size() == 0 {
		return "", &ValidationError{Dir: filepath.Dir(abs), Empty: []string{filepath.Base(abs)}}
	}
	return abs, nil
}

// FinalModelPath returns the validated absolute path of the merged,
// deployable model declared for the run.
func (r *TrainingRun) FinalModelPath() (string, error) {
	m, err := r.Manifest()
	if err != nil {
		return "", err
	}
	if m.FinalModelPath == "" {
		return "", &MissingStageError{RunID: r.ID(), Stage: 2}
	}
	return r.validated(m.FinalModelPath, artifact.KindFusedModel)
}

// Completed reports whether the run's final model has materialized: the
// final-model path is declared and the weight file exists at it. Completion
// is always derived from the filesystem, never stored, so it cannot drift
// from reality.
func (r *TrainingRun) Completed() bool {
	m, err := r.Manifest()
	if err != nil {
		return false
	}
	if m.Stage2 == nil || m.FinalModelPath == "" {
		return false
	}
	fi, err := os.Stat(filepath.Join(r.resolveRel(m.FinalModelPath), FinalWeightFile))
	return err == nil && !fi.IsDir()
}

func (r *TrainingRun) stage(n int) (*manifest.StageManifest, error) {
	m, err := r.Manifest()
	if err != nil {
		return nil, err
	}
	st := m.Stage(n)
	if st == nil {
		return nil, &MissingStageError{RunID: r.ID(), Stage: n}
	}
	return st, nil
}

// validated joins rel onto the run root and checks the directory structure
// for kind, translating a failed report into a ValidationError that names
// the offending files.
func (r *TrainingRun) validated(rel string, kind artifact.Kind) (string, error) {
	abs := r.resolveRel(rel)
	report, err := artifact.Validate(abs, kind)
	if err != nil {
		return "", err
	}
	if !report.Valid {
		return "", &ValidationError{Dir: abs, Kind: kind, Missing: report.Missing, Empty: report.Empty}
	}
	return abs, nil
}

// resolveRel joins a manifest-relative path onto the run root. Manifest
// paths use forward slashes regardless of platform.
func (r *TrainingRun) resolveRel(rel string) string {
	return filepath.Join(r.root, filepath.FromSlash(rel))
}
