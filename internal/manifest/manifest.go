// Package manifest defines the versioned run-manifest document and its
// on-disk store. The manifest is the single source of truth for where each
// training stage's artifacts live; every path in it is relative to the run
// root and resolved only at read time.
package manifest

import (
	"path/filepath"
	"strings"
	"time"
)

// FileName is the manifest file name inside every run directory.
const FileName = "run-manifest.json"

// Schema versions. Version 2 (per-stage evaluation, params and dataset
// stats) is canonical; version 1 is read-only legacy.
const (
	SchemaVersionLegacy  = "1"
	SchemaVersionCurrent = "2"
)

// TimestampFormat is the fixed-width creation-time format. Fixed width is
// load-bearing: run discovery sorts timestamps lexicographically.
const TimestampFormat = "2006-01-02T15:04:05Z"

// StageManifest declares the artifact paths and metadata for one training
// stage. A populated path declares intent only; nothing here implies the
// artifact exists yet.
type StageManifest struct {
	AdaptersPath          string            `json:"adaptersPath"`
	TrainingDataPath      string            `json:"trainingDataPath,omitempty"`
	EvaluationResultsPath string            `json:"evaluationResultsPath,omitempty"`
	MergedModelPath       string            `json:"mergedModelPath,omitempty"`
	TrainingDataPaths     map[string]string `json:"trainingDataPaths,omitempty"`
	TrainingParams        map[string]any    `json:"trainingParams,omitempty"`
	DatasetStats          map[string]any    `json:"datasetStats,omitempty"`
}

// RunManifest is the persisted contract for one training run.
type RunManifest struct {
	SchemaVersion  string         `json:"schemaVersion"`
	RunID          string         `json:"runId"`
	Timestamp      string         `json:"timestamp"`
	BaseModel      string         `json:"baseModel"`
	Stage1         *StageManifest `json:"stage1,omitempty"`
	Stage2         *StageManifest `json:"stage2,omitempty"`
	FinalModelPath string         `json:"finalModelPath,omitempty"`
}

// Stage returns the manifest for stage 1 or 2, or nil if undeclared.
func (m *RunManifest) Stage(n int) *StageManifest {
	switch n {
	case 1:
		return m.Stage1
	case 2:
		return m.Stage2
	default:
		return nil
	}
}

// Time parses the creation timestamp.
func (m *RunManifest) Time() (time.Time, error) {
	return time.Parse(TimestampFormat, m.Timestamp)
}

// pathFields returns every declared path with a human-readable field name,
// for relativity checks and skeleton creation.
func (m *RunManifest) pathFields() []pathField {
	var fields []pathField
	add := func(name, value string) {
		if value != "" {
			fields = append(fields, pathField{Name: name, Path: value})
		}
	}

	for i, st := range []*StageManifest{m.Stage1, m.Stage2} {
		if st == nil {
			continue
		}
		prefix := "stage1"
		if i == 1 {
			prefix = "stage2"
		}
		add(prefix+".adaptersPath", st.AdaptersPath)
		add(prefix+".trainingDataPath", st.TrainingDataPath)
		add(prefix+".evaluationResultsPath", st.EvaluationResultsPath)
		add(prefix+".mergedModelPath", st.MergedModelPath)
		for name, p := range st.TrainingDataPaths {
			add(prefix+".trainingDataPaths."+name, p)
		}
	}
	add("finalModelPath", m.FinalModelPath)
	return fields
}

type pathField struct {
	Name string
	Path string
}

// isRelative reports whether p is a relative path in both slash
// conventions. Windows drive-letter paths count as absolute.
func isRelative(p string) bool {
	if filepath.IsAbs(p) || strings.HasPrefix(p, "/") || strings.HasPrefix(p, `\`) {
		return false
	}
	if len(p) >= 2 && p[1] == ':' {
		return false
	}
	return true
}
