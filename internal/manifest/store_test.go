package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validManifest() *RunManifest {
	return &RunManifest{
		SchemaVersion: SchemaVersionCurrent,
		RunID:         "run_20250101_000000",
		Timestamp:     "2025-01-01T00:00:00Z",
		BaseModel:     "meta-llama/Llama-3.2-3B-Instruct",
		Stage1: &StageManifest{
			AdaptersPath:          "stage1/adapters",
			TrainingDataPath:      "stage1/training-data",
			EvaluationResultsPath: "stage1/evaluation/evaluation_results.json",
		},
		Stage2: &StageManifest{
			AdaptersPath:     "stage2/adapters",
			TrainingDataPath: "stage2/training-data",
			TrainingDataPaths: map[string]string{
				"codefix": "stage2/training-data/codefix",
				"mixed":   "stage2/training-data/mixed",
			},
		},
		FinalModelPath: "final-model",
	}
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", FileName)
	m := validManifest()

	require.NoError(t, Save(m, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, m, loaded)
}

func TestSave_CreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deeply", "nested", "run", FileName)
	require.NoError(t, Save(validManifest(), path))

	_, err := os.Stat(path)
	require.NoError(t, err)
}

func TestSave_RejectsAbsolutePaths(t *testing.T) {
	m := validManifest()
	m.Stage1.AdaptersPath = "/etc/stage1/adapters"

	err := Save(m, filepath.Join(t.TempDir(), FileName))
	require.ErrorIs(t, err, ErrInvalidFormat)
	assert.Contains(t, err.Error(), "stage1.adaptersPath")
}

func TestSave_LeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(validManifest(), filepath.Join(dir, FileName)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, FileName, entries[0].Name())
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), FileName))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLoad_CorruptJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"runId": "run_x", "time`), 0644))

	_, err := Load(path)
	require.ErrorIs(t, err, ErrInvalidFormat)
	assert.Contains(t, err.Error(), "JSON parse error")
}

func TestLoad_NonObject(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`[1, 2, 3]`), 0644))

	_, err := Load(path)
	require.ErrorIs(t, err, ErrInvalidFormat)
}

func TestLoad_CurrentSchemaMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	doc := `{"schemaVersion": "2", "runId": "run_x"}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	_, err := Load(path)
	require.ErrorIs(t, err, ErrInvalidFormat)
	assert.Contains(t, err.Error(), "timestamp")
}

func TestLoad_CurrentSchemaAbsolutePathRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	m := validManifest()
	m.FinalModelPath = "/srv/models/final"
	data, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	_, err = Load(path)
	require.ErrorIs(t, err, ErrInvalidFormat)
	assert.Contains(t, err.Error(), "finalModelPath")
}

func TestLoad_UnsupportedVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	doc := `{"schemaVersion": "9", "runId": "r", "timestamp": "t", "baseModel": "b"}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	_, err := Load(path)
	require.ErrorIs(t, err, ErrInvalidFormat)
	assert.Contains(t, err.Error(), `"9"`)
}

func TestLoad_LegacyMigration(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	doc := `{
		"runId": "run_20240601_120000",
		"timestamp": "2024-06-01T12:00:00Z",
		"baseModel": "mistral-7b",
		"stage1": {
			"adaptersPath": "stage1/adapters",
			"trainingDataPath": "stage1/training-data",
			"mergedModelPath": "stage1/merged-model"
		},
		"stage2": {
			"adaptersPath": "stage2/adapters",
			"finalModelPath": "final-model",
			"trainingDataPaths": {"codefix": "stage2/training-data/codefix"}
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	m, err := Load(path)
	require.NoError(t, err)

	// Migration standardizes on the current layout.
	assert.Equal(t, SchemaVersionCurrent, m.SchemaVersion)
	assert.Equal(t, "final-model", m.FinalModelPath)
	assert.Equal(t, "stage1/merged-model", m.Stage1.MergedModelPath)
	assert.Equal(t, map[string]string{"codefix": "stage2/training-data/codefix"}, m.Stage2.TrainingDataPaths)
}

func TestLoad_LegacyExplicitVersionTag(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	doc := `{
		"schemaVersion": "1",
		"runId": "run_x",
		"timestamp": "2024-01-01T00:00:00Z",
		"baseModel": "m",
		"stage1": {"adaptersPath": "stage1/adapters"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "run_x", m.RunID)
	assert.Equal(t, SchemaVersionCurrent, m.SchemaVersion)
}

func TestLoad_LegacyMissingRequiredFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"runId": "run_x"}`), 0644))

	_, err := Load(path)
	require.ErrorIs(t, err, ErrInvalidFormat)
	assert.Contains(t, err.Error(), "timestamp")
	assert.Contains(t, err.Error(), "baseModel")
}

func TestLoad_LegacyRoundTripsThroughSave(t *testing.T) {
	dir := t.TempDir()
	legacyPath := filepath.Join(dir, FileName)
	doc := `{
		"runId": "run_y",
		"timestamp": "2024-02-02T00:00:00Z",
		"baseModel": "m",
		"stage2": {"adaptersPath": "stage2/adapters", "finalModelPath": "final-model"}
	}`
	require.NoError(t, os.WriteFile(legacyPath, []byte(doc), 0644))

	m, err := Load(legacyPath)
	require.NoError(t, err)

	// Saving a migrated manifest must produce a valid current document.
	require.NoError(t, Save(m, legacyPath))
	reloaded, err := Load(legacyPath)
	require.NoError(t, err)
	assert.Equal(t, m, reloaded)

	data, err := os.ReadFile(legacyPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"schemaVersion": "2"`)
}

func TestTime(t *testing.T) {
	m := validManifest()
	ts, err := m.Time()
	require.NoError(t, err)
	assert.Equal(t, 2025, ts.Year())

	m.Timestamp = "yesterday"
	_, err = m.Time()
	require.Error(t, err)
}

func TestStage(t *testing.T) {
	m := validManifest()
	assert.Same(t, m.Stage1, m.Stage(1))
	assert.Same(t, m.Stage2, m.Stage(2))
	assert.Nil(t, m.Stage(3))
}
