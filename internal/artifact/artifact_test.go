package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0644))
}

func TestValidate_LoRAAdapter(t *testing.T) {
	dir := t.TempDir()

	report, err := Validate(dir, KindLoRAAdapter)
	require.NoError(t, err)
	assert.False(t, report.Valid)
	assert.ElementsMatch(t, []string{"adapters.safetensors", "adapter_config.json"}, report.Missing)
	assert.Empty(t, report.Empty)

	writeFile(t, dir, "adapters.safetensors", []byte("0123456789"))
	writeFile(t, dir, "adapter_config.json", []byte("{}"))

	report, err = Validate(dir, KindLoRAAdapter)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Empty(t, report.Missing)
	assert.Empty(t, report.Empty)
}

func TestValidate_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "adapters.safetensors", []byte("x"))
	writeFile(t, dir, "adapter_config.json", nil)

	report, err := Validate(dir, KindLoRAAdapter)
	require.NoError(t, err)
	assert.False(t, report.Valid)
	assert.Empty(t, report.Missing)
	assert.Equal(t, []string{"adapter_config.json"}, report.Empty)
}

func TestValidate_FusedModel(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.json", []byte("{}"))
	writeFile(t, dir, "model.safetensors", []byte("weights"))

	report, err := Validate(dir, KindFusedModel)
	require.NoError(t, err)
	assert.False(t, report.Valid)
	assert.Equal(t, []string{"tokenizer.json"}, report.Missing)

	writeFile(t, dir, "tokenizer.json", []byte("{}"))
	report, err = Validate(dir, KindFusedModel)
	require.NoError(t, err)
	assert.True(t, report.Valid)
}

func TestValidate_DirectoryCountsAsMissing(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "adapter_config.json"), 0755))
	writeFile(t, dir, "adapters.safetensors", []byte("x"))

	report, err := Validate(dir, KindLoRAAdapter)
	require.NoError(t, err)
	assert.False(t, report.Valid)
	assert.Equal(t, []string{"adapter_config.json"}, report.Missing)
}

func TestValidate_UnknownKind(t *testing.T) {
	_, err := Validate(t.TempDir(), Kind("mystery"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mystery")
}

func TestValidate_Idempotent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "adapters.safetensors", []byte("x"))

	first, err := Validate(dir, KindLoRAAdapter)
	require.NoError(t, err)
	second, err := Validate(dir, KindLoRAAdapter)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRequiredFiles(t *testing.T) {
	assert.Equal(t, []string{"adapter_model.safetensors", "adapter_config.json"}, RequiredFiles(KindPEFTAdapter))
	assert.Nil(t, RequiredFiles(Kind("nope")))

	// Mutating the returned slice must not affect later calls.
	files := RequiredFiles(KindLoRAAdapter)
	files[0] = "clobbered"
	assert.Equal(t, []string{"adapters.safetensors", "adapter_config.json"}, RequiredFiles(KindLoRAAdapter))
}
