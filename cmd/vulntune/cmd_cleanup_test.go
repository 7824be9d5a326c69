package main

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupCommand_DryRun(t *testing.T) {
	runsDir := t.TempDir()
	seedRun(t, runsDir, "alpha", false)
	seedRun(t, runsDir, "beta", true)

	out, err := executeCommand(t, "cleanup", "--runs-dir", runsDir, "--dry-run")
	require.NoError(t, err)

	assert.Contains(t, out, "Would delete:")
	assert.Contains(t, out, "run_alpha")
	assert.NotContains(t, out, "run_beta")

	// Nothing actually removed.
	assert.DirExists(t, filepath.Join(runsDir, "run_alpha"))
	assert.DirExists(t, filepath.Join(runsDir, "run_beta"))
}

func TestCleanupCommand_Yes(t *testing.T) {
	runsDir := t.TempDir()
	seedRun(t, runsDir, "alpha", false)
	seedRun(t, runsDir, "beta", true)

	out, err := executeCommand(t, "cleanup", "--runs-dir", runsDir, "--yes")
	require.NoError(t, err)

	assert.Contains(t, out, "Deleted 1 run(s)")
	assert.NoDirExists(t, filepath.Join(runsDir, "run_alpha"))
	assert.DirExists(t, filepath.Join(runsDir, "run_beta"))
}

func TestCleanupCommand_PromptDeclined(t *testing.T) {
	runsDir := t.TempDir()
	seedRun(t, runsDir, "alpha", false)

	orig := promptConfirm
	promptConfirm = func(io.Reader, io.Writer, string) bool { return false }
	t.Cleanup(func() { promptConfirm = orig })

	out, err := executeCommand(t, "cleanup", "--runs-dir", runsDir)
	require.NoError(t, err)

	assert.Contains(t, out, "Aborted.")
	assert.DirExists(t, filepath.Join(runsDir, "run_alpha"))
}

func TestCleanupCommand_PromptAccepted(t *testing.T) {
	runsDir := t.TempDir()
	seedRun(t, runsDir, "alpha", false)

	orig := promptConfirm
	promptConfirm = func(_ io.Reader, _ io.Writer, question string) bool {
		assert.Contains(t, question, runsDir)
		return true
	}
	t.Cleanup(func() { promptConfirm = orig })

	_, err := executeCommand(t, "cleanup", "--runs-dir", runsDir)
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(runsDir, "run_alpha"))
}

func TestCheckCommand_FreshRunFailsValidation(t *testing.T) {
	runsDir := t.TempDir()
	seedRun(t, runsDir, "alpha", false)

	out, err := executeCommand(t, "check", "alpha", "--runs-dir", runsDir)
	require.Error(t, err)

	var invalidErr *ArtifactInvalidError
	assert.ErrorAs(t, err, &invalidErr)
	assert.Contains(t, out, "stage1 adapters")
	assert.Contains(t, out, "missing")
}

func TestCheckCommand_UnknownRun(t *testing.T) {
	_, err := executeCommand(t, "check", "nope", "--runs-dir", t.TempDir())
	assert.Error(t, err)
}
