package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runValidateCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidateValidScenarios(t *testing.T) {
	out, err := runValidateCommand(t, "text", filepath.Join(harnessTestdata, "scenarios"))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ 4 scenario file(s) valid")
}

func TestValidateValidScenariosJSON(t *testing.T) {
	out, err := runValidateCommand(t, "json",
		filepath.Join(harnessTestdata, "scenarios", "judge_success.yaml"),
		filepath.Join(harnessTestdata, "scenarios", "judge_failure.yaml"))
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	var result ValidationResult
	decodeData(t, resp, &result)
	assert.True(t, result.Valid)
	assert.Equal(t, 2, result.Files)
}

func TestValidateNonExistentPath(t *testing.T) {
	out, err := runValidateCommand(t, "text", "/nonexistent/directory/path")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
	assert.Contains(t, out, "path not found")
}

func TestValidateEmptyDirectory(t *testing.T) {
	out, err := runValidateCommand(t, "text", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "no scenario files found")
}

func TestValidateSchemaError(t *testing.T) {
	dir := t.TempDir()
	bad := "name: bad\nsteps:\n  - create:\n      caller: alice\n      amount: -1\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(bad), 0644))

	out, err := runValidateCommand(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "validation failed with 1 error(s)")
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, ErrCodeSchema)
}

func TestValidateStructuralErrorJSON(t *testing.T) {
	dir := t.TempDir()
	copyScenario(t, dir, "judge_success", false)
	// Schema-valid but names no command.
	bad := "name: empty_step\ndescription: no command\nstart: 0\nsteps:\n  - expect: ok\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty_step.yaml"), []byte(bad), 0644))

	out, err := runValidateCommand(t, "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)

	var result ValidationResult
	decodeData(t, resp, &result)
	assert.False(t, result.Valid)
	assert.Equal(t, 2, result.Files)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, filepath.Join(dir, "empty_step.yaml"), result.Errors[0].File)
	assert.Equal(t, ErrCodeInvalidInput, result.Errors[0].Code)
	assert.Contains(t, result.Errors[0].Message, "exactly one of create, judge or clawback")
}
