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

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "seqcheck", cmd.Use)
	assert.Contains(t, cmd.Long, "occurrence ranges")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"check", "validate"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	modeFlag := cmd.PersistentFlags().Lookup("mode")
	require.NotNil(t, modeFlag)
	assert.Equal(t, "", modeFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "", configFlag.DefValue)
}

func TestCheckCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	checkCmd, _, err := cmd.Find([]string{"check"})
	require.NoError(t, err)

	updateFlag := checkCmd.Flags().Lookup("update")
	require.NotNil(t, updateFlag)
	assert.Equal(t, "false", updateFlag.DefValue)

	filterFlag := checkCmd.Flags().Lookup("filter")
	require.NotNil(t, filterFlag)
	assert.Equal(t, "", filterFlag.DefValue)
}

func TestRootInvalidFormat(t *testing.T) {
	_, err := executeRoot(t, "--format", "xml", "validate", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestRootInvalidMode(t *testing.T) {
	_, err := executeRoot(t, "--mode", "fiber", "validate", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid mode")
}

func TestRootFormatFromEnv(t *testing.T) {
	t.Setenv("SEQCHECK_FORMAT", "json")
	dir := t.TempDir()
	writeScenario(t, dir, "ordered.yaml", orderedScenario)

	out, err := executeRoot(t, "check", dir)
	require.NoError(t, err)

	var resp checkResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestRootFlagOverridesEnv(t *testing.T) {
	t.Setenv("SEQCHECK_FORMAT", "json")
	dir := t.TempDir()
	writeScenario(t, dir, "ordered.yaml", orderedScenario)

	out, err := executeRoot(t, "--format", "text", "check", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestRootConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "ordered.yaml", orderedScenario)
	config := filepath.Join(t.TempDir(), "seqcheck.yaml")
	require.NoError(t, os.WriteFile(config, []byte("format: json\nmode: flow\n"), 0644))

	out, err := executeRoot(t, "--config", config, "check", dir)
	require.NoError(t, err)

	var resp checkResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 1, resp.Data.Passed)
}

func TestRootConfigFileMissing(t *testing.T) {
	_, err := executeRoot(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "validate", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestRootOptionsLoggerDefault(t *testing.T) {
	opts := &RootOptions{}
	require.NotNil(t, opts.Logger())
	assert.Nil(t, opts.contextMode())
}
