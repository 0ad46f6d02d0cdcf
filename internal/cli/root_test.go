package cli

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "bpctl", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"validate", "compile", "run", "test", "trace", "replay", "serve", "trigger"}

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

	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	for _, name := range []string{"db", "trigger", "public", "program", "strategy", "seed", "max-steps"} {
		assert.NotNil(t, runCmd.Flags().Lookup(name), "flag %s", name)
	}
	assert.Equal(t, "t", runCmd.Flags().Lookup("trigger").Shorthand)
}

func TestInvalidFormat(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "p.yaml", hotColdYAML)

	_, err := execute(t, "--format", "xml", "validate", file)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestBadConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "bpctl.toml", "[engine]\nstrategy = \"fastest\"\n")
	file := writeFile(t, dir, "p.yaml", hotColdYAML)

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--config", cfg, "validate", file})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestConfigSuppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "bpctl.toml", "[engine]\nstrategy = \"randomized\"\nseed = 9\n")

	opts := &RootOptions{ConfigPath: cfg, Verbose: true}
	require.NoError(t, opts.resolve(io.Discard))
	assert.Equal(t, "randomized", opts.config().Engine.Strategy)
	assert.Equal(t, int64(9), opts.config().Engine.Seed)
	assert.NotNil(t, opts.logger())
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "bpctl version 0.1.0 (program schema v1)")
}
