package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bprogram/internal/ir"
)

func runJSON(t *testing.T, args ...string) RunResult {
	t.Helper()
	out, err := execute(t, append([]string{"--format", "json", "run"}, args...)...)
	require.NoError(t, err)
	var result RunResult
	resp := decodeResponse(t, out, &result)
	require.Equal(t, "ok", resp.Status)
	return result
}

func TestRun_HotCold(t *testing.T) {
	file := writeFile(t, t.TempDir(), "hot_cold.yaml", hotColdYAML)

	result := runJSON(t, file, "--trigger", "start")
	assert.Equal(t, "hotCold", result.Program)
	assert.Equal(t, "priority", result.Strategy)
	assert.Equal(t,
		[]string{"start", "hot", "cold", "hot", "cold", "hot", "cold"},
		ir.SelectedTypes(result.Selections))
	assert.Equal(t, "trigger(start)", result.Selections[0].Thread)
	assert.Equal(t, int64(1), result.Selections[0].Step)
	assert.Equal(t, []string{"mixHotCold"}, result.Threads)
	assert.Empty(t, result.Diagnostics)
	assert.Empty(t, result.RunID, "nothing recorded without a database")
}

func TestRun_Text(t *testing.T) {
	file := writeFile(t, t.TempDir(), "hot_cold.yaml", hotColdYAML)

	out, err := execute(t, "run", file, "-t", "start")
	require.NoError(t, err)
	assert.Contains(t, out, "Program hotCold (strategy priority, seed 0)")
	assert.Contains(t, out, "[7] cold")
	assert.Contains(t, out, "Threads: mixHotCold")
}

func TestRun_PublicGate(t *testing.T) {
	file := writeFile(t, t.TempDir(), "door.yaml", doorYAML)

	result := runJSON(t, file, "--public", "-t", "opened", "-t", `open={"door":"front"}`)
	assert.Equal(t, []string{"open", "opened"}, ir.SelectedTypes(result.Selections))
	assert.Equal(t, map[string]any{"door": "front"}, result.Selections[0].Detail)
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, "restricted_trigger_error", result.Diagnostics[0].Kind)
	assert.Equal(t, "opened", result.Diagnostics[0].Type)
}

func TestRun_MaxSteps(t *testing.T) {
	file := writeFile(t, t.TempDir(), "ticker.yaml", tickerYAML)

	result := runJSON(t, file, "-t", "start", "--max-steps", "5")
	assert.Len(t, result.Selections, 5)
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, "steps_exceeded", result.Diagnostics[0].Kind)
	assert.Equal(t, []string{"tick"}, result.Threads)
}

func TestRun_MaxStepsFromConfig(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "ticker.yaml", tickerYAML)
	cfg := writeFile(t, dir, "bpctl.toml", "[engine]\nmax-steps = 3\n")

	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"--config", cfg, "--format", "json", "run", file, "-t", "start"})
	require.NoError(t, cmd.Execute())

	var result RunResult
	decodeResponse(t, out.String(), &result)
	assert.Len(t, result.Selections, 3)
}

func TestRun_RandomizedIsSeeded(t *testing.T) {
	file := writeFile(t, t.TempDir(), "hot_cold.yaml", hotColdYAML)

	first := runJSON(t, file, "-t", "start", "--strategy", "randomized", "--seed", "11")
	second := runJSON(t, file, "-t", "start", "--strategy", "randomized", "--seed", "11")
	assert.Equal(t, "randomized", first.Strategy)
	assert.Equal(t, uint64(11), first.Seed)
	assert.Equal(t, first.Selections, second.Selections)
}

func TestRun_Records(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "hot_cold.yaml", hotColdYAML)
	db := filepath.Join(dir, "traces.db")

	result := runJSON(t, file, "-t", "start", "--db", db)
	assert.NotEmpty(t, result.RunID)
	assert.FileExists(t, db)
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "hot_cold.yaml", hotColdYAML)

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"missing file", []string{filepath.Join(dir, "nope.yaml")}, ExitCommandError},
		{"empty trigger type", []string{file, "-t", "=1"}, ExitCommandError},
		{"bad detail", []string{file, "-t", "start={"}, ExitCommandError},
		{"unknown strategy", []string{file, "--strategy", "fastest"}, ExitCommandError},
		{"unknown program", []string{file, "--program", "nope"}, ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, append([]string{"run"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, tt.code, GetExitCode(err))
		})
	}
}

func TestParseTrigger(t *testing.T) {
	ev, err := parseTrigger(`move={"x":3,"y":1.5,"tags":["a"]}`)
	require.NoError(t, err)
	assert.Equal(t, "move", ev.Type)
	assert.Equal(t, map[string]any{"x": int64(3), "y": 1.5, "tags": []any{"a"}}, ev.Detail)

	ev, err = parseTrigger("start")
	require.NoError(t, err)
	assert.Nil(t, ev.Detail)

	_, err = parseTrigger("")
	assert.ErrorContains(t, err, "event type is empty")
}
