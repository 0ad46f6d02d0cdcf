package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bprogram/internal/ir"
)

func compileJSON(t *testing.T, args ...string) []CompiledProgram {
	t.Helper()
	out, err := execute(t, append([]string{"--format", "json", "compile"}, args...)...)
	require.NoError(t, err)
	var compiled []CompiledProgram
	decodeResponse(t, out, &compiled)
	return compiled
}

func TestCompile_HashMatchesProgram(t *testing.T) {
	file := writeFile(t, t.TempDir(), "hot_cold.yaml", hotColdYAML)

	compiled := compileJSON(t, file)
	require.Len(t, compiled, 1)
	assert.Equal(t, "hotCold", compiled[0].Name)

	var p ir.Program
	require.NoError(t, json.Unmarshal(compiled[0].Program, &p))
	assert.Equal(t, ir.MustProgramHash(p), compiled[0].Hash)
	assert.Len(t, p.Threads, 3)
}

func TestCompile_SameHashAcrossFormats(t *testing.T) {
	yamlFile := writeFile(t, t.TempDir(), "hot_cold.yaml", hotColdYAML)
	cueFile := filepath.Join("..", "harness", "testdata", "programs", "hot_cold.cue")

	fromYAML := compileJSON(t, yamlFile)
	fromCUE := compileJSON(t, cueFile)
	require.Len(t, fromYAML, 1)
	require.Len(t, fromCUE, 1)
	assert.Equal(t, fromYAML[0].Hash, fromCUE[0].Hash)
	assert.JSONEq(t, string(fromYAML[0].Program), string(fromCUE[0].Program))
}

func TestCompile_SelectProgram(t *testing.T) {
	file := writeFile(t, t.TempDir(), "all.yaml", hotColdYAML+"---\n"+tickerYAML)

	compiled := compileJSON(t, file)
	require.Len(t, compiled, 2)

	compiled = compileJSON(t, file, "--program", "ticker")
	require.Len(t, compiled, 1)
	assert.Equal(t, "ticker", compiled[0].Name)
}

func TestCompile_Text(t *testing.T) {
	file := writeFile(t, t.TempDir(), "ticker.yaml", tickerYAML)

	out, err := execute(t, "compile", file)
	require.NoError(t, err)
	assert.Contains(t, out, `{"name":"ticker","threads":[`)
	assert.Regexp(t, `ticker [0-9a-f]{64}`, out)
}

func TestCompile_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "broken.yaml", brokenYAML)
	good := writeFile(t, dir, "ticker.yaml", tickerYAML)

	_, err := execute(t, "compile", filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "compile", good, "--program", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "compile", bad)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}
