package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bprogram/internal/ir"
	"github.com/roach88/bprogram/internal/store"
)

// record runs a program file into db and returns the run ID.
func record(t *testing.T, db, file string, args ...string) string {
	t.Helper()
	result := runJSON(t, append([]string{file, "--db", db}, args...)...)
	require.NotEmpty(t, result.RunID)
	return result.RunID
}

func TestTrace_ListRuns(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "traces.db")
	first := record(t, db, writeFile(t, dir, "hot_cold.yaml", hotColdYAML), "-t", "start")
	second := record(t, db, writeFile(t, dir, "door.yaml", doorYAML), "-t", "open")

	out, err := execute(t, "--format", "json", "trace", "--db", db)
	require.NoError(t, err)
	var runs []ir.Run
	decodeResponse(t, out, &runs)
	require.Len(t, runs, 2)
	ids := []string{runs[0].ID, runs[1].ID}
	assert.ElementsMatch(t, []string{first, second}, ids)

	out, err = execute(t, "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, first+"  hotCold (strategy priority, seed 0)")
	assert.Contains(t, out, second+"  door")
}

func TestTrace_ShowRun(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "traces.db")
	runID := record(t, db, writeFile(t, dir, "door.yaml", doorYAML), "--public", "-t", "opened", "-t", "open")

	out, err := execute(t, "trace", "--db", db, "--run", runID)
	require.NoError(t, err)
	assert.Contains(t, out, "Run "+runID)
	assert.Contains(t, out, "#1 opened (public) refused")
	assert.Contains(t, out, "#2 open (public) accepted")
	assert.Contains(t, out, "restricted_trigger_error")
	assert.NotContains(t, out, "Bids:")

	out, err = execute(t, "--format", "json", "trace", "--db", db, "--run", "latest", "--bids")
	require.NoError(t, err)
	var trace store.Trace
	decodeResponse(t, out, &trace)
	assert.Equal(t, runID, trace.Run.ID)
	assert.Equal(t, []string{"open", "opened"}, ir.SelectedTypes(trace.Selections))
	assert.NotEmpty(t, trace.Bids)
	require.Len(t, trace.Triggers, 2)
	assert.False(t, trace.Triggers[0].Accepted)
	assert.True(t, trace.Triggers[1].Accepted)
}

func TestTrace_Errors(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "traces.db")

	_, err := execute(t, "trace")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no database given")

	_, err = execute(t, "trace", "--db", db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database not found")

	record(t, db, writeFile(t, dir, "door.yaml", doorYAML), "-t", "open")
	_, err = execute(t, "trace", "--db", db, "--run", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "run not found: nope")
}

func TestTrace_Where(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "traces.db")
	record(t, db, writeFile(t, dir, "hot_cold.yaml", hotColdYAML), "-t", "start")

	out, err := execute(t, "--format", "json", "trace", "--db", db, "--run", "latest",
		"--where", "type=hot", "--where", "step>=3", "--bids")
	require.NoError(t, err)
	var trace store.Trace
	decodeResponse(t, out, &trace)
	require.Len(t, trace.Selections, 2)
	assert.Equal(t, []int64{4, 6}, []int64{trace.Selections[0].Step, trace.Selections[1].Step})
	require.NotEmpty(t, trace.Bids)
	for _, b := range trace.Bids {
		assert.Equal(t, "hot", b.Type)
		assert.GreaterOrEqual(t, b.Step, int64(3))
	}

	_, err = execute(t, "trace", "--db", db, "--run", "latest", "--where", "colour=red")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid --where")
}
