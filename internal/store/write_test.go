package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bprogram/internal/ir"
)

func TestWriteRun_AssignsCreationOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteRun(ctx, createTestRun("b")))
	require.NoError(t, s.WriteRun(ctx, createTestRun("a")))
	// Duplicate is ignored
	require.NoError(t, s.WriteRun(ctx, createTestRun("b")))

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].ID, "creation order, not ID order")
	assert.Equal(t, "a", runs[1].ID)

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", latest.ID)
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadRun(context.Background(), "missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))

	_, err = s.LatestRun(context.Background())
	assert.True(t, errors.Is(err, sql.ErrNoRows))

	_, err = s.ReadTrace(context.Background(), "missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestListRuns_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)

	runs, err := s.ListRuns(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestWriteTrigger_RequiresRun(t *testing.T) {
	s := createTestStore(t)

	err := s.WriteTrigger(context.Background(), "missing", ir.Trigger{Seq: 1, Type: "x"})
	assert.Error(t, err, "foreign key must be enforced")
}

func TestTrace_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	run := createTestRun("r1")
	run.Seed = 42
	run.StartStep = 3
	require.NoError(t, s.WriteRun(ctx, run))

	require.NoError(t, s.WriteTrigger(ctx, "r1", ir.Trigger{Seq: 1, Type: "start", Detail: map[string]any{"n": 1}, Accepted: true}))
	require.NoError(t, s.WriteTrigger(ctx, "r1", ir.Trigger{Seq: 2, Type: "secret", Public: true}))

	require.NoError(t, s.WriteStep(ctx, "r1",
		ir.Selection{Step: 4, Type: "start", Detail: map[string]any{"n": 1}, Thread: "trigger(start)"},
		[]ir.Bid{
			{Step: 4, Index: 0, Thread: "trigger(start)", Type: "start", Trigger: true, Selected: true},
			{Step: 4, Index: 1, Thread: "addCold", Type: "cold", Priority: 2, BlockedBy: "mixer"},
		}))
	require.NoError(t, s.WriteStep(ctx, "r1", ir.Selection{Step: 5, Type: "hot", Thread: "addHot", Priority: 1}, nil))
	require.NoError(t, s.WriteDiagnostic(ctx, "r1", 1, ir.Diagnostic{Step: 5, Kind: "bthreads_warning", Thread: "idle", Message: "empty"}))

	trace, err := s.ReadTrace(ctx, "r1")
	require.NoError(t, err)

	assert.Equal(t, run, trace.Run)
	assert.Equal(t, []ir.Trigger{
		{Seq: 1, Type: "start", Detail: map[string]any{"n": json.Number("1")}, Accepted: true},
		{Seq: 2, Type: "secret", Public: true},
	}, trace.Triggers)
	assert.Equal(t, []string{"start", "hot"}, ir.SelectedTypes(trace.Selections))
	assert.Nil(t, trace.Selections[1].Detail)
	require.Len(t, trace.Bids, 2)
	assert.True(t, trace.Bids[0].Trigger)
	assert.Equal(t, "mixer", trace.Bids[1].BlockedBy)
	assert.Equal(t, []ir.Diagnostic{{Step: 5, Kind: "bthreads_warning", Thread: "idle", Message: "empty"}}, trace.Diagnostics)
}

func TestWriteStep_DuplicateIsIgnored(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteRun(ctx, createTestRun("r1")))

	sel := ir.Selection{Step: 1, Type: "a", Thread: "t"}
	require.NoError(t, s.WriteStep(ctx, "r1", sel, []ir.Bid{{Step: 1, Thread: "t", Type: "a", Selected: true}}))
	require.NoError(t, s.WriteStep(ctx, "r1", sel, []ir.Bid{{Step: 1, Thread: "t", Type: "a", Selected: true}}))

	sels, err := s.ReadSelections(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, sels, 1)
}
