package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"slices"

	"github.com/roach88/bprogram/internal/engine"
	"github.com/roach88/bprogram/internal/ir"
	"github.com/roach88/bprogram/internal/program"
	"github.com/roach88/bprogram/internal/store"
	"github.com/roach88/bprogram/internal/testutil"
)

// RunID is the fixed run ID of every scenario run.
const RunID = "scenario-run"

// Harness is the test execution engine.
// It runs scenarios with a fixed run ID and a seeded random source.
type Harness struct {
	store    *store.Store
	instance *engine.Instance
	recorder *store.Recorder
	feedback *testutil.FeedbackRecorder
	logger   *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Resolve and validate the program
// 2. Build the engine, recorder and feedback handlers
// 3. Offer every trigger in order
// 4. Read the run back from the store
// 5. Evaluate assertions and the feedback expectation
//
// An error is returned when the scenario cannot run at all; failed
// expectations are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	p, err := resolveProgram(scenario)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:    st,
		feedback: testutil.NewFeedbackRecorder(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	ctx := context.Background()

	if err := h.setup(ctx, scenario, p); err != nil {
		return nil, err
	}
	defer h.instance.Disconnect()

	var snapshots []engine.SnapshotMessage
	h.instance.AddDisconnect(h.instance.Engine.UseSnapshot(func(msg engine.SnapshotMessage) {
		snapshots = append(snapshots, msg)
	}))

	for _, step := range scenario.Triggers {
		h.recorder.Trigger(h.instance.Engine, step.Public)(step.Event())
	}
	if err := h.recorder.Err(); err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}

	result := NewResult()
	result.Snapshots = snapshots
	result.Feedback = h.feedback.Entries()
	result.Threads = h.instance.Engine.Threads().Names()
	if result.Selections, err = st.ReadSelections(ctx, RunID); err != nil {
		return nil, err
	}
	if result.Diagnostics, err = st.ReadDiagnostics(ctx, RunID); err != nil {
		return nil, err
	}

	if scenario.ExpectFeedback != nil {
		if got := h.feedback.Types(); !slices.Equal(got, scenario.ExpectFeedback) {
			result.AddError((&AssertionError{
				Type:       "expect_feedback",
				Expected:   fmt.Sprintf("feedback %v", scenario.ExpectFeedback),
				Actual:     fmt.Sprintf("feedback %v", got),
				Selections: result.Selections,
			}).Error())
		}
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

// setup builds the engine instance, attaches the recorder and installs
// feedback handlers.
func (h *Harness) setup(ctx context.Context, scenario *Scenario, p *ir.Program) error {
	rng := rand.New(rand.NewPCG(scenario.Seed, scenario.Seed))
	opts := []engine.Option{engine.WithLogger(h.logger)}
	if scenario.Strategy != "" {
		s, err := engine.ParseStrategy(scenario.Strategy, rng)
		if err != nil {
			return err
		}
		opts = append(opts, engine.WithStrategy(s))
	}
	if scenario.MaxSteps != nil {
		opts = append(opts, engine.WithMaxSteps(*scenario.MaxSteps))
	}

	inst, err := program.Instantiate(p, rng, opts...)
	if err != nil {
		return err
	}
	h.instance = inst

	strategy := p.Strategy
	if scenario.Strategy != "" {
		strategy = scenario.Strategy
	}
	rec, err := store.NewRecorder(ctx, h.store, store.RunConfig{
		Program:  p,
		Strategy: strategy,
		Seed:     int64(scenario.Seed),
		IDs:      testutil.NewFixedRunIDGenerator(RunID),
	}, h.logger)
	if err != nil {
		return fmt.Errorf("failed to create recorder: %w", err)
	}
	disconnect, err := rec.Attach(inst.Engine)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	inst.AddDisconnect(disconnect)
	h.recorder = rec

	types := scenario.Feedback
	if len(types) == 0 {
		types = eventTypes(p, scenario.Triggers)
	}
	handlers := h.feedback.Handlers(types...)
	for _, typ := range scenario.PanicFeedback {
		handlers[typ] = func(any) {
			panic(fmt.Sprintf("feedback for %s failed", typ))
		}
	}
	inst.AddDisconnect(inst.Engine.UseFeedback(handlers))
	return nil
}

// resolveProgram returns the inline program or loads the program file.
func resolveProgram(s *Scenario) (*ir.Program, error) {
	if s.Program != nil {
		if err := program.Check(s.Program); err != nil {
			return nil, err
		}
		return s.Program, nil
	}
	p, err := program.Load(s.ProgramFile, s.ProgramName)
	if err != nil {
		return nil, fmt.Errorf("failed to load program: %w", err)
	}
	return p, nil
}

// eventTypes lists every event type the program may request plus the
// triggered types, sorted.
func eventTypes(p *ir.Program, triggers []TriggerStep) []string {
	seen := map[string]bool{}
	for _, th := range p.Threads {
		for _, s := range th.Syncs {
			for _, ev := range s.Request {
				seen[ev.Type] = true
			}
			for _, ev := range s.RandomRequest {
				seen[ev.Type] = true
			}
		}
	}
	for _, t := range triggers {
		seen[t.Type] = true
	}
	out := make([]string, 0, len(seen))
	for typ := range seen {
		out = append(out, typ)
	}
	slices.Sort(out)
	return out
}
