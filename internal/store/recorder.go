package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/bprogram/internal/engine"
	"github.com/roach88/bprogram/internal/ir"
)

// RunConfig describes a run about to be recorded.
type RunConfig struct {
	Program  *ir.Program
	Strategy string
	Seed     int64
	IDs      RunIDGenerator // default UUIDv7Generator
}

// Recorder persists the snapshots and triggers of one engine as a run.
//
// A Recorder is driven from the engine's goroutine: it writes
// synchronously inside the snapshot listener. Write failures are logged
// and the first one is kept for Err; they never reach the engine.
type Recorder struct {
	store  *Store
	ctx    context.Context
	logger *slog.Logger
	run    ir.Run

	triggerSeq int64
	diagIdx    int
	err        error
}

// NewRecorder prepares the run record; Attach writes it. The run starts at
// the engine clock's step when Attach is called.
func NewRecorder(ctx context.Context, s *Store, cfg RunConfig, logger *slog.Logger) (*Recorder, error) {
	if cfg.Program == nil {
		return nil, fmt.Errorf("new recorder: program is required")
	}
	if cfg.IDs == nil {
		cfg.IDs = UUIDv7Generator{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	programJSON, err := ir.MarshalCanonical(cfg.Program)
	if err != nil {
		return nil, fmt.Errorf("new recorder: %w", err)
	}
	hash, err := ir.ProgramHash(*cfg.Program)
	if err != nil {
		return nil, fmt.Errorf("new recorder: %w", err)
	}
	strategy := cfg.Strategy
	if strategy == "" {
		strategy = engine.StrategyPriority
	}

	return &Recorder{
		store:  s,
		ctx:    ctx,
		logger: logger,
		run: ir.Run{
			ID:          cfg.IDs.Generate(),
			ProgramName: cfg.Program.Name,
			ProgramHash: hash,
			ProgramJSON: string(programJSON),
			Strategy:    strategy,
			Seed:        cfg.Seed,
		},
	}, nil
}

// Run returns the run record.
func (r *Recorder) Run() ir.Run {
	return r.run
}

// Err returns the first write failure, if any.
func (r *Recorder) Err() error {
	return r.err
}

// Attach writes the run record and subscribes to e's snapshots.
func (r *Recorder) Attach(e *engine.Engine) (engine.Disconnect, error) {
	r.run.StartStep = e.Step()
	if err := r.store.WriteRun(r.ctx, r.run); err != nil {
		return nil, err
	}
	return e.UseSnapshot(r.Record), nil
}

// Trigger returns a trigger for e that records every event before
// forwarding it. With public set the event goes through the public gate
// and is recorded as refused when the gate drops it.
func (r *Recorder) Trigger(e *engine.Engine, public bool) engine.TriggerFunc {
	next := e.Trigger
	if public {
		next = e.PublicTrigger()
	}
	return func(ev engine.Event) {
		r.triggerSeq++
		r.keep(r.store.WriteTrigger(r.ctx, r.run.ID, ir.Trigger{
			Seq:      r.triggerSeq,
			Type:     ev.Type,
			Detail:   ev.Detail,
			Public:   public,
			Accepted: !public || e.IsPublic(ev.Type),
		}))
		next(ev)
	}
}

// Record persists one snapshot. It is the listener Attach installs.
func (r *Recorder) Record(msg engine.SnapshotMessage) {
	if msg.Kind == engine.KindSelection {
		sel, bids := StepRecords(msg)
		r.keep(r.store.WriteStep(r.ctx, r.run.ID, sel, bids))
		return
	}
	r.diagIdx++
	r.keep(r.store.WriteDiagnostic(r.ctx, r.run.ID, r.diagIdx, DiagnosticRecord(msg)))
}

func (r *Recorder) keep(err error) {
	if err == nil {
		return
	}
	r.logger.Error("recording failed", "run", r.run.ID, "error", err)
	if r.err == nil {
		r.err = err
	}
}

// StepRecords converts a selection snapshot into its selection and bid
// records. The selection is the bid the strategy chose.
func StepRecords(msg engine.SnapshotMessage) (ir.Selection, []ir.Bid) {
	sel := ir.Selection{Step: msg.Step}
	if b, ok := msg.Selected(); ok {
		sel.Type = b.Type
		sel.Detail = b.Detail
		sel.Thread = b.Thread
		sel.Priority = b.Priority
	}
	bids := make([]ir.Bid, len(msg.Bids))
	for i, b := range msg.Bids {
		bids[i] = ir.Bid{
			Step:       msg.Step,
			Index:      i,
			Thread:     b.Thread,
			Type:       b.Type,
			Trigger:    b.Trigger,
			Selected:   b.Selected,
			Priority:   b.Priority,
			BlockedBy:  b.BlockedBy,
			Interrupts: b.Interrupts,
		}
	}
	return sel, bids
}

// DiagnosticRecord converts a non-selection snapshot.
func DiagnosticRecord(msg engine.SnapshotMessage) ir.Diagnostic {
	text := msg.Error
	if text == "" {
		text = msg.Warning
	}
	return ir.Diagnostic{
		Step:    msg.Step,
		Kind:    string(msg.Kind),
		Thread:  msg.Thread,
		Type:    msg.Type,
		Message: text,
	}
}
