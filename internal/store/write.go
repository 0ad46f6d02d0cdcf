package store

import (
	"context"
	"fmt"

	"github.com/roach88/bprogram/internal/ir"
)

// WriteRun inserts a run record. created_seq is assigned by the store as
// one past the highest existing value.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) WriteRun(ctx context.Context, run ir.Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, program_name, program_hash, program_json, strategy, seed, start_step, created_seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(created_seq), 0) + 1 FROM runs))
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.ProgramName,
		run.ProgramHash,
		run.ProgramJSON,
		run.Strategy,
		run.Seed,
		run.StartStep,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// WriteTrigger records an event offered to a run.
//
// Note: The run referenced by runID must exist (foreign key constraint).
func (s *Store) WriteTrigger(ctx context.Context, runID string, t ir.Trigger) error {
	detail, err := marshalDetail(t.Detail)
	if err != nil {
		return fmt.Errorf("write trigger: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO triggers (run_id, seq, type, detail, public, accepted)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		runID, t.Seq, t.Type, detail, boolToInt(t.Public), boolToInt(t.Accepted),
	)
	if err != nil {
		return fmt.Errorf("write trigger: %w", err)
	}
	return nil
}

// WriteStep records one selection together with every bid of its step in
// a single transaction, so a step is either fully recorded or absent.
//
// Note: The run referenced by runID must exist (foreign key constraint).
func (s *Store) WriteStep(ctx context.Context, runID string, sel ir.Selection, bids []ir.Bid) error {
	detail, err := marshalDetail(sel.Detail)
	if err != nil {
		return fmt.Errorf("write step: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write step: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO selections (run_id, step, type, detail, thread, priority)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, step) DO NOTHING
	`,
		runID, sel.Step, sel.Type, detail, sel.Thread, sel.Priority,
	); err != nil {
		return fmt.Errorf("write step: selection: %w", err)
	}

	for _, b := range bids {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bids
			(run_id, step, idx, thread, type, is_trigger, selected, priority, blocked_by, interrupts)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, step, idx) DO NOTHING
		`,
			runID, b.Step, b.Index, b.Thread, b.Type,
			boolToInt(b.Trigger), boolToInt(b.Selected), b.Priority,
			b.BlockedBy, b.Interrupts,
		); err != nil {
			return fmt.Errorf("write step: bid %d: %w", b.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write step: commit: %w", err)
	}
	return nil
}

// WriteDiagnostic records a non-selection snapshot. idx orders diagnostics
// within a run.
func (s *Store) WriteDiagnostic(ctx context.Context, runID string, idx int, d ir.Diagnostic) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO diagnostics (run_id, idx, step, kind, thread, type, message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, idx) DO NOTHING
	`,
		runID, idx, d.Step, d.Kind, d.Thread, d.Type, d.Message,
	)
	if err != nil {
		return fmt.Errorf("write diagnostic: %w", err)
	}
	return nil
}
