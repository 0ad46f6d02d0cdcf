package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/bprogram/internal/ir"
	"github.com/roach88/bprogram/internal/queryir"
	"github.com/roach88/bprogram/internal/querysql"
)

// Trace is everything recorded for one run.
type Trace struct {
	Run         ir.Run          `json:"run"`
	Triggers    []ir.Trigger    `json:"triggers"`
	Selections  []ir.Selection  `json:"selections"`
	Bids        []ir.Bid        `json:"bids"`
	Diagnostics []ir.Diagnostic `json:"diagnostics"`
}

// ReadTrace loads a run and all of its records.
// Returns sql.ErrNoRows (wrapped) if the run does not exist.
func (s *Store) ReadTrace(ctx context.Context, runID string) (Trace, error) {
	var t Trace
	var err error
	if t.Run, err = s.ReadRun(ctx, runID); err != nil {
		return t, err
	}
	if t.Triggers, err = s.ReadTriggers(ctx, runID); err != nil {
		return t, err
	}
	if t.Selections, err = s.ReadSelections(ctx, runID); err != nil {
		return t, err
	}
	if t.Bids, err = s.ReadBids(ctx, runID); err != nil {
		return t, err
	}
	if t.Diagnostics, err = s.ReadDiagnostics(ctx, runID); err != nil {
		return t, err
	}
	return t, nil
}

const runColumns = `id, program_name, program_hash, program_json, strategy, seed, start_step`

func scanRun(row interface{ Scan(...any) error }) (ir.Run, error) {
	var r ir.Run
	err := row.Scan(&r.ID, &r.ProgramName, &r.ProgramHash, &r.ProgramJSON, &r.Strategy, &r.Seed, &r.StartStep)
	return r, err
}

// ReadRun retrieves a single run by ID.
// Returns sql.ErrNoRows (wrapped) if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (ir.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err != nil {
		return ir.Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return r, nil
}

// LatestRun returns the most recently recorded run.
// Returns sql.ErrNoRows (wrapped) if the store is empty.
func (s *Store) LatestRun(ctx context.Context) (ir.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_seq DESC LIMIT 1`)
	r, err := scanRun(row)
	if err != nil {
		return ir.Run{}, fmt.Errorf("latest run: %w", err)
	}
	return r, nil
}

// ListRuns returns all runs in creation order.
// Returns an empty slice (not nil) if no runs exist.
func (s *Store) ListRuns(ctx context.Context) ([]ir.Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_seq ASC, id COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []ir.Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadTriggers returns the triggers of a run in the order they were offered.
func (s *Store) ReadTriggers(ctx context.Context, runID string) ([]ir.Trigger, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, type, detail, public, accepted
		FROM triggers
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query triggers: %w", err)
	}
	defer rows.Close()

	triggers := []ir.Trigger{}
	for rows.Next() {
		var t ir.Trigger
		var detail sql.NullString
		if err := rows.Scan(&t.Seq, &t.Type, &detail, &t.Public, &t.Accepted); err != nil {
			return nil, fmt.Errorf("scan trigger: %w", err)
		}
		if t.Detail, err = unmarshalDetail(detail); err != nil {
			return nil, fmt.Errorf("trigger %d: %w", t.Seq, err)
		}
		triggers = append(triggers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate triggers: %w", err)
	}
	return triggers, nil
}

// ReadSelections returns the selections of a run ordered by step.
func (s *Store) ReadSelections(ctx context.Context, runID string) ([]ir.Selection, error) {
	return s.QuerySelections(ctx, runID, nil)
}

// QuerySelections returns the selections of a run that match filter,
// ordered by step. A nil filter matches every selection.
func (s *Store) QuerySelections(ctx context.Context, runID string, filter queryir.Predicate) ([]ir.Selection, error) {
	rows, err := s.query(ctx, runID, queryir.Select{From: queryir.TableSelections, Filter: filter})
	if err != nil {
		return nil, fmt.Errorf("query selections: %w", err)
	}
	defer rows.Close()

	sels := []ir.Selection{}
	for rows.Next() {
		var sel ir.Selection
		var detail sql.NullString
		if err := rows.Scan(&sel.Step, &sel.Type, &detail, &sel.Thread, &sel.Priority); err != nil {
			return nil, fmt.Errorf("scan selection: %w", err)
		}
		if sel.Detail, err = unmarshalDetail(detail); err != nil {
			return nil, fmt.Errorf("selection %d: %w", sel.Step, err)
		}
		sels = append(sels, sel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate selections: %w", err)
	}
	return sels, nil
}

// ReadBids returns every bid of a run ordered by step, then by the bid's
// position in its snapshot (priority order).
func (s *Store) ReadBids(ctx context.Context, runID string) ([]ir.Bid, error) {
	return s.QueryBids(ctx, runID, nil)
}

// QueryBids returns the bids of a run that match filter, in ReadBids order.
func (s *Store) QueryBids(ctx context.Context, runID string, filter queryir.Predicate) ([]ir.Bid, error) {
	rows, err := s.query(ctx, runID, queryir.Select{From: queryir.TableBids, Filter: filter})
	if err != nil {
		return nil, fmt.Errorf("query bids: %w", err)
	}
	defer rows.Close()

	bids := []ir.Bid{}
	for rows.Next() {
		var b ir.Bid
		if err := rows.Scan(&b.Step, &b.Index, &b.Thread, &b.Type, &b.Trigger, &b.Selected, &b.Priority, &b.BlockedBy, &b.Interrupts); err != nil {
			return nil, fmt.Errorf("scan bid: %w", err)
		}
		bids = append(bids, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bids: %w", err)
	}
	return bids, nil
}

// query compiles q for runID and runs it.
func (s *Store) query(ctx context.Context, runID string, q queryir.Query) (*sql.Rows, error) {
	stmt, params, err := querysql.NewSQLCompiler(runID).Compile(q)
	if err != nil {
		return nil, err
	}
	return s.db.QueryContext(ctx, stmt, params...)
}

// ReadDiagnostics returns the diagnostics of a run in emission order.
func (s *Store) ReadDiagnostics(ctx context.Context, runID string) ([]ir.Diagnostic, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT step, kind, thread, type, message
		FROM diagnostics
		WHERE run_id = ?
		ORDER BY idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query diagnostics: %w", err)
	}
	defer rows.Close()

	diags := []ir.Diagnostic{}
	for rows.Next() {
		var d ir.Diagnostic
		if err := rows.Scan(&d.Step, &d.Kind, &d.Thread, &d.Type, &d.Message); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		diags = append(diags, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diagnostics: %w", err)
	}
	return diags, nil
}
