package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/bprogram/internal/engine"
	"github.com/roach88/bprogram/internal/ir"
	"github.com/roach88/bprogram/internal/program"
	"github.com/roach88/bprogram/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string
}

// ReplayResult holds the outcome of re-executing a recorded run.
type ReplayResult struct {
	RunID         string   `json:"run_id"`
	Program       string   `json:"program"`
	Recorded      int      `json:"recorded"`
	Reproduced    int      `json:"reproduced"`
	Deterministic bool     `json:"deterministic"`
	Divergence    string   `json:"divergence,omitempty"`
	Candidates    []string `json:"candidates,omitempty"` // offered at the divergent step
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-execute a recorded run and verify determinism",
		Long: `Rebuild the engine of a recorded run from its stored program and
seed, offer the recorded triggers again and force every step to select the
recorded event. The run is deterministic when every recorded selection is
reproduced by the same thread and nothing else becomes selectable.

Exit codes:
  0 - The run is deterministic
  1 - The replay diverged
  2 - Command error (database not found, etc.)

Examples:
  bpctl replay --db ./traces.db
  bpctl replay --db ./traces.db --run 0190f...
  bpctl replay --db ./traces.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default: store.path from the configuration)")
	cmd.Flags().StringVar(&opts.RunID, "run", "latest", "run to replay")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	st, err := openExistingStore(opts.Database, opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	trace, err := readRun(cmd.Context(), st, opts.RunID)
	if err != nil {
		return err
	}
	result, err := replayTrace(trace, opts.logger())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to replay run", err)
	}

	if !result.Deterministic {
		msg := fmt.Sprintf("run %s diverged: %s", result.RunID, result.Divergence)
		if err := formatter.Failure(ErrCodeDivergent, msg, result, func(w io.Writer) {
			fail(w, "%s", msg)
			if len(result.Candidates) > 0 {
				fmt.Fprintf(w, "  candidates: %v\n", result.Candidates)
			}
			fmt.Fprintf(w, "  reproduced %d of %d selections\n", result.Reproduced, result.Recorded)
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}

	return formatter.Success(result, func(w io.Writer) {
		pass(w, "run %s is deterministic (%d selections)", result.RunID, result.Recorded)
	})
}

// replayTrace re-executes a recorded run under the replay strategy.
func replayTrace(trace store.Trace, logger *slog.Logger) (ReplayResult, error) {
	run := trace.Run
	result := ReplayResult{
		RunID:    run.ID,
		Program:  run.ProgramName,
		Recorded: len(trace.Selections),
	}

	var p ir.Program
	if err := json.Unmarshal([]byte(run.ProgramJSON), &p); err != nil {
		return result, fmt.Errorf("decode stored program: %w", err)
	}
	if err := program.Check(&p); err != nil {
		return result, err
	}

	replay := engine.NewReplay(ir.SelectedTypes(trace.Selections)).
		PreferThreads(ir.SelectedThreads(trace.Selections))
	inst, err := program.Instantiate(&p, threadRand(uint64(run.Seed)),
		engine.WithLogger(logger),
		engine.WithClock(engine.NewClockAt(run.StartStep)),
		engine.WithMaxSteps(0),
		engine.WithStrategy(replay.Strategy()),
	)
	if err != nil {
		return result, err
	}
	defer inst.Disconnect()

	var got []ir.Selection
	inst.AddDisconnect(inst.Engine.UseSnapshot(func(msg engine.SnapshotMessage) {
		if msg.Kind == engine.KindSelection {
			sel, _ := store.StepRecords(msg)
			got = append(got, sel)
		}
	}))

	public := inst.Engine.PublicTrigger()
	for _, t := range trace.Triggers {
		ev := engine.Event{Type: t.Type, Detail: t.Detail}
		if t.Public {
			public(ev)
		} else {
			inst.Engine.Trigger(ev)
		}
	}

	result.Reproduced = replay.Pos()
	if step, want, candidates, diverged := replay.Divergence(); diverged {
		switch {
		case want != "":
			result.Divergence = fmt.Sprintf("step %d: recorded %q is not selectable", step+1, want)
		case stoppedByBudget(trace):
			// The recorded drain was cut short; the replay offering more is
			// expected.
			diverged = false
		default:
			result.Divergence = fmt.Sprintf("step %d: events selectable after the recorded run ended", step+1)
		}
		if diverged {
			result.Candidates = candidates
			return result, nil
		}
	}
	if len(got) != result.Recorded {
		result.Divergence = fmt.Sprintf("only %d of %d recorded selections reproduced", len(got), result.Recorded)
		return result, nil
	}

	for i, sel := range got {
		want := trace.Selections[i]
		if sel.Thread != want.Thread || sel.Step != want.Step {
			result.Divergence = fmt.Sprintf("step %d: %s selected from %s, recorded from %s", want.Step, sel.Type, sel.Thread, want.Thread)
			return result, nil
		}
	}

	result.Deterministic = true
	return result, nil
}

func stoppedByBudget(trace store.Trace) bool {
	return slices.ContainsFunc(trace.Diagnostics, func(d ir.Diagnostic) bool {
		return d.Kind == string(engine.KindStepsExceeded)
	})
}
