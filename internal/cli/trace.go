package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/bprogram/internal/ir"
	"github.com/roach88/bprogram/internal/queryir"
	"github.com/roach88/bprogram/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - "latest" or a run ID; lists runs when empty
	Bids     bool
	Where    []string
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded runs",
		Long: `List the runs recorded in a trace store, or show one run: its
triggers, selections and diagnostics, and with --bids every bid of every
step together with what blocked it.

--where keeps only the selections and bids matching every expression
<field><op><value>, where op is one of = != < <= > >=. Fields are step,
type, thread and priority; bids also have idx, is_trigger, selected,
blocked_by and interrupts.

Examples:
  bpctl trace --db ./traces.db
  bpctl trace --db ./traces.db --run latest
  bpctl trace --db ./traces.db --run 0190f... --bids --format json
  bpctl trace --db ./traces.db --run latest --where type=hot --where 'step>=3'`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default: store.path from the configuration)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", `run to show ("latest" for the most recent)`)
	cmd.Flags().BoolVar(&opts.Bids, "bids", false, "show every bid of every step")
	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "filter selections and bids, e.g. type=hot or step>=3 (repeatable)")

	return cmd
}

// openExistingStore opens a trace store that must already exist.
func openExistingStore(flag string, opts *RootOptions) (*store.Store, error) {
	path := flag
	if path == "" {
		path = opts.config().Store.Path
	}
	if path == "" {
		return nil, NewExitError(ExitCommandError, "no database given: use --db or set store.path")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path))
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// readRun resolves a run ID ("latest" or empty means the newest run) and
// loads its trace.
func readRun(ctx context.Context, st *store.Store, runID string) (store.Trace, error) {
	if runID == "" || runID == "latest" {
		run, err := st.LatestRun(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return store.Trace{}, NewExitError(ExitCommandError, "database has no runs")
		}
		if err != nil {
			return store.Trace{}, WrapExitError(ExitCommandError, "failed to read runs", err)
		}
		runID = run.ID
	}
	trace, err := st.ReadTrace(ctx, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Trace{}, NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", runID))
	}
	if err != nil {
		return store.Trace{}, WrapExitError(ExitCommandError, "failed to read run", err)
	}
	return trace, nil
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()

	st, err := openExistingStore(opts.Database, opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	if opts.RunID == "" {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		return formatter.Success(runs, func(w io.Writer) { printRuns(w, runs) })
	}

	trace, err := readRun(ctx, st, opts.RunID)
	if err != nil {
		return err
	}
	if len(opts.Where) > 0 {
		if err := filterTrace(ctx, st, &trace, opts.Where, opts.Bids); err != nil {
			return err
		}
	}
	if !opts.Bids {
		trace.Bids = nil
	}
	return formatter.Success(trace, func(w io.Writer) { printTrace(w, trace) })
}

// filterTrace replaces the selections, and with bids the bids, of trace by
// the rows matching where.
func filterTrace(ctx context.Context, st *store.Store, trace *store.Trace, where []string, bids bool) error {
	selFilter, err := queryir.ParseFilter(queryir.TableSelections, where)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --where", err)
	}
	if trace.Selections, err = st.QuerySelections(ctx, trace.Run.ID, selFilter); err != nil {
		return WrapExitError(ExitCommandError, "failed to query selections", err)
	}
	if !bids {
		return nil
	}
	bidFilter, err := queryir.ParseFilter(queryir.TableBids, where)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --where", err)
	}
	if trace.Bids, err = st.QueryBids(ctx, trace.Run.ID, bidFilter); err != nil {
		return WrapExitError(ExitCommandError, "failed to query bids", err)
	}
	return nil
}

func printRuns(w io.Writer, runs []ir.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	for _, r := range runs {
		cyan.Fprintf(w, "%s", r.ID)
		fmt.Fprintf(w, "  %s (strategy %s, seed %d)\n", r.ProgramName, r.Strategy, r.Seed)
	}
}

func printTrace(w io.Writer, t store.Trace) {
	r := t.Run
	fmt.Fprintf(w, "Run %s\n", r.ID)
	fmt.Fprintf(w, "  program:  %s (%s)\n", r.ProgramName, r.ProgramHash)
	fmt.Fprintf(w, "  strategy: %s, seed %d\n", r.Strategy, r.Seed)

	fmt.Fprintln(w, "\nTriggers:")
	for _, tr := range t.Triggers {
		status := "accepted"
		if !tr.Accepted {
			status = "refused"
		}
		gate := ""
		if tr.Public {
			gate = " (public)"
		}
		fmt.Fprintf(w, "  #%d %s%s %s\n", tr.Seq, tr.Type, gate, status)
	}

	fmt.Fprintln(w, "\nSelections:")
	printSelections(w, t.Selections, t.Diagnostics)

	if len(t.Bids) > 0 {
		fmt.Fprintln(w, "\nBids:")
		for _, b := range t.Bids {
			mark := " "
			if b.Selected {
				mark = "*"
			}
			fmt.Fprintf(w, "  [%d] %s %-16s %s (priority %d)", b.Step, mark, b.Type, b.Thread, b.Priority)
			if b.BlockedBy != "" {
				yellow.Fprintf(w, " blocked by %s", b.BlockedBy)
			}
			if b.Interrupts != "" {
				yellow.Fprintf(w, " interrupts %s", b.Interrupts)
			}
			fmt.Fprintln(w)
		}
	}
}
