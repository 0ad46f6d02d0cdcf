package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/bprogram/internal/engine"
	"github.com/roach88/bprogram/internal/ir"
	"github.com/roach88/bprogram/internal/program"
	"github.com/roach88/bprogram/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	engineFlags
	Triggers []string
	Public   bool
	Database string

	// IDs allows overriding the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDs store.RunIDGenerator
}

// RunResult is the outcome of one run.
type RunResult struct {
	Program     string          `json:"program"`
	ProgramHash string          `json:"program_hash"`
	Strategy    string          `json:"strategy"`
	Seed        uint64          `json:"seed"`
	RunID       string          `json:"run_id,omitempty"` // set when recorded
	Selections  []ir.Selection  `json:"selections"`
	Diagnostics []ir.Diagnostic `json:"diagnostics"`
	Threads     []string        `json:"threads"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <program-file>",
		Short: "Run a program against a sequence of triggers",
		Long: `Build an engine from a program file, offer each --trigger in order
and print every selection. Each trigger is "type" or "type=<json detail>".

With --db (or store.path in the configuration) the run is recorded in a
SQLite trace store for later trace and replay.

Example:
  bpctl run ./hot_cold.cue --trigger start
  bpctl run ./door.yaml --trigger 'open={"door":"front"}' --public
  bpctl run ./hot_cold.cue --trigger start --db ./traces.db --strategy randomized --seed 7`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgram(opts, args[0], cmd)
		},
	}

	opts.engineFlags.register(cmd)
	cmd.Flags().StringArrayVarP(&opts.Triggers, "trigger", "t", nil, "event to trigger, type[=json] (repeatable)")
	cmd.Flags().BoolVar(&opts.Public, "public", false, "send triggers through the public-event gate")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite database")

	return cmd
}

func runProgram(opts *RunOptions, file string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	cfg := opts.config()
	logger := opts.logger()
	ctx := cmd.Context()

	p, err := program.Load(file, opts.Program)
	if err != nil {
		_ = formatter.Error(ErrCodeLoad, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load program", err)
	}
	events := make([]engine.Event, 0, len(opts.Triggers))
	for _, t := range opts.Triggers {
		ev, err := parseTrigger(t)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid trigger", err)
		}
		events = append(events, ev)
	}

	seed := opts.seed(cmd, cfg)
	strategy := resolveStrategy(opts.Strategy, p, cfg)
	inst, err := instantiate(p, strategy, seed, opts.options(cmd, cfg, logger)...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build engine", err)
	}
	defer inst.Disconnect()

	result := RunResult{
		Program:     p.Name,
		ProgramHash: ir.MustProgramHash(*p),
		Strategy:    strategy,
		Seed:        seed,
		Selections:  []ir.Selection{},
		Diagnostics: []ir.Diagnostic{},
	}
	inst.AddDisconnect(inst.Engine.UseSnapshot(func(msg engine.SnapshotMessage) {
		if msg.Kind == engine.KindSelection {
			sel, _ := store.StepRecords(msg)
			result.Selections = append(result.Selections, sel)
			return
		}
		result.Diagnostics = append(result.Diagnostics, store.DiagnosticRecord(msg))
	}))

	trigger := inst.Engine.Trigger
	if opts.Public {
		trigger = inst.Engine.PublicTrigger()
	}

	var rec *store.Recorder
	dbPath := opts.Database
	if dbPath == "" {
		dbPath = cfg.Store.Path
	}
	if dbPath != "" {
		st, err := store.Open(dbPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()

		rec, err = store.NewRecorder(ctx, st, store.RunConfig{
			Program:  p,
			Strategy: strategy,
			Seed:     int64(seed),
			IDs:      opts.IDs,
		}, logger)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to create recorder", err)
		}
		disconnect, err := rec.Attach(inst.Engine)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to record run", err)
		}
		inst.AddDisconnect(disconnect)
		trigger = rec.Trigger(inst.Engine, opts.Public)
		result.RunID = rec.Run().ID
	}

	logger.Info("run starting", "program", p.Name, "strategy", strategy, "seed", seed, "triggers", len(events))
	for _, ev := range events {
		formatter.VerboseLog("Triggering %s", ev.Type)
		trigger(ev)
	}
	result.Threads = inst.Engine.Threads().Names()
	logger.Info("run finished", "program", p.Name, "steps", inst.Engine.Step())

	if rec != nil {
		if err := rec.Err(); err != nil {
			return WrapExitError(ExitFailure, "failed to record run", err)
		}
	}

	return formatter.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "Program %s (strategy %s, seed %d)\n", result.Program, result.Strategy, result.Seed)
		printSelections(w, result.Selections, result.Diagnostics)
		fmt.Fprintf(w, "Threads: %s\n", strings.Join(result.Threads, ", "))
		if result.RunID != "" {
			fmt.Fprintf(w, "Recorded run %s in %s\n", result.RunID, dbPath)
		}
	})
}
