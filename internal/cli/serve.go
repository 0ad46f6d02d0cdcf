package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/roach88/bprogram/internal/bridge"
	"github.com/roach88/bprogram/internal/config"
	"github.com/roach88/bprogram/internal/program"
	"github.com/roach88/bprogram/internal/store"
)

// bridgeFlags are the Redis flags of serve and trigger. Unset flags fall
// back to the [bridge] section of the configuration.
type bridgeFlags struct {
	Redis   string
	Channel string
	Origin  string
}

func (f *bridgeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Redis, "redis", "", "Redis address (default: bridge.addr from the configuration)")
	cmd.Flags().StringVar(&f.Channel, "channel", "", "pub/sub channel (default: bridge.channel from the configuration)")
	cmd.Flags().StringVar(&f.Origin, "origin", "", "identity stamped on published events (default: generated)")
}

func (f *bridgeFlags) resolve(cfg *config.Config, prefix string) (addr, channel, origin string) {
	addr, channel, origin = f.Redis, f.Channel, f.Origin
	if addr == "" {
		addr = cfg.Bridge.Addr
	}
	if channel == "" {
		channel = cfg.Bridge.Channel
	}
	if origin == "" {
		origin = cfg.Bridge.Origin
	}
	if origin == "" {
		origin = prefix + "-" + uuid.NewString()
	}
	return addr, channel, origin
}

// connect opens a Redis client and checks it is reachable.
func connect(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("redis at %s is unreachable", addr), err)
	}
	return rdb, nil
}

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	engineFlags
	bridgeFlags
	Forward  []string
	Database string

	// IDs allows overriding the run ID generator (for testing).
	IDs store.RunIDGenerator
}

// ServeResult summarizes a serve session after shutdown.
type ServeResult struct {
	Program string `json:"program"`
	Channel string `json:"channel"`
	Origin  string `json:"origin"`
	Steps   int64  `json:"steps"`
	RunID   string `json:"run_id,omitempty"`
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve <program-file>",
		Short: "Host a program behind a Redis channel",
		Long: `Host an engine built from a program file and feed it every event
published on a Redis pub/sub channel. Inbound events pass through the
program's public-event gate. Selected events listed with --forward are
published back to the channel for other peers.

The engine runs until interrupted (Ctrl-C or SIGTERM).

Example:
  bpctl serve ./door.yaml --redis localhost:6379 --channel house
  bpctl serve ./door.yaml --channel house --forward opened --db ./traces.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, args[0], cmd)
		},
	}

	opts.engineFlags.register(cmd)
	opts.bridgeFlags.register(cmd)
	cmd.Flags().StringSliceVar(&opts.Forward, "forward", nil, "event types to publish when selected")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the session in this SQLite database")

	return cmd
}

func runServe(opts *ServeOptions, file string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	cfg := opts.config()
	logger := opts.logger()

	p, err := program.Load(file, opts.Program)
	if err != nil {
		_ = formatter.Error(ErrCodeLoad, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load program", err)
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	addr, channel, origin := opts.bridgeFlags.resolve(cfg, "bpctl-serve")
	rdb, err := connect(ctx, addr)
	if err != nil {
		return err
	}
	defer rdb.Close()

	seed := opts.seed(cmd, cfg)
	strategy := resolveStrategy(opts.Strategy, p, cfg)
	inst, err := instantiate(p, strategy, seed, opts.options(cmd, cfg, logger)...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build engine", err)
	}
	defer inst.Disconnect()

	result := ServeResult{Program: p.Name, Channel: channel, Origin: origin}
	trigger := inst.Trigger

	var rec *store.Recorder
	if dbPath := firstNonEmpty(opts.Database, cfg.Store.Path); dbPath != "" {
		st, err := store.Open(dbPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()

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
			return WrapExitError(ExitFailure, "failed to record session", err)
		}
		inst.AddDisconnect(disconnect)
		trigger = rec.Trigger(inst.Engine, true)
		result.RunID = rec.Run().ID
	}

	b, err := bridge.New(rdb, channel, origin, trigger, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create bridge", err)
	}
	if len(opts.Forward) > 0 {
		inst.AddDisconnect(inst.Engine.UseFeedback(b.Forwarder(ctx, opts.Forward...)))
	}

	if !formatter.JSON() {
		fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on %s (channel %s, origin %s)\n", p.Name, addr, channel, origin)
		fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")
	}
	logger.Info("engine serving", "program", p.Name, "channel", channel, "origin", origin)

	if err := b.Run(ctx); err != nil {
		return WrapExitError(ExitFailure, "bridge error", err)
	}

	result.Steps = inst.Engine.Step()
	if rec != nil {
		if err := rec.Err(); err != nil {
			return WrapExitError(ExitFailure, "failed to record session", err)
		}
	}
	logger.Info("engine stopped gracefully", "steps", result.Steps)

	return formatter.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "Stopped after %d selections\n", result.Steps)
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
