package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/bprogram/internal/bridge"
	"github.com/roach88/bprogram/internal/engine"
)

// TriggerOptions holds flags for the trigger command.
type TriggerOptions struct {
	*RootOptions
	bridgeFlags
	Detail string
}

// PublishResult describes a published event.
type PublishResult struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	Origin  string `json:"origin"`
}

// NewTriggerCommand creates the trigger command.
func NewTriggerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TriggerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trigger <event-type>",
		Short: "Publish an event to served engines",
		Long: `Publish one event on a Redis channel. Every engine served on that
channel receives it through its public-event gate.

Example:
  bpctl trigger open --channel house
  bpctl trigger open --detail '{"door":"front"}' --redis localhost:6379 --channel house`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrigger(opts, args[0], cmd)
		},
	}

	opts.bridgeFlags.register(cmd)
	cmd.Flags().StringVar(&opts.Detail, "detail", "", "event detail as JSON")

	return cmd
}

func runTrigger(opts *TriggerOptions, typ string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()

	ev := engine.Event{Type: typ}
	if opts.Detail != "" {
		detail, err := parseDetail(opts.Detail)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --detail", err)
		}
		ev.Detail = detail
	}

	addr, channel, origin := opts.bridgeFlags.resolve(opts.config(), "bpctl-trigger")
	rdb, err := connect(ctx, addr)
	if err != nil {
		return err
	}
	defer rdb.Close()

	b, err := bridge.New(rdb, channel, origin, nil, opts.logger())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create bridge", err)
	}
	if err := b.Publish(ctx, ev); err != nil {
		return WrapExitError(ExitFailure, "failed to publish", err)
	}

	result := PublishResult{Type: typ, Channel: channel, Origin: origin}
	return formatter.Success(result, func(w io.Writer) {
		pass(w, "published %s on %s", typ, channel)
	})
}
