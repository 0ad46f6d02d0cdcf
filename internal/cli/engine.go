package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/bprogram/internal/config"
	"github.com/roach88/bprogram/internal/engine"
	"github.com/roach88/bprogram/internal/ir"
	"github.com/roach88/bprogram/internal/program"
)

// Threads and the strategy draw from separate sources seeded alike, so a
// replay that swaps the strategy still sees the same shuffles and random
// requests.
func threadRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

func strategyRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, ^seed))
}

// resolveStrategy picks the strategy name: the flag when given, then the
// program's own, then the configuration.
func resolveStrategy(flag string, p *ir.Program, cfg *config.Config) string {
	switch {
	case flag != "":
		return flag
	case p.Strategy != "":
		return p.Strategy
	case cfg.Engine.Strategy != "":
		return cfg.Engine.Strategy
	}
	return engine.StrategyPriority
}

// engineFlags are the flags shared by commands that build an engine.
type engineFlags struct {
	Program  string
	Strategy string
	Seed     uint64
	MaxSteps int
}

func (f *engineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Program, "program", "", "program name, for files that declare several")
	cmd.Flags().StringVar(&f.Strategy, "strategy", "", "selection strategy (priority|randomized|chaotic)")
	cmd.Flags().Uint64Var(&f.Seed, "seed", 0, "random seed")
	cmd.Flags().IntVar(&f.MaxSteps, "max-steps", engine.DefaultMaxSteps, "selections allowed per trigger (0 = unlimited)")
}

// seed returns the flag value when set, otherwise the configured seed.
func (f *engineFlags) seed(cmd *cobra.Command, cfg *config.Config) uint64 {
	if cmd.Flags().Changed("seed") {
		return f.Seed
	}
	return uint64(cfg.Engine.Seed)
}

// options returns the engine options for the budget: flag, then config.
func (f *engineFlags) options(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) []engine.Option {
	opts := []engine.Option{engine.WithLogger(logger)}
	opts = append(opts, cfg.EngineOptions()...)
	if cmd.Flags().Changed("max-steps") {
		opts = append(opts, engine.WithMaxSteps(f.MaxSteps))
	}
	return opts
}

// instantiate builds a live instance of p with the named strategy.
func instantiate(p *ir.Program, strategyName string, seed uint64, opts ...engine.Option) (*engine.Instance, error) {
	strategy, err := engine.ParseStrategy(strategyName, strategyRand(seed))
	if err != nil {
		return nil, err
	}
	return program.Instantiate(p, threadRand(seed), append(opts, engine.WithStrategy(strategy))...)
}

// parseTrigger reads "type" or "type=<json detail>".
func parseTrigger(s string) (engine.Event, error) {
	typ, raw, hasDetail := strings.Cut(s, "=")
	if typ == "" {
		return engine.Event{}, fmt.Errorf("trigger %q: event type is empty", s)
	}
	if !hasDetail {
		return engine.Event{Type: typ}, nil
	}
	detail, err := parseDetail(raw)
	if err != nil {
		return engine.Event{}, fmt.Errorf("trigger %q: %w", s, err)
	}
	return engine.Event{Type: typ, Detail: detail}, nil
}

// parseDetail decodes a JSON detail. Integers stay int64 so they survive
// canonical JSON and the CBOR wire unchanged.
func parseDetail(raw string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid detail JSON: %w", err)
	}
	return plainNumbers(v), nil
}

func plainNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case []any:
		for i := range val {
			val[i] = plainNumbers(val[i])
		}
	case map[string]any:
		for k := range val {
			val[k] = plainNumbers(val[k])
		}
	}
	return v
}

// printSelections renders selections and diagnostics in step order, each
// diagnostic after the selection of its step.
func printSelections(w io.Writer, sels []ir.Selection, diags []ir.Diagnostic) {
	d := 0
	flush := func(upTo int64) {
		for ; d < len(diags) && diags[d].Step <= upTo; d++ {
			warnLine(w, "  [%d] %s: %s", diags[d].Step, diags[d].Kind, diags[d].Message)
		}
	}
	for _, sel := range sels {
		flush(sel.Step - 1)
		cyan.Fprintf(w, "  [%d] ", sel.Step)
		fmt.Fprintf(w, "%-16s %s", sel.Type, sel.Thread)
		if sel.Detail != nil {
			if data, err := json.Marshal(sel.Detail); err == nil {
				fmt.Fprintf(w, " %s", data)
			}
		}
		fmt.Fprintln(w)
		flush(sel.Step)
	}
	flush(1<<63 - 1)
}
