// Package program turns declarative programs into live engine threads.
package program

import (
	"fmt"
	"math/rand/v2"

	"github.com/roach88/bprogram/internal/compiler"
	"github.com/roach88/bprogram/internal/engine"
	"github.com/roach88/bprogram/internal/ir"
)

// InvalidError reports a program that failed validation.
type InvalidError struct {
	Program  string
	Findings []compiler.ValidationError
}

func (e *InvalidError) Error() string {
	var first compiler.ValidationError
	errs := 0
	for _, f := range e.Findings {
		if f.Severity == compiler.SeverityWarning {
			continue
		}
		if errs == 0 {
			first = f
		}
		errs++
	}
	if errs > 1 {
		return fmt.Sprintf("program %q is invalid: %v (and %d more)", e.Program, first, errs-1)
	}
	return fmt.Sprintf("program %q is invalid: %v", e.Program, first)
}

// Check validates p and returns an *InvalidError if any finding is an
// error. Warnings alone pass.
func Check(p *ir.Program) error {
	findings := compiler.Validate(p)
	if compiler.HasErrors(findings) {
		return &InvalidError{Program: p.Name, Findings: findings}
	}
	return nil
}

// Definition builds an engine definition for p. The program's strategy and
// public events are applied first, so opts can override them (a replay
// strategy, for instance). r feeds random strategies, shuffled threads and
// random requests; nil uses the global source.
func Definition(p *ir.Program, r *rand.Rand, opts ...engine.Option) (engine.Definition, error) {
	if err := Check(p); err != nil {
		return engine.Definition{}, err
	}
	strategy, err := engine.ParseStrategy(p.Strategy, r)
	if err != nil {
		return engine.Definition{}, err
	}
	rules, err := Rules(p, r)
	if err != nil {
		return engine.Definition{}, err
	}

	options := []engine.Option{engine.WithStrategy(strategy), engine.WithRand(r)}
	options = append(options, opts...)
	return engine.Definition{
		PublicEvents: p.PublicEvents,
		Options:      options,
		Setup: func(ctx *engine.Context) engine.Handlers {
			ctx.Threads.Set(rules...)
			return nil
		},
	}, nil
}

// Instantiate builds one running instance of p.
func Instantiate(p *ir.Program, r *rand.Rand, opts ...engine.Option) (*engine.Instance, error) {
	def, err := Definition(p, r, opts...)
	if err != nil {
		return nil, err
	}
	return engine.Define(def)(), nil
}

// Rules converts the threads of p into named rules in declaration order,
// which is also their priority order once registered.
func Rules(p *ir.Program, r *rand.Rand) ([]engine.NamedRule, error) {
	out := make([]engine.NamedRule, 0, len(p.Threads))
	for i, th := range p.Threads {
		rule, err := threadRule(th, r)
		if err != nil {
			return nil, fmt.Errorf("threads[%d] (%s): %w", i, th.Name, err)
		}
		out = append(out, engine.Named(th.Name, rule))
	}
	return out, nil
}

func threadRule(th ir.ThreadSpec, r *rand.Rand) (engine.Rule, error) {
	points := make([]engine.Rule, len(th.Syncs))
	for i, s := range th.Syncs {
		idiom, err := Idiom(s, r)
		if err != nil {
			return nil, fmt.Errorf("syncs[%d]: %w", i, err)
		}
		points[i] = engine.Sync(idiom)
	}

	body := engine.Thread(points...)
	if th.Shuffle {
		body = engine.ShuffledThread(r, points...)
	}

	switch {
	case th.Repeat == nil:
		return body, nil
	case th.Repeat.Forever:
		return engine.Loop(engine.Forever, body), nil
	case th.Repeat.Times > 0:
		return engine.LoopTimes(th.Repeat.Times, body), nil
	}
	return body, nil
}

// Idiom converts one declarative sync point. A random_request list becomes
// a template drawing one of its events per iteration.
func Idiom(s ir.SyncSpec, r *rand.Rand) (engine.Idiom, error) {
	var idiom engine.Idiom
	for _, ev := range s.Request {
		idiom.Request = append(idiom.Request, engine.Event{Type: ev.Type, Detail: ev.Detail})
	}
	if len(s.RandomRequest) > 0 {
		pool := make([]engine.Event, len(s.RandomRequest))
		for i, ev := range s.RandomRequest {
			pool[i] = engine.Event{Type: ev.Type, Detail: ev.Detail}
		}
		idiom.Template = engine.RandomEvent(r, pool...)
	}

	var err error
	if idiom.WaitFor, err = matchers(s.WaitFor); err != nil {
		return idiom, fmt.Errorf("wait_for: %w", err)
	}
	if idiom.Block, err = matchers(s.Block); err != nil {
		return idiom, fmt.Errorf("block: %w", err)
	}
	if idiom.Interrupt, err = matchers(s.Interrupt); err != nil {
		return idiom, fmt.Errorf("interrupt: %w", err)
	}
	return idiom, nil
}

func matchers(specs []ir.MatcherSpec) ([]engine.Matcher, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	out := make([]engine.Matcher, len(specs))
	for i, spec := range specs {
		m, err := NewMatcher(spec)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = m
	}
	return out, nil
}
