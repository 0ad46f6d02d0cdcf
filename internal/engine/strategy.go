package engine

import (
	"fmt"
	"math/rand/v2"
	"sort"
)

// Candidate is a requested event that no active Block or Interrupt vetoes.
type Candidate struct {
	Thread   string
	Priority int
	Type     string
	Detail   any
	Trigger  bool
}

// Event returns the event the candidate proposes.
func (c Candidate) Event() Event {
	return Event{Type: c.Type, Detail: c.Detail}
}

// Strategy picks the winner among eligible candidates. Candidates arrive in
// priority order, ties in declaration order. Returning false selects
// nothing and idles the engine.
type Strategy func(candidates []Candidate) (Candidate, bool)

// Strategy names accepted by ParseStrategy.
const (
	StrategyPriority   = "priority"
	StrategyRandomized = "randomized"
	StrategyChaotic    = "chaotic"
)

// PriorityStrategy selects the lowest priority number; among equal
// priorities the first declared wins.
func PriorityStrategy(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	best := 0
	for i := 1; i < len(candidates); i++ {
		if candidates[i].Priority < candidates[best].Priority {
			best = i
		}
	}
	return candidates[best], true
}

// RandomizedStrategy shuffles the candidates before a stable priority sort,
// so the lowest priority still wins but ties are broken at random.
func RandomizedStrategy(r *rand.Rand) Strategy {
	return func(candidates []Candidate) (Candidate, bool) {
		if len(candidates) == 0 {
			return Candidate{}, false
		}
		shuffled := Shuffle(r, candidates)
		sort.SliceStable(shuffled, func(i, j int) bool {
			return shuffled[i].Priority < shuffled[j].Priority
		})
		return shuffled[0], true
	}
}

// ChaoticStrategy ignores priority and picks any candidate uniformly. It is
// meant for fuzzing programs whose safety should not depend on priority.
func ChaoticStrategy(r *rand.Rand) Strategy {
	return func(candidates []Candidate) (Candidate, bool) {
		if len(candidates) == 0 {
			return Candidate{}, false
		}
		return candidates[intN(r, len(candidates))], true
	}
}

// ParseStrategy resolves a strategy name. The empty name means priority.
func ParseStrategy(name string, r *rand.Rand) (Strategy, error) {
	switch name {
	case "", StrategyPriority:
		return PriorityStrategy, nil
	case StrategyRandomized:
		return RandomizedStrategy(r), nil
	case StrategyChaotic:
		return ChaoticStrategy(r), nil
	default:
		return nil, &RuntimeError{
			Code:    ErrCodeUnknownStrategy,
			Message: fmt.Sprintf("unknown strategy %q: must be %s, %s or %s", name, StrategyPriority, StrategyRandomized, StrategyChaotic),
		}
	}
}

// Replay re-selects a recorded sequence of event types. At step i it picks
// the candidate whose type equals the i-th recorded type, preferring the
// recorded thread when one is known and the first such candidate otherwise. When the
// recorded type is not among the candidates the replay has diverged and
// selects nothing from then on.
type Replay struct {
	types    []string
	threads  []string
	pos      int
	diverged bool
	want     string
	got      []string
}

// NewReplay creates a replay over the recorded selection types.
func NewReplay(types []string) *Replay {
	cp := make([]string, len(types))
	copy(cp, types)
	return &Replay{types: cp}
}

// PreferThreads sets the recorded selecting thread for each step, so that
// bids sharing a type are told apart.
func (r *Replay) PreferThreads(threads []string) *Replay {
	r.threads = append([]string(nil), threads...)
	return r
}

// Strategy returns the Strategy view of the replay.
func (r *Replay) Strategy() Strategy {
	return r.choose
}

func (r *Replay) choose(candidates []Candidate) (Candidate, bool) {
	if r.diverged || len(candidates) == 0 {
		return Candidate{}, false
	}
	if r.pos >= len(r.types) {
		r.diverged = true
		r.got = candidateTypes(candidates)
		return Candidate{}, false
	}
	want := r.types[r.pos]
	pick := -1
	for i, c := range candidates {
		if c.Type != want {
			continue
		}
		if pick < 0 {
			pick = i
		}
		if r.pos < len(r.threads) && c.Thread == r.threads[r.pos] {
			pick = i
			break
		}
	}
	if pick >= 0 {
		r.pos++
		return candidates[pick], true
	}
	r.diverged = true
	r.want = want
	r.got = candidateTypes(candidates)
	return Candidate{}, false
}

// Pos returns how many recorded selections have been reproduced.
func (r *Replay) Pos() int {
	return r.pos
}

// Complete reports whether every recorded selection was reproduced and
// nothing extra was offered.
func (r *Replay) Complete() bool {
	return !r.diverged && r.pos == len(r.types)
}

// Divergence describes where the replay stopped matching. ok is false when
// the replay has not diverged.
func (r *Replay) Divergence() (step int, want string, candidates []string, ok bool) {
	if !r.diverged {
		return 0, "", nil, false
	}
	return r.pos, r.want, r.got, true
}

func candidateTypes(candidates []Candidate) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.Type
	}
	return out
}
