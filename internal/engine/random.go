package engine

import "math/rand/v2"

// intN draws from r, or from the global source when r is nil.
func intN(r *rand.Rand, n int) int {
	if r == nil {
		return rand.IntN(n)
	}
	return r.IntN(n)
}

// Shuffle returns a random permutation of items using Fisher-Yates. The
// input slice is left untouched.
func Shuffle[T any](r *rand.Rand, items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	for i := len(out) - 1; i > 0; i-- {
		j := intN(r, i+1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// ShuffledThread sequences rules in a random order. The order is drawn anew
// every time the thread starts, so the same multiset of synchronization
// points is produced in a different declaration order per run.
func ShuffledThread(r *rand.Rand, rules ...Rule) Rule {
	return func() Cursor {
		return newSeqCursor(body{kind: bodyOnce, rules: Shuffle(r, rules)})
	}
}

// RandomEvent returns a template choosing uniformly among events on every
// evaluation. With no events the template requests nothing.
func RandomEvent(r *rand.Rand, events ...Event) Template {
	pool := make([]Event, len(events))
	copy(pool, events)
	return func() (Event, bool) {
		switch len(pool) {
		case 0:
			return Event{}, false
		case 1:
			return pool[0], true
		default:
			return pool[intN(r, len(pool))], true
		}
	}
}
