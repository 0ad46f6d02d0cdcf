package engine

// Event is the unit of coordination. It has no identity beyond Type;
// Detail is an opaque payload handed to feedback handlers.
type Event struct {
	Type   string `json:"type"`
	Detail any    `json:"detail,omitempty"`
}

// Matcher decides whether a selected event satisfies a waitFor, block or
// interrupt declaration.
type Matcher interface {
	Matches(ev Event) bool
}

// TypeMatcher matches events by exact type equality.
type TypeMatcher string

// Matches implements Matcher.
func (m TypeMatcher) Matches(ev Event) bool {
	return ev.Type == string(m)
}

// String returns the matched event type.
func (m TypeMatcher) String() string {
	return string(m)
}

// MatchFunc adapts a predicate over events to the Matcher interface.
type MatchFunc func(ev Event) bool

// Matches implements Matcher.
func (f MatchFunc) Matches(ev Event) bool {
	return f(ev)
}

// On returns one TypeMatcher per event type.
//
//	Sync(Idiom{WaitFor: On("hot"), Block: On("cold")})
func On(types ...string) []Matcher {
	out := make([]Matcher, len(types))
	for i, t := range types {
		out[i] = TypeMatcher(t)
	}
	return out
}

// Any matches every event. Trigger bids wait on it so they are consumed by
// whichever event wins their iteration.
func Any() Matcher {
	return MatchFunc(func(Event) bool { return true })
}

// Template produces a request lazily. It is evaluated once per arbitration
// iteration while the owning sync point is current. Returning false means
// the sync point requests nothing this iteration.
type Template func() (Event, bool)
