package testutil

import "github.com/roach88/bprogram/internal/engine"

// FeedbackEntry is one handler invocation.
type FeedbackEntry struct {
	Type   string `json:"type" yaml:"type"`
	Detail any    `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// FeedbackRecorder builds feedback handlers that log every invocation in
// order. It runs on the engine goroutine and needs no locking.
type FeedbackRecorder struct {
	entries []FeedbackEntry
}

// NewFeedbackRecorder creates an empty recorder.
func NewFeedbackRecorder() *FeedbackRecorder {
	return &FeedbackRecorder{}
}

// Handlers returns one recording handler per event type.
func (r *FeedbackRecorder) Handlers(types ...string) engine.Handlers {
	h := make(engine.Handlers, len(types))
	for _, typ := range types {
		h[typ] = func(detail any) {
			r.entries = append(r.entries, FeedbackEntry{Type: typ, Detail: detail})
		}
	}
	return h
}

// Entries returns a copy of the recorded invocations.
func (r *FeedbackRecorder) Entries() []FeedbackEntry {
	out := make([]FeedbackEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Types returns the recorded event types in invocation order.
func (r *FeedbackRecorder) Types() []string {
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Type
	}
	return out
}

// Reset forgets every recorded invocation.
func (r *FeedbackRecorder) Reset() {
	r.entries = nil
}
