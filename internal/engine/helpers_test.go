package engine

import (
	"io"
	"log/slog"
	"math/rand/v2"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// req is a one-shot sync point requesting a single event type.
func req(typ string) Rule {
	return Sync(Idiom{Request: []Event{{Type: typ}}})
}

// snapshotRecorder keeps every snapshot an engine publishes.
type snapshotRecorder struct {
	msgs []SnapshotMessage
}

func record(e *Engine) *snapshotRecorder {
	r := &snapshotRecorder{}
	e.UseSnapshot(func(msg SnapshotMessage) {
		r.msgs = append(r.msgs, msg)
	})
	return r
}

func (r *snapshotRecorder) selected() []string {
	var out []string
	for _, m := range r.msgs {
		if b, ok := m.Selected(); ok && m.Kind == KindSelection {
			out = append(out, b.Type)
		}
	}
	return out
}

func (r *snapshotRecorder) kind(k SnapshotKind) []SnapshotMessage {
	var out []SnapshotMessage
	for _, m := range r.msgs {
		if m.Kind == k {
			out = append(out, m)
		}
	}
	return out
}

func (r *snapshotRecorder) reset() {
	r.msgs = nil
}

// feedbackLog registers handlers that append the event type they see.
func feedbackLog(e *Engine, types ...string) *[]string {
	var got []string
	h := Handlers{}
	for _, typ := range types {
		h[typ] = func(any) { got = append(got, typ) }
	}
	e.UseFeedback(h)
	return &got
}
