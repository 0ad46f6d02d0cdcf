package engine

import (
	"fmt"
	"slices"
)

// TriggerFunc injects an event into an engine.
type TriggerFunc func(ev Event)

// gate filters events crossing a trust boundary. In allow mode only listed
// types pass; in deny mode listed types are refused.
type gate struct {
	types map[string]struct{}
	allow bool
}

func newGate(types []string, allow bool) gate {
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return gate{types: set, allow: allow}
}

func (g gate) permits(typ string) bool {
	_, listed := g.types[typ]
	return listed == g.allow
}

func (g gate) sorted() []string {
	out := make([]string, 0, len(g.types))
	for t := range g.types {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// PublicTrigger returns the trigger exposed to untrusted callers. When
// public events were configured it admits only those types; otherwise it
// is equivalent to Trigger. Refused events are logged and reported as a
// restricted_trigger_error snapshot; they never reach the queue.
func (e *Engine) PublicTrigger() TriggerFunc {
	if e.publicEvents == nil {
		return e.Trigger
	}
	g := newGate(e.publicEvents, true)
	return e.gated(g, func(typ string) string {
		return fmt.Sprintf("event %q is not public; allowed: %v", typ, g.sorted())
	})
}

// RestrictedTrigger returns a trigger that refuses the listed types.
func (e *Engine) RestrictedTrigger(types ...string) TriggerFunc {
	g := newGate(types, false)
	return e.gated(g, func(typ string) string {
		return fmt.Sprintf("event %q is restricted", typ)
	})
}

// IsPublic reports whether typ passes the public gate.
func (e *Engine) IsPublic(typ string) bool {
	return e.publicEvents == nil || slices.Contains(e.publicEvents, typ)
}

func (e *Engine) gated(g gate, describe func(typ string) string) TriggerFunc {
	return func(ev Event) {
		if g.permits(ev.Type) {
			e.Trigger(ev)
			return
		}
		err := &RuntimeError{
			Code:      ErrCodeRestrictedEvent,
			Message:   describe(ev.Type),
			EventType: ev.Type,
		}
		e.logger.Warn("trigger refused",
			"event", ev.Type,
			"error", err)
		e.diagnose(SnapshotMessage{
			Kind:   KindRestrictedTriggerError,
			Type:   ev.Type,
			Detail: ev.Detail,
			Error:  err.Error(),
		})
	}
}
