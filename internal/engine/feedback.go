package engine

// Handler reacts to a selected event's detail. Handlers run on the engine's
// goroutine; a handler that starts background work must hand its results
// back to whatever goroutine owns the engine before triggering.
type Handler func(detail any)

// Handlers maps event types to feedback handlers.
type Handlers map[string]Handler

type feedbackEntry struct {
	id uint64
	fn Handler
}

// feedbackRegistry holds at most one handler per event type. The most
// recent registration for a type wins; disconnecting an older
// registration leaves a newer one in place.
type feedbackRegistry struct {
	handlers map[string]feedbackEntry
	nextID   uint64
}

func newFeedbackRegistry() *feedbackRegistry {
	return &feedbackRegistry{handlers: make(map[string]feedbackEntry)}
}

func (r *feedbackRegistry) use(h Handlers) Disconnect {
	r.nextID++
	id := r.nextID
	types := make([]string, 0, len(h))
	for typ, fn := range h {
		if fn == nil {
			continue
		}
		r.handlers[typ] = feedbackEntry{id: id, fn: fn}
		types = append(types, typ)
	}
	return func() {
		for _, typ := range types {
			if e, ok := r.handlers[typ]; ok && e.id == id {
				delete(r.handlers, typ)
			}
		}
	}
}

func (r *feedbackRegistry) lookup(typ string) (Handler, bool) {
	e, ok := r.handlers[typ]
	return e.fn, ok
}
