package engine

// triggerQueue is the FIFO of externally injected events.
//
// It is deliberately unsynchronized: the engine is single-threaded, and the
// queue exists to serialize triggers issued while arbitration is already in
// progress (typically from feedback handlers), not to arbitrate between
// goroutines.
type triggerQueue struct {
	events []Event
}

// newTriggerQueue creates an empty queue.
func newTriggerQueue() *triggerQueue {
	return &triggerQueue{
		events: make([]Event, 0, 16),
	}
}

// Enqueue adds an event to the back of the queue.
func (q *triggerQueue) Enqueue(ev Event) {
	q.events = append(q.events, ev)
}

// TryDequeue removes and returns the front event.
// Returns (Event{}, false) if the queue is empty.
func (q *triggerQueue) TryDequeue() (Event, bool) {
	if len(q.events) == 0 {
		return Event{}, false
	}

	ev := q.events[0]

	// Clear the slot so the detail payload can be collected.
	q.events[0] = Event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return ev, true
}

// Len returns the number of queued events.
func (q *triggerQueue) Len() int {
	return len(q.events)
}

// Clear drops every queued event and returns how many were dropped.
func (q *triggerQueue) Clear() int {
	n := len(q.events)
	for i := range q.events {
		q.events[i] = Event{}
	}
	q.events = q.events[:0]
	return n
}
