package engine

// SnapshotKind discriminates snapshot messages.
type SnapshotKind string

const (
	// KindSelection reports one arbitration step.
	KindSelection SnapshotKind = "selection"

	// KindFeedbackError reports a feedback handler that panicked.
	KindFeedbackError SnapshotKind = "feedback_error"

	// KindRestrictedTriggerError reports an event refused by a gate.
	KindRestrictedTriggerError SnapshotKind = "restricted_trigger_error"

	// KindThreadsWarning reports a suspicious but tolerated registry action:
	// a replaced thread or an empty synchronization point.
	KindThreadsWarning SnapshotKind = "bthreads_warning"

	// KindThreadError reports a thread removed because it panicked.
	KindThreadError SnapshotKind = "thread_error"

	// KindStepsExceeded reports a drain stopped by the step budget.
	KindStepsExceeded SnapshotKind = "steps_exceeded"
)

// SelectionBid describes one requested event in a selection snapshot.
// Blocked and interrupted requests are listed too, with the first vetoing
// thread named. Selected marks the one bid the strategy chose, even when
// other bids request the same type.
type SelectionBid struct {
	Thread     string `json:"thread"`
	Trigger    bool   `json:"trigger"`
	Selected   bool   `json:"selected"`
	Type       string `json:"type"`
	Detail     any    `json:"detail,omitempty"`
	Priority   int    `json:"priority"`
	BlockedBy  string `json:"blockedBy,omitempty"`
	Interrupts string `json:"interrupts,omitempty"`
}

// SnapshotMessage is the structured report handed to snapshot listeners.
// Selection messages fill Bids and Pending; diagnostics fill the remaining
// fields that apply.
type SnapshotMessage struct {
	Kind    SnapshotKind   `json:"kind"`
	Step    int64          `json:"step"`
	Bids    []SelectionBid `json:"bids,omitempty"`
	Pending []string       `json:"pending,omitempty"`
	Thread  string         `json:"thread,omitempty"`
	Type    string         `json:"type,omitempty"`
	Detail  any            `json:"detail,omitempty"`
	Error   string         `json:"error,omitempty"`
	Warning string         `json:"warning,omitempty"`
}

// Selected returns the bid the strategy chose in a selection message.
func (m SnapshotMessage) Selected() (SelectionBid, bool) {
	for _, b := range m.Bids {
		if b.Selected {
			return b, true
		}
	}
	return SelectionBid{}, false
}

// SnapshotListener observes snapshot messages. Listeners run synchronously
// on the engine's goroutine before feedback handlers.
type SnapshotListener func(msg SnapshotMessage)

// Disconnect detaches a listener or feedback registration. Calling it more
// than once is a no-op.
type Disconnect func()

type listenerEntry struct {
	id uint64
	fn SnapshotListener
}

type snapshotPublisher struct {
	listeners []listenerEntry
	nextID    uint64
	onPanic   func(recovered any)
}

func (p *snapshotPublisher) subscribe(fn SnapshotListener) Disconnect {
	p.nextID++
	id := p.nextID
	p.listeners = append(p.listeners, listenerEntry{id: id, fn: fn})
	return func() {
		for i, l := range p.listeners {
			if l.id == id {
				p.listeners = append(p.listeners[:i:i], p.listeners[i+1:]...)
				return
			}
		}
	}
}

func (p *snapshotPublisher) active() bool {
	return len(p.listeners) > 0
}

func (p *snapshotPublisher) publish(msg SnapshotMessage) {
	listeners := append([]listenerEntry(nil), p.listeners...)
	for _, l := range listeners {
		p.deliver(l.fn, msg)
	}
}

func (p *snapshotPublisher) deliver(fn SnapshotListener, msg SnapshotMessage) {
	defer func() {
		if r := recover(); r != nil && p.onPanic != nil {
			p.onPanic(r)
		}
	}()
	fn(msg)
}
