package engine

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"reflect"
)

// Engine is one isolated behavioral program: a thread registry, an
// arbiter, a trigger queue and its observers.
//
// Thread-safety model:
//   - Every method must be called from the goroutine that owns the engine
//   - Feedback handlers and snapshot listeners run on that goroutine and
//     may call Trigger and Threads().Set freely
//   - Step() may be read from any goroutine
//
// INVARIANTS:
//   - A slot's priority never changes; replacement installs a new slot
//   - Exactly one event is selected per step, or none
//   - Nested Trigger calls only enqueue; stack depth stays constant
type Engine struct {
	threads      *Threads
	strategy     Strategy
	rng          *rand.Rand
	queue        *triggerQueue
	feedback     *feedbackRegistry
	snapshots    *snapshotPublisher
	publicEvents []string
	clock        *Clock
	quota        *QuotaEnforcer
	maxSteps     int
	logger       *slog.Logger

	running bool   // the re-entrancy guard
	pending *slot  // the trigger bid for the next iteration, if any
	origin  string // type of the trigger that started the current drain
}

// Option configures an Engine.
type Option func(*Engine)

// WithStrategy sets the selection strategy. Default: PriorityStrategy.
func WithStrategy(s Strategy) Option {
	return func(e *Engine) {
		if s != nil {
			e.strategy = s
		}
	}
}

// WithPublicEvents restricts PublicTrigger to the listed event types.
// Passing no types yields a gate that refuses everything.
func WithPublicEvents(types ...string) Option {
	return func(e *Engine) {
		e.publicEvents = append([]string{}, types...)
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMaxSteps sets the step budget of a single drain.
//
// Default: 10000 steps (DefaultMaxSteps)
// Use WithMaxSteps(0) for programs that are known to quiesce.
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		e.maxSteps = n
	}
}

// WithRand sets the random source used by NewWithStrategyName. It does not
// affect strategies passed to WithStrategy.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) {
		e.rng = r
	}
}

// WithClock sets the logical clock. Used to continue numbering from a
// previous run.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// New creates an engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		strategy:  PriorityStrategy,
		queue:     newTriggerQueue(),
		feedback:  newFeedbackRegistry(),
		snapshots: &snapshotPublisher{},
		clock:     NewClock(),
		maxSteps:  DefaultMaxSteps,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.quota = NewQuotaEnforcer(e.maxSteps)
	e.threads = newThreads(e.warn)
	e.snapshots.onPanic = func(recovered any) {
		e.logger.Error("snapshot listener panicked", "error", panicMessage(recovered))
	}
	return e
}

// NewWithStrategyName creates an engine whose strategy is resolved by
// name, drawing randomness from the source set with WithRand.
func NewWithStrategyName(name string, opts ...Option) (*Engine, error) {
	e := New(opts...)
	s, err := ParseStrategy(name, e.rng)
	if err != nil {
		return nil, err
	}
	e.strategy = s
	return e, nil
}

// Threads returns the engine's thread registry.
func (e *Engine) Threads() *Threads {
	return e.threads
}

// Step returns the number of selections made so far.
func (e *Engine) Step() int64 {
	return e.clock.Current()
}

// UseFeedback registers side effects for selected event types. The most
// recent registration for a type replaces earlier ones.
func (e *Engine) UseFeedback(h Handlers) Disconnect {
	return e.feedback.use(h)
}

// UseSnapshot subscribes a listener to step diagnostics.
func (e *Engine) UseSnapshot(l SnapshotListener) Disconnect {
	return e.snapshots.subscribe(l)
}

// Trigger injects an event. It never panics because of thread or handler
// code, and an event no thread cares about is simply selected and
// dropped.
//
// When arbitration is already in progress the event is queued and Trigger
// returns at once; the outermost call drains the queue. Each queued event
// joins the arbiter as a priority-0 bid for exactly one iteration.
func (e *Engine) Trigger(ev Event) {
	e.queue.Enqueue(ev)
	if e.running {
		return
	}
	e.running = true
	defer func() { e.running = false }()
	e.drain(ev.Type)
}

func (e *Engine) drain(origin string) {
	e.quota.Reset()
	e.origin = origin
	for {
		if e.pending == nil {
			if ev, ok := e.queue.TryDequeue(); ok {
				e.pending = newTriggerSlot(ev)
			}
		}
		selected, err := e.step()
		if err != nil {
			e.abort(origin, err)
			return
		}
		if !selected && e.queue.Len() == 0 {
			return
		}
	}
}

func newTriggerSlot(ev Event) *slot {
	return &slot{
		name:    fmt.Sprintf("trigger(%s)", ev.Type),
		trigger: true,
		bid: &bid{idiom: Idiom{
			Request: []Event{ev},
			WaitFor: []Matcher{Any()},
		}},
	}
}

func (e *Engine) abort(origin string, err error) {
	dropped := e.queue.Clear()
	e.pending = nil
	e.logger.Error("drain aborted",
		"trigger", origin,
		"dropped", dropped,
		"error", err)
	e.diagnose(SnapshotMessage{
		Kind:  KindStepsExceeded,
		Type:  origin,
		Error: err.Error(),
	})
}

type veto struct {
	thread    string
	matcher   Matcher
	interrupt bool
}

// step runs one arbitration iteration. It returns true when an event was
// selected.
func (e *Engine) step() (bool, error) {
	slots := e.threads.ordered()
	if e.pending != nil {
		slots = append([]*slot{e.pending}, slots...)
		e.pending = nil
	}

	// Pull the next sync point of every thread that was advanced or newly
	// registered. Exhausted and failed threads leave the registry.
	for _, s := range slots {
		if s.bid == nil && e.threads.live(s) {
			e.pull(s)
		}
	}

	active := make([]*slot, 0, len(slots))
	for _, s := range slots {
		if s.bid != nil && e.threads.live(s) {
			active = append(active, s)
		}
	}

	var requested []Candidate
	var vetoes []veto
	bidding := make([]*slot, 0, len(active))
	for _, s := range active {
		if !e.evaluate(s) {
			continue
		}
		bidding = append(bidding, s)
		for _, ev := range s.bid.requests {
			requested = append(requested, Candidate{
				Thread:   s.name,
				Priority: s.priority,
				Type:     ev.Type,
				Detail:   ev.Detail,
				Trigger:  s.trigger,
			})
		}
		for _, m := range s.bid.idiom.Block {
			vetoes = append(vetoes, veto{thread: s.name, matcher: m})
		}
		for _, m := range s.bid.idiom.Interrupt {
			vetoes = append(vetoes, veto{thread: s.name, matcher: m, interrupt: true})
		}
	}

	blockedBy := make([]string, len(requested))
	interrupts := make([]string, len(requested))
	eligible := make([]Candidate, 0, len(requested))
	eligibleAt := make([]int, 0, len(requested))
	for i, c := range requested {
		ev := c.Event()
		for _, v := range vetoes {
			if !e.match(v.thread, v.matcher, ev) {
				continue
			}
			if v.interrupt {
				if interrupts[i] == "" {
					interrupts[i] = v.thread
				}
			} else if blockedBy[i] == "" {
				blockedBy[i] = v.thread
			}
		}
		if blockedBy[i] == "" && interrupts[i] == "" {
			eligible = append(eligible, c)
			eligibleAt = append(eligibleAt, i)
		}
	}

	if len(eligible) == 0 {
		return false, nil
	}
	winner, ok := e.choose(eligible)
	if !ok {
		return false, nil
	}
	if err := e.quota.Check(e.origin); err != nil {
		return false, err
	}
	step := e.clock.Next()
	ev := winner.Event()

	e.logger.Debug("event selected",
		"step", step,
		"event", ev.Type,
		"thread", winner.Thread,
		"priority", winner.Priority)

	if e.snapshots.active() {
		e.snapshots.publish(selectionMessage(step, winnerIndex(winner, eligible, eligibleAt), requested, blockedBy, interrupts, bidding))
	}

	// Advance requesters of the winning type and waiters that match it.
	// A slot replaced during this step is orphaned and advancing it is
	// harmless.
	for _, s := range bidding {
		if s.trigger || !e.threads.live(s) {
			continue
		}
		if requests(s.bid.requests, ev.Type) || e.matchAny(s.name, s.bid.idiom.WaitFor, ev) {
			s.bid = nil
		}
	}

	e.react(ev)
	return true, nil
}

// pull resumes a cursor to its next sync point.
func (e *Engine) pull(s *slot) {
	defer func() {
		if r := recover(); r != nil {
			e.threads.remove(s)
			e.threadFailed(s.name, r)
		}
	}()
	idiom, ok := s.cursor.Next()
	if !ok {
		e.threads.remove(s)
		e.logger.Debug("thread finished", "thread", s.name)
		return
	}
	if idiom.inert() {
		e.warn(s.name, fmt.Sprintf("thread %q declared an empty synchronization point and will never advance", s.name))
	}
	s.bid = &bid{idiom: idiom}
}

// evaluate expands a slot's requests for this iteration, running its
// template once. Returns false if the thread failed and was removed.
func (e *Engine) evaluate(s *slot) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.threads.remove(s)
			e.threadFailed(s.name, r)
			ok = false
		}
	}()
	reqs := append([]Event(nil), s.bid.idiom.Request...)
	if s.bid.idiom.Template != nil {
		if ev, produced := s.bid.idiom.Template(); produced {
			reqs = append(reqs, ev)
		}
	}
	s.bid.requests = reqs
	return true
}

func (e *Engine) choose(eligible []Candidate) (winner Candidate, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("strategy panicked; selecting nothing", "error", panicMessage(r))
			winner, ok = Candidate{}, false
		}
	}()
	return e.strategy(eligible)
}

// match runs a matcher, treating a panicking matcher as a non-match.
func (e *Engine) match(thread string, m Matcher, ev Event) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("matcher panicked",
				"thread", thread,
				"event", ev.Type,
				"error", panicMessage(r))
			matched = false
		}
	}()
	return m.Matches(ev)
}

func (e *Engine) matchAny(thread string, ms []Matcher, ev Event) bool {
	for _, m := range ms {
		if e.match(thread, m, ev) {
			return true
		}
	}
	return false
}

func requests(events []Event, typ string) bool {
	for _, ev := range events {
		if ev.Type == typ {
			return true
		}
	}
	return false
}

// react invokes the feedback handler for a selected event. A panicking
// handler aborts only itself.
func (e *Engine) react(ev Event) {
	h, ok := e.feedback.lookup(ev.Type)
	if !ok {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			err := newPanicError(ErrCodeFeedbackFailed, "", ev.Type, r)
			e.logger.Error("feedback handler failed",
				"event", ev.Type,
				"error", err)
			e.diagnose(SnapshotMessage{
				Kind:   KindFeedbackError,
				Type:   ev.Type,
				Detail: ev.Detail,
				Error:  err.Message,
			})
		}
	}()
	h(ev.Detail)
}

func (e *Engine) threadFailed(thread string, recovered any) {
	err := newPanicError(ErrCodeThreadFailed, thread, "", recovered)
	e.logger.Error("thread removed",
		"thread", thread,
		"error", err)
	e.diagnose(SnapshotMessage{
		Kind:   KindThreadError,
		Thread: thread,
		Error:  err.Message,
	})
}

func (e *Engine) warn(thread, warning string) {
	e.logger.Warn("bthreads warning", "thread", thread, "warning", warning)
	e.diagnose(SnapshotMessage{
		Kind:    KindThreadsWarning,
		Thread:  thread,
		Warning: warning,
	})
}

// diagnose publishes a non-selection snapshot stamped with the current step.
func (e *Engine) diagnose(msg SnapshotMessage) {
	if !e.snapshots.active() {
		return
	}
	msg.Step = e.clock.Current()
	e.snapshots.publish(msg)
}

// winnerIndex locates the candidate a strategy returned among the requested
// bids, or -1 when the strategy invented one. Several bids may share the
// winner's type; only the returned one is the selection.
func winnerIndex(winner Candidate, eligible []Candidate, at []int) int {
	for i, c := range eligible {
		if c.Thread == winner.Thread && c.Type == winner.Type &&
			c.Trigger == winner.Trigger && reflect.DeepEqual(c.Detail, winner.Detail) {
			return at[i]
		}
	}
	return -1
}

func selectionMessage(step int64, winner int, requested []Candidate, blockedBy, interrupts []string, bidding []*slot) SnapshotMessage {
	bids := make([]SelectionBid, len(requested))
	for i, c := range requested {
		bids[i] = SelectionBid{
			Thread:     c.Thread,
			Trigger:    c.Trigger,
			Selected:   i == winner,
			Type:       c.Type,
			Detail:     c.Detail,
			Priority:   c.Priority,
			BlockedBy:  blockedBy[i],
			Interrupts: interrupts[i],
		}
	}
	pending := make([]string, len(bidding))
	for i, s := range bidding {
		pending[i] = s.name
	}
	// requested is already in priority order: bidding is sorted and the
	// trigger slot, at priority 0, comes first.
	return SnapshotMessage{
		Kind:    KindSelection,
		Step:    step,
		Bids:    bids,
		Pending: pending,
	}
}
