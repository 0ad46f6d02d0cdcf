package engine

import (
	"fmt"
	"sort"
)

// NamedRule pairs a thread name with its rule for registration. Threads
// registered in one Set call receive priorities in argument order.
type NamedRule struct {
	Name string
	Rule Rule
}

// Named builds a NamedRule.
func Named(name string, rule Rule) NamedRule {
	return NamedRule{Name: name, Rule: rule}
}

// Status reports where a registered thread is in its lifecycle. A running
// thread has been registered or advanced and waits to produce its next
// synchronization point; a pending thread holds a bid.
type Status struct {
	Running bool `json:"running"`
	Pending bool `json:"pending"`
}

// slot is one named position in the registry. Replacing a thread installs a
// new slot, so stale slot pointers held by an in-progress step can be
// detected by identity.
type slot struct {
	name     string
	priority int
	trigger  bool
	cursor   Cursor
	bid      *bid
}

// bid is a slot's live binding to its current synchronization point.
// requests holds the events proposed in the current iteration, with any
// template already evaluated.
type bid struct {
	idiom    Idiom
	requests []Event
}

// Threads is the registry of running behavior threads.
//
// Priority equals registration order and never changes for a slot.
// Registering an existing name replaces that thread: the new rule starts
// from its first synchronization point and takes the next (lowest)
// priority slot. Threads added or replaced while a step is in progress
// only bid from the next iteration on.
type Threads struct {
	slots        map[string]*slot
	nextPriority int
	warn         func(thread, warning string)
}

func newThreads(warn func(thread, warning string)) *Threads {
	return &Threads{
		slots:        make(map[string]*slot),
		nextPriority: 1, // 0 is reserved for trigger bids
		warn:         warn,
	}
}

// Set registers or replaces threads in argument order.
func (t *Threads) Set(threads ...NamedRule) {
	for _, nr := range threads {
		if nr.Rule == nil {
			continue
		}
		if _, exists := t.slots[nr.Name]; exists && t.warn != nil {
			t.warn(nr.Name, fmt.Sprintf("thread %q replaced; it restarts at priority %d", nr.Name, t.nextPriority))
		}
		t.slots[nr.Name] = &slot{
			name:     nr.Name,
			priority: t.nextPriority,
			cursor:   nr.Rule(),
		}
		t.nextPriority++
	}
}

// Has reports the lifecycle status of a thread. Both fields are false for
// unknown or finished threads.
func (t *Threads) Has(name string) Status {
	s, ok := t.slots[name]
	if !ok {
		return Status{}
	}
	return Status{Running: s.bid == nil, Pending: s.bid != nil}
}

// Delete removes a thread. Returns false if no such thread is registered.
func (t *Threads) Delete(name string) bool {
	if _, ok := t.slots[name]; !ok {
		return false
	}
	delete(t.slots, name)
	return true
}

// Names lists registered threads in priority order.
func (t *Threads) Names() []string {
	ordered := t.ordered()
	names := make([]string, len(ordered))
	for i, s := range ordered {
		names[i] = s.name
	}
	return names
}

// Len returns the number of registered threads.
func (t *Threads) Len() int {
	return len(t.slots)
}

// ordered returns a copy of the registry's slots in priority order. Steps
// iterate the copy so handlers may mutate the registry mid-step.
func (t *Threads) ordered() []*slot {
	out := make([]*slot, 0, len(t.slots))
	for _, s := range t.slots {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].priority < out[j].priority
	})
	return out
}

// live reports whether s is still the registered slot for its name.
func (t *Threads) live(s *slot) bool {
	if s.trigger {
		return true
	}
	return t.slots[s.name] == s
}

// remove drops s if it is still the registered slot for its name.
func (t *Threads) remove(s *slot) {
	if !s.trigger && t.slots[s.name] == s {
		delete(t.slots, s.name)
	}
}
