package ir

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Program is a declarative behavioral program.
type Program struct {
	Name         string       `json:"name" yaml:"name"`
	Strategy     string       `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	PublicEvents []string     `json:"public_events,omitempty" yaml:"public_events,omitempty"`
	Threads      []ThreadSpec `json:"threads" yaml:"threads"`
}

// ThreadSpec declares one named thread. Threads are registered in
// declaration order, which is also their priority order.
type ThreadSpec struct {
	Name    string     `json:"name" yaml:"name"`
	Repeat  *Repeat    `json:"repeat,omitempty" yaml:"repeat,omitempty"`
	Shuffle bool       `json:"shuffle,omitempty" yaml:"shuffle,omitempty"`
	Syncs   []SyncSpec `json:"syncs" yaml:"syncs"`
}

// SyncSpec is the declarative form of one synchronization point.
type SyncSpec struct {
	Request       []EventSpec   `json:"request,omitempty" yaml:"request,omitempty"`
	RandomRequest []EventSpec   `json:"random_request,omitempty" yaml:"random_request,omitempty"` // one picked per iteration
	WaitFor       []MatcherSpec `json:"wait_for,omitempty" yaml:"wait_for,omitempty"`
	Block         []MatcherSpec `json:"block,omitempty" yaml:"block,omitempty"`
	Interrupt     []MatcherSpec `json:"interrupt,omitempty" yaml:"interrupt,omitempty"`
}

// Empty reports whether the sync point declares nothing.
func (s SyncSpec) Empty() bool {
	return len(s.Request) == 0 && len(s.RandomRequest) == 0 &&
		len(s.WaitFor) == 0 && len(s.Block) == 0 && len(s.Interrupt) == 0
}

// EventSpec is a requested event.
type EventSpec struct {
	Type   string `json:"type" yaml:"type"`
	Detail any    `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// MatcherSpec selects events. Set constraints combine with AND:
//   - Type: exact event type
//   - Any: every event (no other field may be set)
//   - Path: gjson path into the JSON encoding of the detail; with Equals the
//     value at the path must equal it, with Exists it must (or must not)
//     be present, with neither it must be present
type MatcherSpec struct {
	Type   string `json:"type,omitempty" yaml:"type,omitempty"`
	Any    bool   `json:"any,omitempty" yaml:"any,omitempty"`
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`
	Equals any    `json:"equals,omitempty" yaml:"equals,omitempty"`
	Exists *bool  `json:"exists,omitempty" yaml:"exists,omitempty"`
}

// Repeat is a thread's loop setting, written as a bool (true = forever) or
// a positive pass count.
type Repeat struct {
	Forever bool
	Times   int
}

// Loops reports whether the thread body restarts at all.
func (r *Repeat) Loops() bool {
	return r != nil && (r.Forever || r.Times > 0)
}

func (r Repeat) value() any {
	if r.Forever {
		return true
	}
	if r.Times > 0 {
		return r.Times
	}
	return false
}

func (r *Repeat) set(v any) error {
	switch val := v.(type) {
	case bool:
		*r = Repeat{Forever: val}
	case int:
		if val < 0 {
			return fmt.Errorf("repeat count must be >= 0, got %d", val)
		}
		*r = Repeat{Times: val}
	case float64:
		if val != float64(int(val)) || val < 0 {
			return fmt.Errorf("repeat count must be a non-negative integer, got %v", val)
		}
		*r = Repeat{Times: int(val)}
	default:
		return fmt.Errorf("repeat must be a bool or an integer, got %T", v)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (r Repeat) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.value())
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Repeat) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	return r.set(v)
}

// MarshalYAML implements yaml.Marshaler.
func (r Repeat) MarshalYAML() (any, error) {
	return r.value(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (r *Repeat) UnmarshalYAML(node *yaml.Node) error {
	var v any
	if err := node.Decode(&v); err != nil {
		return err
	}
	return r.set(v)
}

// RepeatForever returns a Repeat that loops without end.
func RepeatForever() *Repeat {
	return &Repeat{Forever: true}
}

// RepeatTimes returns a Repeat that runs the body n times.
func RepeatTimes(n int) *Repeat {
	return &Repeat{Times: n}
}
