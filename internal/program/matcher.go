package program

import (
	"encoding/json"
	"errors"
	"reflect"

	"github.com/tidwall/gjson"

	"github.com/roach88/bprogram/internal/engine"
	"github.com/roach88/bprogram/internal/ir"
)

// NewMatcher builds the engine matcher for a declarative matcher. Plain
// type matchers stay engine.TypeMatcher so snapshots and tests can compare
// them by value.
func NewMatcher(spec ir.MatcherSpec) (engine.Matcher, error) {
	switch {
	case spec.Any:
		return engine.Any(), nil
	case spec.Path == "" && spec.Equals == nil && spec.Exists == nil:
		if spec.Type == "" {
			return nil, errors.New("matcher needs a type, a path, or any: true")
		}
		return engine.TypeMatcher(spec.Type), nil
	case spec.Path == "":
		return nil, errors.New("equals and exists require a path")
	}

	m := &DetailMatcher{Type: spec.Type, Path: spec.Path, Exists: spec.Exists}
	if spec.Equals != nil {
		raw, err := json.Marshal(spec.Equals)
		if err != nil {
			return nil, err
		}
		m.want = gjson.ParseBytes(raw).Value()
		m.compare = true
	}
	return m, nil
}

// DetailMatcher matches on the JSON encoding of an event's detail. Path is
// a gjson path. All set constraints must hold:
//   - Type: the event type must be equal
//   - Exists: presence at Path must equal *Exists
//   - equals: the value at Path must be present and equal
//
// With neither Exists nor equals, the value at Path must be present.
type DetailMatcher struct {
	Type   string
	Path   string
	Exists *bool

	want    any
	compare bool
}

// Matches implements engine.Matcher. Details that cannot be encoded as JSON
// never match.
func (m *DetailMatcher) Matches(ev engine.Event) bool {
	if m.Type != "" && ev.Type != m.Type {
		return false
	}
	raw, err := json.Marshal(ev.Detail)
	if err != nil {
		return false
	}
	res := gjson.GetBytes(raw, m.Path)
	present := res.Exists()

	if m.Exists != nil && present != *m.Exists {
		return false
	}
	if m.compare {
		return present && reflect.DeepEqual(res.Value(), m.want)
	}
	if m.Exists == nil {
		return present
	}
	return true
}
