package program

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bprogram/internal/engine"
	"github.com/roach88/bprogram/internal/ir"
)

func TestNewMatcher_Kinds(t *testing.T) {
	m, err := NewMatcher(ir.MatcherSpec{Type: "hot"})
	require.NoError(t, err)
	assert.Equal(t, engine.TypeMatcher("hot"), m)

	m, err = NewMatcher(ir.MatcherSpec{Any: true})
	require.NoError(t, err)
	assert.True(t, m.Matches(engine.Event{Type: "whatever"}))

	_, err = NewMatcher(ir.MatcherSpec{})
	assert.Error(t, err)
}

func TestDetailMatcher(t *testing.T) {
	yes, no := true, false
	order := engine.Event{Type: "order", Detail: map[string]any{
		"id":    7,
		"items": []any{map[string]any{"sku": "a1"}},
		"rush":  false,
		"note":  nil,
	}}

	tests := []struct {
		name string
		spec ir.MatcherSpec
		ev   engine.Event
		want bool
	}{
		{"path present", ir.MatcherSpec{Path: "id"}, order, true},
		{"path missing", ir.MatcherSpec{Path: "customer"}, order, false},
		{"null is present", ir.MatcherSpec{Path: "note"}, order, true},
		{"exists false on missing", ir.MatcherSpec{Path: "customer", Exists: &no}, order, true},
		{"exists false on present", ir.MatcherSpec{Path: "id", Exists: &no}, order, false},
		{"exists true", ir.MatcherSpec{Path: "id", Exists: &yes}, order, true},
		{"int equals json number", ir.MatcherSpec{Path: "id", Equals: 7}, order, true},
		{"float equals", ir.MatcherSpec{Path: "id", Equals: 7.0}, order, true},
		{"not equal", ir.MatcherSpec{Path: "id", Equals: 8}, order, false},
		{"bool equals", ir.MatcherSpec{Path: "rush", Equals: false}, order, true},
		{"nested path", ir.MatcherSpec{Path: "items.0.sku", Equals: "a1"}, order, true},
		{"type and path", ir.MatcherSpec{Type: "order", Path: "id"}, order, true},
		{"wrong type", ir.MatcherSpec{Type: "refund", Path: "id"}, order, false},
		{"scalar detail", ir.MatcherSpec{Path: "id"}, engine.Event{Type: "x", Detail: 3}, false},
		{"nil detail", ir.MatcherSpec{Path: "id"}, engine.Event{Type: "x"}, false},
		{"unencodable detail", ir.MatcherSpec{Path: "id"}, engine.Event{Type: "x", Detail: math.NaN()}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMatcher(tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Matches(tt.ev))
		})
	}
}
