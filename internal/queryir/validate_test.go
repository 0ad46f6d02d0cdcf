package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		query    Query
		problems []string
	}{
		{
			name:  "plain select",
			query: Select{From: TableSelections},
		},
		{
			name: "typed filter",
			query: &Select{From: TableBids, Filter: &And{Predicates: []Predicate{
				Equals{Field: "selected", Value: true},
				Compare{Field: "priority", Op: OpLe, Value: int64(2)},
				Compare{Field: "blocked_by", Op: OpNe, Value: ""},
			}}},
		},
		{
			name:     "nil query",
			query:    nil,
			problems: []string{"nil query"},
		},
		{
			name:     "unknown table",
			query:    Select{From: "runs"},
			problems: []string{`unknown table "runs"`},
		},
		{
			name:     "unknown field",
			query:    Select{From: TableSelections, Filter: Equals{Field: "selected", Value: true}},
			problems: []string{`unknown field "selected" in selections`},
		},
		{
			name:     "kind mismatch",
			query:    Select{From: TableSelections, Filter: Equals{Field: "step", Value: "3"}},
			problems: []string{"field step is int, got string"},
		},
		{
			name:     "plain int is not int64",
			query:    Select{From: TableSelections, Filter: Equals{Field: "step", Value: 3}},
			problems: []string{"field step is int, got int"},
		},
		{
			name:     "ordering on text",
			query:    Select{From: TableSelections, Filter: Compare{Field: "thread", Op: OpGt, Value: "a"}},
			problems: []string{"operator > needs an int column, thread is text"},
		},
		{
			name:     "unknown operator",
			query:    Select{From: TableSelections, Filter: Compare{Field: "step", Op: "~", Value: int64(1)}},
			problems: []string{`unknown operator "~"`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(tt.query)
			if tt.problems == nil {
				assert.True(t, res.Valid)
				assert.Empty(t, res.Problems)
				return
			}
			assert.False(t, res.Valid)
			assert.Equal(t, tt.problems, res.Problems)
		})
	}
}

func TestParseFilter(t *testing.T) {
	p, err := ParseFilter(TableBids, []string{"type=hot", "step >= 3", "selected=false", "blocked_by!="})
	require.NoError(t, err)
	assert.Equal(t, And{Predicates: []Predicate{
		Equals{Field: "type", Value: "hot"},
		Compare{Field: "step", Op: OpGe, Value: int64(3)},
		Equals{Field: "selected", Value: false},
		Compare{Field: "blocked_by", Op: OpNe, Value: ""},
	}}, p)
}

func TestParseFilter_Empty(t *testing.T) {
	p, err := ParseFilter(TableSelections, nil)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestParseFilter_Errors(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"type", "expected <field><op><value>"},
		{"Type=hot", "expected <field><op><value>"},
		{"colour=red", `unknown field "colour" in selections`},
		{"step=three", "step needs an integer"},
		{"thread<b", "needs an int column"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := ParseFilter(TableSelections, []string{tt.expr})
			assert.ErrorContains(t, err, tt.want)
		})
	}

	_, err := ParseFilter(TableBids, []string{"selected=maybe"})
	assert.ErrorContains(t, err, "selected needs true or false")
}

func TestLookup(t *testing.T) {
	col, ok := Lookup(TableBids, "is_trigger")
	require.True(t, ok)
	assert.Equal(t, KindBool, col.Kind)
	assert.Equal(t, "bool", col.Kind.String())

	_, ok = Lookup(TableSelections, "is_trigger")
	assert.False(t, ok)
}
