package queryir

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ValidationResult lists the problems found in a query.
type ValidationResult struct {
	Valid    bool
	Problems []string
}

// Validate checks that a query only references known tables and columns
// and that every value matches its column kind.
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{problems: []string{}}
	v.validateQuery(query)

	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

// validator accumulates problems during traversal.
type validator struct {
	table    Table
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addProblem("nil query")
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	default:
		v.addProblem("unknown query type: %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	if _, ok := Schema[sel.From]; !ok {
		v.addProblem("unknown table %q", sel.From)
		return
	}
	v.table = sel.From
	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case Equals:
		v.validateValue(pred.Field, pred.Value)
	case *Equals:
		v.validateValue(pred.Field, pred.Value)
	case Compare:
		v.validateCompare(pred)
	case *Compare:
		v.validateCompare(*pred)
	case And:
		v.validateAnd(pred)
	case *And:
		v.validateAnd(*pred)
	default:
		v.addProblem("unknown predicate type: %T", p)
	}
}

func (v *validator) validateCompare(c Compare) {
	col, ok := v.validateValue(c.Field, c.Value)
	if !ok {
		return
	}
	switch c.Op {
	case OpNe:
	case OpLt, OpLe, OpGt, OpGe:
		if col.Kind != KindInt {
			v.addProblem("operator %s needs an int column, %s is %s", c.Op, c.Field, col.Kind)
		}
	default:
		v.addProblem("unknown operator %q", c.Op)
	}
}

func (v *validator) validateAnd(and And) {
	for _, sub := range and.Predicates {
		v.validatePredicate(sub)
	}
}

// validateValue checks the field exists and the value has its kind.
func (v *validator) validateValue(field string, value any) (Column, bool) {
	col, ok := Lookup(v.table, field)
	if !ok {
		v.addProblem("unknown field %q in %s", field, v.table)
		return col, false
	}
	var match bool
	switch value.(type) {
	case string:
		match = col.Kind == KindText
	case int64:
		match = col.Kind == KindInt
	case bool:
		match = col.Kind == KindBool
	}
	if !match {
		v.addProblem("field %s is %s, got %T", field, col.Kind, value)
	}
	return col, match
}

var filterExpr = regexp.MustCompile(`^\s*([a-z_]+)\s*(!=|<=|>=|=|<|>)\s*(.*?)\s*$`)

// ParseFilter builds a predicate from expressions such as "type=hot",
// "step>=3" or "selected=true". Values are converted to the kind of the
// column in table t. No expressions yield a nil predicate.
func ParseFilter(t Table, exprs []string) (Predicate, error) {
	if len(exprs) == 0 {
		return nil, nil
	}
	and := And{Predicates: make([]Predicate, 0, len(exprs))}
	for _, expr := range exprs {
		m := filterExpr.FindStringSubmatch(expr)
		if m == nil {
			return nil, fmt.Errorf("filter %q: expected <field><op><value>", expr)
		}
		field, op, raw := m[1], Op(m[2]), m[3]
		col, ok := Lookup(t, field)
		if !ok {
			return nil, fmt.Errorf("filter %q: unknown field %q in %s", expr, field, t)
		}
		value, err := parseValue(col, raw)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", expr, err)
		}
		if op == "=" {
			and.Predicates = append(and.Predicates, Equals{Field: field, Value: value})
		} else {
			and.Predicates = append(and.Predicates, Compare{Field: field, Op: op, Value: value})
		}
	}
	if res := Validate(Select{From: t, Filter: and}); !res.Valid {
		return nil, fmt.Errorf("invalid filter: %s", strings.Join(res.Problems, "; "))
	}
	return and, nil
}

func parseValue(col Column, raw string) (any, error) {
	switch col.Kind {
	case KindInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s needs an integer, got %q", col.Name, raw)
		}
		return n, nil
	case KindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s needs true or false, got %q", col.Name, raw)
		}
		return b, nil
	}
	return raw, nil
}
