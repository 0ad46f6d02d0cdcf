package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/bprogram/internal/queryir"
)

// columns lists the selected columns of each table, in the order the store
// scans them.
var columns = map[queryir.Table]string{
	queryir.TableSelections: "step, type, detail, thread, priority",
	queryir.TableBids:       "step, idx, thread, type, is_trigger, selected, priority, blocked_by, interrupts",
}

// orderKeys give every table a total, deterministic row order.
var orderKeys = map[queryir.Table]string{
	queryir.TableSelections: "step ASC",
	queryir.TableBids:       "step ASC, idx ASC",
}

// SQLCompiler compiles QueryIR to parameterized SQL for SQLite, scoped to
// one run.
//
// Every query has an ORDER BY. Values are always parameters; only
// validated column names are written into the SQL text.
type SQLCompiler struct {
	RunID string
}

// NewSQLCompiler creates a compiler for the rows of runID.
func NewSQLCompiler(runID string) *SQLCompiler {
	return &SQLCompiler{RunID: runID}
}

// Compile converts a QueryIR query to parameterized SQL.
// Returns (sql, params, error) tuple.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if q == nil {
		return "", nil, fmt.Errorf("cannot compile nil query")
	}
	if res := queryir.Validate(q); !res.Valid {
		return "", nil, fmt.Errorf("invalid query: %s", strings.Join(res.Problems, "; "))
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	where := "run_id = ?"
	params := []any{c.RunID}
	if q.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		where += " AND " + filterSQL
		params = append(params, filterParams...)
	}

	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s",
		columns[q.From],
		q.From,
		where,
		orderKeys[q.From])

	return sql, params, nil
}

// compilePredicate compiles a queryir.Predicate to SQL WHERE clause fragment.
// Values are never interpolated.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		return compareSQL(pred.Field, "=", pred.Value)
	case *queryir.Equals:
		return compareSQL(pred.Field, "=", pred.Value)
	case queryir.Compare:
		return compareSQL(pred.Field, string(pred.Op), pred.Value)
	case *queryir.Compare:
		return compareSQL(pred.Field, string(pred.Op), pred.Value)
	case queryir.And:
		return c.compileAnd(pred)
	case *queryir.And:
		return c.compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compareSQL(field, op string, value any) (string, []any, error) {
	param, err := toParam(value)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("%s %s ?", field, op), []any{param}, nil
}

// compileAnd compiles an And predicate to a parenthesized conjunction.
func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil // vacuous truth
	}

	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, pred := range and.Predicates {
		sql, ps, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, ps...)
	}
	return "(" + strings.Join(parts, " AND ") + ")", params, nil
}

// toParam converts a filter value to a SQLite parameter. Booleans are
// stored as 0/1.
func toParam(v any) (any, error) {
	switch val := v.(type) {
	case string, int64:
		return val, nil
	case bool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	default:
		return nil, fmt.Errorf("unsupported value type for SQL parameter: %T", v)
	}
}
