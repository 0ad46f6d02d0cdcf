package queryir

// Query represents an abstract query in the QueryIR.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in backend compilers.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Predicate represents a filter condition in the QueryIR.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - Equals: field = literal_value
//   - Compare: field <op> literal_value
//   - And: all predicates must be true
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Table names a trace table that can be queried.
type Table string

const (
	TableSelections Table = "selections"
	TableBids       Table = "bids"
)

// Kind is the value kind of a column.
type Kind int

const (
	KindText Kind = iota
	KindInt
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	}
	return "text"
}

// Column is a filterable column of a table.
type Column struct {
	Name string
	Kind Kind
}

// Schema lists the filterable columns of each table. Detail payloads are
// stored as JSON text and are not filterable.
var Schema = map[Table][]Column{
	TableSelections: {
		{"step", KindInt},
		{"type", KindText},
		{"thread", KindText},
		{"priority", KindInt},
	},
	TableBids: {
		{"step", KindInt},
		{"idx", KindInt},
		{"thread", KindText},
		{"type", KindText},
		{"is_trigger", KindBool},
		{"selected", KindBool},
		{"priority", KindInt},
		{"blocked_by", KindText},
		{"interrupts", KindText},
	},
}

// Lookup returns the column called name in table t.
func Lookup(t Table, name string) (Column, bool) {
	for _, c := range Schema[t] {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Select reads the rows of one table of one run.
//
// Semantics:
//
//	SELECT <columns> FROM <from> WHERE run_id = <run> AND <filter>
//
// Example:
//
//	Select{
//	  From: TableSelections,
//	  Filter: And{Predicates: []Predicate{
//	    Equals{Field: "type", Value: "hot"},
//	    Compare{Field: "step", Op: OpGe, Value: int64(3)},
//	  }},
//	}
type Select struct {
	From   Table
	Filter Predicate // nil = no filter
}

func (Select) queryNode() {}

// Equals represents a field-equals-literal predicate.
//
// Value is a string, int64 or bool matching the column kind.
type Equals struct {
	Field string
	Value any
}

func (Equals) predicateNode() {}

// Op is a comparison operator.
type Op string

const (
	OpNe Op = "!="
	OpLt Op = "<"
	OpLe Op = "<="
	OpGt Op = ">"
	OpGe Op = ">="
)

// Compare represents a field-compared-to-literal predicate. Ordering
// operators require an integer column; OpNe works on every kind.
type Compare struct {
	Field string
	Op    Op
	Value any
}

func (Compare) predicateNode() {}

// And represents a conjunction of predicates (all must be true).
// An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}
