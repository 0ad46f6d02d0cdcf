// Package queryir is a small query representation for filtering recorded
// traces.
//
// A query selects rows of one trace table (selections or bids) of a run
// and filters them with predicates over the table's columns:
//
//	[--where flags] → [Query IR] → [SQL Backend] → rows
//
// The IR is deliberately narrow:
//   - Select(from, filter) over a single table; there are no joins
//   - Predicates: Equals, Compare and And
//   - Fields must name a known column; ordering comparisons only apply to
//     integer columns
//
// Field names end up in generated SQL, so Validate must accept a query
// before a backend compiles it. Values are always passed as parameters.
package queryir
