// Package ir provides the serializable description of behavioral programs
// and their recorded traces.
//
// A Program is the declarative form of a set of threads: what the compiler
// produces from CUE, what program files decode into, and what the program
// package turns into live engine rules. Trace types (Run, Selection, Bid,
// Diagnostic) are what the store persists.
//
// ir imports nothing internal. Every other internal package may import it.
//
// Key design constraints:
//   - All JSON and YAML tags use snake_case
//   - Canonical JSON (MarshalCanonical) is the only encoding used for hashing
//   - Logical steps only, never wall-clock timestamps
package ir
