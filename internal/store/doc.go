// Package store provides SQLite-backed durable storage for recorded runs.
//
// A recorded run is an append-only log with:
//   - Runs: the program (canonical JSON + hash), strategy and seed
//   - Triggers: every external event offered to the run, with gate outcome
//   - Selections: the winner of every arbitration step
//   - Bids: every requested event of every step, selected or vetoed
//   - Diagnostics: warnings and recovered failures reported as snapshots
//
// # Critical Patterns
//
// Logical Identity and Time
//   - All ordering uses the engine's step counter and per-run sequence
//     numbers, NEVER timestamps
//   - Runs are ordered by created_seq, assigned at insert
//
// Deterministic Query Results
//   - Every query has a total ORDER BY so replays read identical results
//
// Canonical Payloads
//   - Event details are stored as RFC 8785 canonical JSON via
//     ir.MarshalCanonical; details with fractional numbers fall back to
//     plain JSON
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
