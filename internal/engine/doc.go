// Package engine implements a Behavioral Programming event arbiter.
//
// A program is a set of named behavior threads. Each thread is a cursor
// over synchronization points (Idiom): at every pause it requests events,
// waits for events, and blocks events. The arbiter merges all current
// declarations, picks exactly one unblocked requested event per step, and
// resumes only the threads that requested or waited for it.
//
// ARCHITECTURE:
//
// Step loop:
// 1. Threads without a current sync point are pulled; exhausted cursors
// leave the registry
// 2. Requests (arrays and templates expanded) become candidates unless a
// Block or Interrupt from any thread matches them
// 3. The Strategy picks a winner; priority (registration order) by default
// 4. A selection snapshot is published
// 5. Requesters and waiters of the winner advance
// 6. The feedback handler for the winner runs
//
// Trigger queue:
// Trigger enqueues. Only the outermost call drains, so handlers that
// trigger never recurse into the arbiter. A triggered event is a one-shot
// priority-0 bid named "trigger(<type>)".
//
// Isolation:
// Each Engine owns its registry, queue and observers. Instances coordinate
// through gated triggers (PublicTrigger, RestrictedTrigger) layered on
// explicit message passing.
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// Every selection advances Clock; snapshots carry the step number. Wall
// clock time is never used.
//
// Determinism:
// With PriorityStrategy, or a seeded *rand.Rand for the randomized
// strategies, identical programs and triggers produce identical traces.
package engine
