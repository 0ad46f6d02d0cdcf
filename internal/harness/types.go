package harness

import (
	"github.com/roach88/bprogram/internal/engine"
	"github.com/roach88/bprogram/internal/ir"
	"github.com/roach88/bprogram/internal/testutil"
)

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every assertion and the feedback expectation hold.
	Pass bool `json:"pass"`

	// Selections are the recorded selections, read back from the store.
	Selections []ir.Selection `json:"selections"`

	// Diagnostics are the recorded non-selection snapshots.
	Diagnostics []ir.Diagnostic `json:"diagnostics"`

	// Feedback lists handler invocations in order.
	Feedback []testutil.FeedbackEntry `json:"feedback"`

	// Snapshots are the raw snapshot messages, in emission order.
	Snapshots []engine.SnapshotMessage `json:"-"`

	// Threads are the threads still registered after the last trigger.
	Threads []string `json:"threads"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:        true,
		Selections:  []ir.Selection{},
		Diagnostics: []ir.Diagnostic{},
		Feedback:    []testutil.FeedbackEntry{},
		Threads:     []string{},
		Errors:      []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// SelectedTypes lists the selected event types in order.
func (r *Result) SelectedTypes() []string {
	return ir.SelectedTypes(r.Selections)
}
