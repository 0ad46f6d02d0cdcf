package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/bprogram/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type       string         // Assertion type for categorization
	Expected   string         // Human-readable expected outcome
	Actual     string         // Human-readable actual outcome
	Selections []ir.Selection // Full selection trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	// Header with assertion type
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)

	// Expected vs Actual (most important info)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Selections) > 0 {
		fmt.Fprintf(&buf, "\nSelections:\n")
		for _, sel := range e.Selections {
			fmt.Fprintf(&buf, "  [%d] %s by %s\n", sel.Step, sel.Type, sel.Thread)
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion and returns one message per
// failure, in declaration order.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertSelectedOrder:
		return assertSelectedOrder(result.Selections, a)
	case AssertSelectedSequence:
		return assertSelectedSequence(result.Selections, a)
	case AssertSelectedCount:
		return assertSelectedCount(result.Selections, a.Event, a.Count, a.Type)
	case AssertNeverSelected:
		return assertSelectedCount(result.Selections, a.Event, 0, a.Type)
	case AssertThreadAbsent:
		if slices.Contains(result.Threads, a.Thread) {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("thread %s not registered", a.Thread),
				Actual:   fmt.Sprintf("registered threads: %v", result.Threads),
			}
		}
	case AssertThreadPresent:
		if !slices.Contains(result.Threads, a.Thread) {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("thread %s registered", a.Thread),
				Actual:   fmt.Sprintf("registered threads: %v", result.Threads),
			}
		}
	case AssertDiagnosticCount:
		return assertDiagnosticCount(result.Diagnostics, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
	return nil
}

// assertSelectedOrder checks that events are selected in the given order.
// Events don't need to be consecutive (intervening selections are allowed),
// and each event is matched after the previous match.
func assertSelectedOrder(sels []ir.Selection, a Assertion) error {
	next := 0
	for _, sel := range sels {
		if next < len(a.Events) && sel.Type == a.Events[next] {
			next++
		}
	}
	if next == len(a.Events) {
		return nil
	}
	return &AssertionError{
		Type:       a.Type,
		Expected:   fmt.Sprintf("events in order: %v", a.Events),
		Actual:     fmt.Sprintf("%s not selected after %v", a.Events[next], a.Events[:next]),
		Selections: sels,
	}
}

// assertSelectedSequence checks that the selections are exactly the events.
func assertSelectedSequence(sels []ir.Selection, a Assertion) error {
	got := ir.SelectedTypes(sels)
	if slices.Equal(got, a.Events) {
		return nil
	}
	return &AssertionError{
		Type:       a.Type,
		Expected:   fmt.Sprintf("selections %v", a.Events),
		Actual:     fmt.Sprintf("selections %v", got),
		Selections: sels,
	}
}

// assertSelectedCount checks that the event is selected exactly count times.
func assertSelectedCount(sels []ir.Selection, event string, count int, kind string) error {
	n := 0
	for _, sel := range sels {
		if sel.Type == event {
			n++
		}
	}
	if n == count {
		return nil
	}
	return &AssertionError{
		Type:       kind,
		Expected:   fmt.Sprintf("%d selections of %s", count, event),
		Actual:     fmt.Sprintf("%d selections", n),
		Selections: sels,
	}
}

// assertDiagnosticCount checks the number of diagnostics of one kind.
func assertDiagnosticCount(diags []ir.Diagnostic, a Assertion) error {
	n := 0
	var messages []string
	for _, d := range diags {
		if d.Kind == a.Kind {
			n++
			messages = append(messages, d.Message)
		}
	}
	if n == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%d %s diagnostics", a.Count, a.Kind),
		Actual:   fmt.Sprintf("%d: %v", n, messages),
	}
}
