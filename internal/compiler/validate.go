package compiler

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/bprogram/internal/engine"
	"github.com/roach88/bprogram/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrProgramNameEmpty   = "E101" // program name is required
	ErrProgramNoThreads   = "E102" // at least one thread required
	ErrDuplicateThread    = "E103" // thread names must be unique
	ErrThreadNameEmpty    = "E104" // thread name is required
	ErrThreadNoSyncs      = "E105" // thread must declare sync points
	ErrEventTypeEmpty     = "E106" // requested event without type
	ErrInvalidMatcher     = "E107" // matcher with no or conflicting constraints
	ErrUnknownStrategy    = "E108" // strategy name not recognized
	ErrPublicEventEmpty   = "E109" // empty public event name
	ErrShuffleLoneSync    = "E110" // shuffle on fewer than two sync points (warning)
	ErrEmptySyncPoint     = "E111" // sync point declares nothing (warning)
	ErrSelfBlockedWait    = "E112" // sync point waits for a type it also blocks (warning)
	ErrSelfBlockedRequest = "E113" // sync point requests a type it also blocks (warning)
)

// Severity levels of validation findings.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// ValidationError represents a schema validation finding.
type ValidationError struct {
	Field    string `json:"field"`
	Message  string `json:"message"`
	Code     string `json:"code"`
	Severity string `json:"severity"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// HasErrors reports whether any finding is an error rather than a warning.
func HasErrors(errs []ValidationError) bool {
	for _, e := range errs {
		if e.Severity != SeverityWarning {
			return true
		}
	}
	return false
}

// Validate validates a compiled program.
// Returns all findings (does not fail-fast).
func Validate(p *ir.Program) []ValidationError {
	var errs []ValidationError
	fail := func(code, field, msg string) {
		errs = append(errs, ValidationError{Field: field, Message: msg, Code: code, Severity: SeverityError})
	}
	warn := func(code, field, msg string) {
		errs = append(errs, ValidationError{Field: field, Message: msg, Code: code, Severity: SeverityWarning})
	}

	if strings.TrimSpace(p.Name) == "" {
		fail(ErrProgramNameEmpty, "name", "program name is required")
	}

	if _, err := engine.ParseStrategy(p.Strategy, nil); err != nil {
		fail(ErrUnknownStrategy, "strategy", fmt.Sprintf("unknown strategy %q", p.Strategy))
	}

	for i, ev := range p.PublicEvents {
		if strings.TrimSpace(ev) == "" {
			fail(ErrPublicEventEmpty, fmt.Sprintf("public_events[%d]", i), "event type must be non-empty")
		}
	}

	if len(p.Threads) == 0 {
		fail(ErrProgramNoThreads, "threads", "at least one thread is required")
	}

	names := make(map[string]bool)
	for i, th := range p.Threads {
		field := fmt.Sprintf("threads[%d]", i)

		if strings.TrimSpace(th.Name) == "" {
			fail(ErrThreadNameEmpty, field+".name", "thread name is required")
		} else if names[th.Name] {
			fail(ErrDuplicateThread, field+".name", fmt.Sprintf("duplicate thread name: %q", th.Name))
		}
		names[th.Name] = true

		if len(th.Syncs) == 0 {
			fail(ErrThreadNoSyncs, field+".syncs", fmt.Sprintf("thread %q must declare at least one sync point", th.Name))
		}
		if th.Shuffle && len(th.Syncs) < 2 {
			warn(ErrShuffleLoneSync, field+".shuffle", "shuffle has no effect on fewer than two sync points")
		}

		for j, s := range th.Syncs {
			errs = append(errs, validateSync(s, fmt.Sprintf("%s.syncs[%d]", field, j))...)
		}
	}

	return errs
}

func validateSync(s ir.SyncSpec, field string) []ValidationError {
	var errs []ValidationError

	if s.Empty() {
		return []ValidationError{{
			Field:    field,
			Message:  "sync point declares nothing; the thread will never advance",
			Code:     ErrEmptySyncPoint,
			Severity: SeverityWarning,
		}}
	}

	for key, events := range map[string][]ir.EventSpec{"request": s.Request, "random_request": s.RandomRequest} {
		for i, ev := range events {
			if strings.TrimSpace(ev.Type) == "" {
				errs = append(errs, ValidationError{
					Field:    fmt.Sprintf("%s.%s[%d].type", field, key, i),
					Message:  "event type is required",
					Code:     ErrEventTypeEmpty,
					Severity: SeverityError,
				})
			}
		}
	}

	for key, ms := range map[string][]ir.MatcherSpec{"wait_for": s.WaitFor, "block": s.Block, "interrupt": s.Interrupt} {
		for i, m := range ms {
			if msg := matcherProblem(m); msg != "" {
				errs = append(errs, ValidationError{
					Field:    fmt.Sprintf("%s.%s[%d]", field, key, i),
					Message:  msg,
					Code:     ErrInvalidMatcher,
					Severity: SeverityError,
				})
			}
		}
	}

	blocked := make(map[string]bool)
	for _, m := range append(append([]ir.MatcherSpec{}, s.Block...), s.Interrupt...) {
		if m.Type != "" && m.Path == "" {
			blocked[m.Type] = true
		}
	}
	for _, m := range s.WaitFor {
		if m.Type != "" && m.Path == "" && blocked[m.Type] {
			errs = append(errs, ValidationError{
				Field:    field + ".wait_for",
				Message:  fmt.Sprintf("waits for %q, which it also blocks", m.Type),
				Code:     ErrSelfBlockedWait,
				Severity: SeverityWarning,
			})
		}
	}
	for _, ev := range s.Request {
		if blocked[ev.Type] {
			errs = append(errs, ValidationError{
				Field:    field + ".request",
				Message:  fmt.Sprintf("requests %q, which it also blocks", ev.Type),
				Code:     ErrSelfBlockedRequest,
				Severity: SeverityWarning,
			})
		}
	}

	// Map iteration order must not leak into the report.
	slices.SortStableFunc(errs, func(a, b ValidationError) int {
		return cmp.Compare(a.Field, b.Field)
	})
	return errs
}

// matcherProblem describes what is wrong with a matcher, or returns "".
func matcherProblem(m ir.MatcherSpec) string {
	switch {
	case m.Any && (m.Type != "" || m.Path != "" || m.Equals != nil || m.Exists != nil):
		return "any cannot be combined with other constraints"
	case m.Any:
		return ""
	case m.Path == "" && (m.Equals != nil || m.Exists != nil):
		return "equals and exists require a path"
	case m.Equals != nil && m.Exists != nil && !*m.Exists:
		return "equals cannot be combined with exists: false"
	case m.Type == "" && m.Path == "":
		return "matcher needs a type, a path, or any: true"
	}
	return ""
}
