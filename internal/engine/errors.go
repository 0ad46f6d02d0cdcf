package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents a failure detected while the engine arbitrates.
//
// Runtime errors never escape Trigger. They are logged and published as
// snapshot diagnostics:
//   - Thread failure: a cursor or request template panicked
//   - Feedback failure: a handler panicked
//   - Restricted event: a gate dropped an event at a trust boundary
//   - Steps exceeded: one drain selected more events than allowed
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Thread names the affected thread, if any.
	Thread string

	// EventType names the affected event, if any.
	EventType string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeThreadFailed indicates a thread panicked while producing a bid.
	ErrCodeThreadFailed RuntimeErrorCode = "THREAD_FAILED"

	// ErrCodeFeedbackFailed indicates a feedback handler panicked.
	ErrCodeFeedbackFailed RuntimeErrorCode = "FEEDBACK_FAILED"

	// ErrCodeRestrictedEvent indicates an event was refused by a gate.
	ErrCodeRestrictedEvent RuntimeErrorCode = "RESTRICTED_EVENT"

	// ErrCodeStepsExceeded indicates a drain hit the step budget.
	ErrCodeStepsExceeded RuntimeErrorCode = "STEPS_EXCEEDED"

	// ErrCodeUnknownStrategy indicates an unrecognized strategy name.
	ErrCodeUnknownStrategy RuntimeErrorCode = "UNKNOWN_STRATEGY"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Thread != "" && e.EventType != "" {
		return fmt.Sprintf("%s: %s (thread=%s, event=%s)", e.Code, e.Message, e.Thread, e.EventType)
	}
	if e.Thread != "" {
		return fmt.Sprintf("%s: %s (thread=%s)", e.Code, e.Message, e.Thread)
	}
	if e.EventType != "" {
		return fmt.Sprintf("%s: %s (event=%s)", e.Code, e.Message, e.EventType)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsThreadError reports whether err is a thread failure.
func IsThreadError(err error) bool {
	return hasCode(err, ErrCodeThreadFailed)
}

// IsFeedbackError reports whether err is a feedback handler failure.
func IsFeedbackError(err error) bool {
	return hasCode(err, ErrCodeFeedbackFailed)
}

// IsRestrictedError reports whether err is a gate refusal.
func IsRestrictedError(err error) bool {
	return hasCode(err, ErrCodeRestrictedEvent)
}

// IsStepsExceededError reports whether err is a step budget failure.
// Matches both RuntimeError with ErrCodeStepsExceeded and StepsExceededError.
func IsStepsExceededError(err error) bool {
	if hasCode(err, ErrCodeStepsExceeded) {
		return true
	}
	var se *StepsExceededError
	return errors.As(err, &se)
}

// newPanicError converts a recovered value into a RuntimeError.
func newPanicError(code RuntimeErrorCode, thread, eventType string, recovered any) *RuntimeError {
	return &RuntimeError{
		Code:      code,
		Message:   panicMessage(recovered),
		Thread:    thread,
		EventType: eventType,
	}
}

// panicMessage renders a recovered value the way error strings read:
// errors by their message, everything else with %v.
func panicMessage(recovered any) string {
	if err, ok := recovered.(error); ok {
		return err.Error()
	}
	return fmt.Sprintf("%v", recovered)
}
