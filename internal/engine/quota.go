package engine

import (
	"errors"
	"fmt"
)

// DefaultMaxSteps is the default number of selections allowed in a single
// drain of the trigger queue. It stops programs whose threads keep
// requesting events forever (a ticker without a guard) from hanging the
// caller of Trigger.
const DefaultMaxSteps = 10000

// QuotaEnforcer counts selections within one drain and enforces the step
// budget. A limit of 0 disables enforcement.
type QuotaEnforcer struct {
	maxSteps int
	current  int
}

// NewQuotaEnforcer creates a quota enforcer with the given limit.
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check increments the step counter and validates it against the limit.
// Returns StepsExceededError once the budget is spent.
func (q *QuotaEnforcer) Check(trigger string) error {
	q.current++
	if q.maxSteps > 0 && q.current > q.maxSteps {
		return &StepsExceededError{
			Trigger: trigger,
			Steps:   q.current,
			Limit:   q.maxSteps,
		}
	}
	return nil
}

// Reset resets the counter at the start of a drain.
func (q *QuotaEnforcer) Reset() {
	q.current = 0
}

// Current returns the number of selections counted so far.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxSteps returns the configured limit.
func (q *QuotaEnforcer) MaxSteps() int {
	return q.maxSteps
}

// StepsExceededError is returned when a drain exceeds the step budget.
type StepsExceededError struct {
	Trigger string // type of the trigger that started the drain
	Steps   int
	Limit   int
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("drain started by %q exceeded max steps: %d steps > %d limit",
		e.Trigger, e.Steps, e.Limit)
}

// AsStepsExceeded unwraps a StepsExceededError from err.
func AsStepsExceeded(err error) (*StepsExceededError, bool) {
	var se *StepsExceededError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
