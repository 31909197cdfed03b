package services

import "fmt"

// InvariantViolation reports a should-be-unreachable state, e.g. a computed
// percentage outside [0,100]. It is surfaced, never silently coerced.
type InvariantViolation struct {
	Msg string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation: %s", e.Msg)
}

func invariantf(format string, args ...interface{}) error {
	return &InvariantViolation{Msg: fmt.Sprintf(format, args...)}
}
