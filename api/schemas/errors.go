package schemas

import (
	"fmt"
	"strings"
	"time"
)

// Error taxonomy. ParseError and ValidationError are fatal before any browser
// interaction. TimeoutError converts a run to FAILED; DriverError converts it
// to ERRORED and makes it eligible for retry. Assertion and probe failures
// are recorded as data, never raised as errors.

// ParseError reports a malformed scenario line. The whole scenario is
// rejected before any driver call is issued.
type ParseError struct {
	Line    int
	Content string
	Reason  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("scenario line %d: %s (%q)", e.Line, e.Reason, e.Content)
}

// ValidationError reports a manifest that is missing required fields.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "manifest validation failed: " + strings.Join(e.Problems, "; ")
}

// TimeoutError reports a wait/expect that did not resolve within budget.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s did not resolve within %s", e.Op, e.Timeout)
}

// DriverError reports a failure of the browser automation backend itself.
type DriverError struct {
	Op  string
	Err error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("driver %s: %v", e.Op, e.Err)
}

func (e *DriverError) Unwrap() error { return e.Err }
