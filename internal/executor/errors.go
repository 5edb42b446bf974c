package executor

import (
	"context"
	"errors"
	"fmt"
)

// Error represents a stage execution failure. Retryable marks transient
// external conditions (rate limits, timeouts, flaky transport) that are
// worth another attempt; everything else is fatal for the attempt chain.
type Error struct {
	Stage     string
	Message   string
	Retryable bool
	Cause     error
}

func (e *Error) Error() string {
	kind := "fatal"
	if e.Retryable {
		kind = "transient"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s stage (%s): %s: %v", e.Stage, kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s stage (%s): %s", e.Stage, kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Transient wraps a retryable external failure.
func Transient(stage, message string, cause error) *Error {
	return &Error{Stage: stage, Message: message, Retryable: true, Cause: cause}
}

// Fatal wraps a non-retryable stage failure.
func Fatal(stage, message string, cause error) *Error {
	return &Error{Stage: stage, Message: message, Retryable: false, Cause: cause}
}

// IsRetryable reports whether another attempt at the failed call could
// succeed. Deadline expiry counts as retryable: the timeout aborts only
// that attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var stageErr *Error
	if errors.As(err, &stageErr) {
		return stageErr.Retryable
	}
	return false
}
