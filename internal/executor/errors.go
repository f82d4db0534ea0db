// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package executor

import (
	"context"
	"errors"
	"fmt"
)

// ActionTimeoutError means an action did not finish within its timeout.
type ActionTimeoutError struct {
	StepID string
	Index  int
	Kind   string
	Err    error
}

func (e *ActionTimeoutError) Error() string {
	return fmt.Sprintf("step %q action %d (%s): timed out", e.StepID, e.Index, e.Kind)
}

func (e *ActionTimeoutError) Unwrap() error { return e.Err }

// ActionError wraps any other action failure.
type ActionError struct {
	StepID string
	Index  int
	Kind   string
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("step %q action %d (%s): %v", e.StepID, e.Index, e.Kind, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// AssertionFailure is a post-action assertion that did not hold.
type AssertionFailure struct {
	StepID string
	Index  int
	Kind   string
	Value  string
	// Got is the observed value, empty for element_visible.
	Got string
	Err error
}

func (e *AssertionFailure) Error() string {
	msg := fmt.Sprintf("step %q assertion %d (%s %q) failed", e.StepID, e.Index, e.Kind, e.Value)
	if e.Got != "" {
		msg += fmt.Sprintf(": got %q", e.Got)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AssertionFailure) Unwrap() error { return e.Err }

// StepAssertionError is returned when every attempt ended in a failed assertion.
type StepAssertionError struct {
	StepID   string
	Attempts int
	Last     *AssertionFailure
}

func (e *StepAssertionError) Error() string {
	return fmt.Sprintf("step %q: assertions still failing after %d attempts: %v", e.StepID, e.Attempts, e.Last)
}

func (e *StepAssertionError) Unwrap() error { return e.Last }

// StepFailedError is returned when retries are exhausted for any other reason.
type StepFailedError struct {
	StepID   string
	Attempts int
	Err      error
}

func (e *StepFailedError) Error() string {
	return fmt.Sprintf("step %q: failed after %d attempts: %v", e.StepID, e.Attempts, e.Err)
}

func (e *StepFailedError) Unwrap() error { return e.Err }

// fatal is implemented by errors that must abort the run instead of retrying,
// such as a broken video sink.
type fatal interface {
	Fatal() bool
}

// IsFatal reports whether err must not be retried. Cancellation is fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var f fatal
	return errors.As(err, &f) && f.Fatal()
}

// Outcome classifies an attempt result for metrics and the run ledger.
func Outcome(err error) string {
	var (
		timeout   *ActionTimeoutError
		assertion *AssertionFailure
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &assertion):
		return "assertion"
	case errors.As(err, &timeout):
		return "timeout"
	case IsFatal(err):
		return "fatal"
	default:
		return "error"
	}
}
