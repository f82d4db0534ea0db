// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package capture

import "fmt"

// CaptureSinkError means the recorder failed. The run is aborted; the step is
// not retried because a broken sink would fail again.
type CaptureSinkError struct {
	StepID string
	Err    error
}

func (e *CaptureSinkError) Error() string {
	return fmt.Sprintf("capture sink failed during step %q: %v", e.StepID, e.Err)
}

func (e *CaptureSinkError) Unwrap() error { return e.Err }

// Fatal marks the error as non-retryable for executor.Retry.
func (e *CaptureSinkError) Fatal() bool { return true }

// SessionError means a browser session could not be created.
type SessionError struct {
	StepID string
	Err    error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("browser session for step %q: %v", e.StepID, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }
