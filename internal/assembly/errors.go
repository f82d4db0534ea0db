// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package assembly

import (
	"fmt"
	"strings"
	"time"
)

// NormalizationError means a clip could not be brought to the canonical format.
type NormalizationError struct {
	ClipID   string
	Kind     string
	Mismatch []string
	Err      error
}

func (e *NormalizationError) Error() string {
	if len(e.Mismatch) > 0 {
		return fmt.Sprintf("normalize %s clip %q: output not canonical: %s",
			e.Kind, e.ClipID, strings.Join(e.Mismatch, ", "))
	}
	return fmt.Sprintf("normalize %s clip %q: %v", e.Kind, e.ClipID, e.Err)
}

func (e *NormalizationError) Unwrap() error { return e.Err }

// ConcatDurationMismatchError means the joined video is not the sum of its
// parts, or its streams drifted apart.
type ConcatDurationMismatchError struct {
	Final     time.Duration
	Expected  time.Duration
	Tolerance time.Duration
	// AVDrift is set when the failure is video/audio drift.
	AVDrift time.Duration
}

func (e *ConcatDurationMismatchError) Error() string {
	if e.AVDrift > 0 {
		return fmt.Sprintf("final video and audio differ by %.3fs (limit %.3fs)",
			e.AVDrift.Seconds(), e.Tolerance.Seconds())
	}
	return fmt.Sprintf("final duration %.3fs differs from clip sum %.3fs by more than %.3fs",
		e.Final.Seconds(), e.Expected.Seconds(), e.Tolerance.Seconds())
}

// MaxDurationExceededError means the published video would exceed meta.max_duration.
type MaxDurationExceededError struct {
	Duration time.Duration
	Max      time.Duration
}

func (e *MaxDurationExceededError) Error() string {
	return fmt.Sprintf("final duration %.2fs exceeds max_duration %.2fs", e.Duration.Seconds(), e.Max.Seconds())
}
