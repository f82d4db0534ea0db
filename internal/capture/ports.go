// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package capture owns browser sessions and raw screen recordings for a run.
// It decides between one recording per step (independent mode) and a single
// recording for the whole tour (continuous mode).
package capture

import (
	"context"
	"time"

	"github.com/ManuGH/tourcast/internal/executor"
	"github.com/ManuGH/tourcast/internal/tour"
)

// SessionOptions configures a new browser session.
type SessionOptions struct {
	Viewport tour.Viewport
	FPS      int
}

// Browser creates isolated sessions. Sessions must not share state.
type Browser interface {
	NewSession(ctx context.Context, opts SessionOptions) (Session, error)
}

// Session is a drivable page that can also be recorded.
type Session interface {
	executor.Target
	// Record starts the video sink writing to path.
	Record(ctx context.Context, path string) (Recording, error)
	Close() error
}

// Recording is a running video sink.
type Recording interface {
	// Offset is the position of the next frame in the recording's own timeline.
	Offset() time.Duration
	// Err reports a sink failure without blocking; nil while healthy.
	Err() error
	// Stop flushes and closes the sink. It is safe to call more than once.
	Stop(ctx context.Context) error
}
