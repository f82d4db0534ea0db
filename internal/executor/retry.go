// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package executor

import (
	"context"
	"errors"
	"time"

	"github.com/ManuGH/tourcast/internal/log"
	"github.com/ManuGH/tourcast/internal/metrics"
)

// AttemptEvent describes one finished attempt.
type AttemptEvent struct {
	StepID   string
	Attempt  int
	Outcome  string
	Err      error
	Started  time.Time
	Duration time.Duration
}

// Observer is notified after every attempt, successful or not.
type Observer interface {
	ObserveAttempt(ctx context.Context, ev AttemptEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev AttemptEvent)

func (f ObserverFunc) ObserveAttempt(ctx context.Context, ev AttemptEvent) { f(ctx, ev) }

// Policy bounds retries. Total attempts are MaxRetries+1.
type Policy struct {
	MaxRetries int
	Observer   Observer
	Clock      Clock
}

// Retry restarts the whole step after a failure. attempt is numbered from 1
// and must be idempotent with respect to the step: every call starts over.
// Fatal errors and cancellation are returned immediately.
func Retry(ctx context.Context, p Policy, stepID string, attempt func(ctx context.Context, n int) error) error {
	clock := p.Clock
	if clock == nil {
		clock = RealClock{}
	}
	logger := log.WithComponentFromContext(ctx, "executor")
	total := max(p.MaxRetries, 0) + 1

	var last error
	for n := 1; n <= total; n++ {
		started := clock.Now()
		err := attempt(ctx, n)
		ev := AttemptEvent{
			StepID:   stepID,
			Attempt:  n,
			Outcome:  Outcome(err),
			Err:      err,
			Started:  started,
			Duration: clock.Now().Sub(started),
		}
		metrics.RecordAttempt(ev.Outcome)
		if p.Observer != nil {
			p.Observer.ObserveAttempt(ctx, ev)
		}
		if err == nil {
			return nil
		}
		last = err

		if IsFatal(err) {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		logger.Warn().Err(err).
			Str(log.FieldEvent, "step.attempt_failed").
			Str(log.FieldStepID, stepID).
			Int(log.FieldAttempt, n).
			Int("max_attempts", total).
			Msg("step attempt failed")
	}

	var af *AssertionFailure
	if errors.As(last, &af) {
		return &StepAssertionError{StepID: stepID, Attempts: total, Last: af}
	}
	return &StepFailedError{StepID: stepID, Attempts: total, Err: last}
}
