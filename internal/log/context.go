// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package log provides structured logging utilities.
package log

import (
	"context"

	"github.com/rs/zerolog"
)

// correlation is copied on every update so parent contexts never observe a
// child's step or job.
type correlation struct {
	runID  string
	stepID string
	jobID  string
}

type correlationKey struct{}

func correlationFrom(ctx context.Context) correlation {
	if ctx == nil {
		return correlation{}
	}
	c, _ := ctx.Value(correlationKey{}).(correlation)
	return c
}

func withCorrelation(ctx context.Context, update func(*correlation)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	c := correlationFrom(ctx)
	update(&c)
	return context.WithValue(ctx, correlationKey{}, c)
}

// ContextWithRunID tags ctx with the recording run.
func ContextWithRunID(ctx context.Context, id string) context.Context {
	return withCorrelation(ctx, func(c *correlation) { c.runID = id })
}

// ContextWithStepID tags ctx with the tour step being worked on.
func ContextWithStepID(ctx context.Context, id string) context.Context {
	return withCorrelation(ctx, func(c *correlation) { c.stepID = id })
}

// ContextWithJobID tags ctx with an offloaded synthesis job.
func ContextWithJobID(ctx context.Context, id string) context.Context {
	return withCorrelation(ctx, func(c *correlation) { c.jobID = id })
}

func RunIDFromContext(ctx context.Context) string  { return correlationFrom(ctx).runID }
func StepIDFromContext(ctx context.Context) string { return correlationFrom(ctx).stepID }
func JobIDFromContext(ctx context.Context) string  { return correlationFrom(ctx).jobID }

// WithContext adds the correlation fields carried by ctx to logger. A context
// without any returns logger unchanged.
func WithContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	c := correlationFrom(ctx)
	if c == (correlation{}) {
		return logger
	}
	b := logger.With()
	for _, f := range [...]struct{ key, val string }{
		{FieldRunID, c.runID},
		{FieldStepID, c.stepID},
		{FieldJobID, c.jobID},
	} {
		if f.val != "" {
			b = b.Str(f.key, f.val)
		}
	}
	return b.Logger()
}

// WithComponentFromContext is WithComponent plus the correlation fields of ctx.
func WithComponentFromContext(ctx context.Context, component string) zerolog.Logger {
	return WithContext(ctx, WithComponent(component))
}

// FromContext returns the base logger enriched from ctx.
func FromContext(ctx context.Context) *zerolog.Logger {
	l := WithContext(ctx, Base())
	return &l
}
