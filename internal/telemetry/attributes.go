// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for consistent tracing across the pipeline.
const (
	RunIDKey    = "tour.run_id"
	RunModeKey  = "tour.mode"
	PhaseKey    = "tour.phase"
	StepIDKey   = "tour.step_id"
	AttemptKey  = "tour.attempt"
	ClipKindKey = "media.clip_kind"
	ClipPathKey = "media.clip_path"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// RunAttributes creates run-level span attributes.
func RunAttributes(runID, mode string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(RunIDKey, runID),
		attribute.String(RunModeKey, mode),
	}
}

// PhaseAttributes creates pipeline phase span attributes.
func PhaseAttributes(phase string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String(PhaseKey, phase)}
}

// StepAttributes creates step-attempt span attributes.
func StepAttributes(stepID string, attempt int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(StepIDKey, stepID)}
	if attempt > 0 {
		attrs = append(attrs, attribute.Int(AttemptKey, attempt))
	}
	return attrs
}

// ClipAttributes creates media clip span attributes.
func ClipAttributes(kind, path string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ClipKindKey, kind),
		attribute.String(ClipPathKey, path),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}

// EndSpan records err on span (if any) and ends it.
func EndSpan(span trace.Span, err error, errorType string) {
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(ErrorAttributes(errorType)...)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
