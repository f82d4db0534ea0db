// SPDX-License-Identifier: MIT
package telemetry

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/codes"
)

func TestStepAttributes(t *testing.T) {
	attrs := StepAttributes("intro", 2)
	if len(attrs) != 2 {
		t.Fatalf("Expected 2 attributes, got %d", len(attrs))
	}
	verifyAttribute(t, attrs, StepIDKey, "intro")

	if got := StepAttributes("intro", 0); len(got) != 1 {
		t.Fatalf("Expected attempt to be omitted, got %d attributes", len(got))
	}
}

func TestEndSpan_RecordsError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	_, span := tp.Tracer("test").Start(context.Background(), "phase")

	EndSpan(span, errors.New("boom"), "capture")

	ended := recorder.Ended()
	if len(ended) != 1 {
		t.Fatalf("Expected 1 ended span, got %d", len(ended))
	}
	if ended[0].Status().Code != codes.Error {
		t.Errorf("Expected error status, got %v", ended[0].Status().Code)
	}
	verifyAttribute(t, ended[0].Attributes(), ErrorTypeKey, "capture")
}

func TestNewProvider_DisabledIsNoop(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}
}

func TestNewProvider_RejectsUnknownExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, ExporterType: "zipkin"})
	if err == nil {
		t.Fatal("expected error for unsupported exporter")
	}
}

func verifyAttribute(t *testing.T, attrs []attribute.KeyValue, key, expected string) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsString() != expected {
				t.Errorf("Attribute %s: expected %s, got %s", key, expected, attr.Value.AsString())
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}

func TestNewSampler(t *testing.T) {
	cases := map[float64]string{1: "AlwaysOnSampler", 0: "AlwaysOffSampler", 0.25: "TraceIDRatioBased{0.25}"}
	for rate, root := range cases {
		desc := newSampler(rate).Description()
		if !strings.Contains(desc, "ParentBased{root:"+root) {
			t.Errorf("newSampler(%v) = %s, want root %s", rate, desc, root)
		}
	}
}

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNewProvider_UnknownExporter(t *testing.T) {
	if _, err := NewProvider(context.Background(), Config{Enabled: true, ExporterType: "carrier"}); err == nil {
		t.Fatal("expected error for unknown exporter")
	}
}
