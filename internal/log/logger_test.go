// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigure_AttachesServiceAndVersion(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "tourcast-test", Version: "v0.0.1"})
	t.Cleanup(func() { Configure(Config{}) })

	l := WithComponent("pipeline")
	l.Info().Str(FieldEvent, "phase.started").Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "tourcast-test", entry["service"])
	assert.Equal(t, "v0.0.1", entry["version"])
	assert.Equal(t, "pipeline", entry[FieldComponent])
	assert.Equal(t, "phase.started", entry[FieldEvent])
}

func TestWithContext_AddsRunAndStep(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	ctx := ContextWithRunID(context.Background(), "run-1")
	ctx = ContextWithStepID(ctx, "intro")

	l := WithComponentFromContext(ctx, "capture")
	l.Info().Msg("x")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "run-1", entry[FieldRunID])
	assert.Equal(t, "intro", entry[FieldStepID])
	assert.Equal(t, "capture", entry[FieldComponent])
}

func TestWithContext_NoFieldsReturnsSameLogger(t *testing.T) {
	base := Base()
	got := WithContext(context.Background(), base)
	assert.Equal(t, base, got)
	assert.Empty(t, RunIDFromContext(context.Background()))
}

func TestContextWithStepID_DoesNotLeakToParent(t *testing.T) {
	parent := ContextWithRunID(context.Background(), "run-1")
	child := ContextWithJobID(ContextWithStepID(parent, "intro"), "job-9")

	assert.Equal(t, "run-1", RunIDFromContext(child))
	assert.Equal(t, "intro", StepIDFromContext(child))
	assert.Equal(t, "job-9", JobIDFromContext(child))
	assert.Empty(t, StepIDFromContext(parent))
	assert.Empty(t, JobIDFromContext(parent))
}

func TestFromContext_CarriesCorrelation(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	FromContext(ContextWithRunID(context.Background(), "run-7")).Info().Msg("x")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "run-7", entry[FieldRunID])
	assert.NotContains(t, entry, FieldStepID)
}
