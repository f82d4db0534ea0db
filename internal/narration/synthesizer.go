// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package narration turns step narration into WAV assets with measured
// durations. All synthesis completes before capture starts.
package narration

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

var (
	// ErrMissingAudio is returned when a reused or offloaded WAV is absent.
	ErrMissingAudio = errors.New("narration audio missing")
	// ErrEmptyAudio is returned for assets with zero duration.
	ErrEmptyAudio = errors.New("narration audio is empty")
)

// Request is one step's synthesis input. Path is where the WAV must land.
type Request struct {
	StepID   string
	Text     string
	Voice    string
	Speed    float64
	Language string
	Path     string
}

// Asset is a synthesized narration with its measured duration.
type Asset struct {
	StepID   string
	Path     string
	Duration time.Duration
}

// Synthesizer produces one asset per request, blocking until it is on disk.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (Asset, error)
}

// BatchSynthesizer handles all requests of a run in one job.
type BatchSynthesizer interface {
	SynthesizeBatch(ctx context.Context, reqs []Request) ([]Asset, error)
}

// Backend names a synthesizer for logs and metrics.
type Backend interface {
	Name() string
}

// StepError ties a synthesis failure to its step.
type StepError struct {
	StepID string
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("narration for step %q: %v", e.StepID, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// AudioPath is the canonical WAV location for a step inside dir.
func AudioPath(dir, stepID string) string {
	return filepath.Join(dir, "step-"+stepID+".wav")
}

// measure validates the WAV at path and builds the asset.
func measure(stepID, path string) (Asset, error) {
	d, err := WAVDuration(path)
	if err != nil {
		return Asset{}, err
	}
	if d <= 0 {
		return Asset{}, ErrEmptyAudio
	}
	return Asset{StepID: stepID, Path: path, Duration: d}, nil
}
