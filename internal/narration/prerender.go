// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package narration

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/ManuGH/tourcast/internal/log"
	"github.com/ManuGH/tourcast/internal/metrics"
	"github.com/ManuGH/tourcast/internal/tour"
)

// NormalizeText collapses whitespace and applies NFC so that composed and
// decomposed input synthesize (and count) identically.
func NormalizeText(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}

// Requests builds one request per step in spec order.
func Requests(spec *tour.Spec, dir string) []Request {
	items := spec.Items()
	out := make([]Request, 0, len(items))
	for _, st := range items {
		out = append(out, Request{
			StepID:   st.ID,
			Text:     NormalizeText(st.Narration),
			Voice:    spec.Settings.Voice,
			Speed:    spec.Settings.SpeechSpeed,
			Language: spec.Settings.Language,
			Path:     AudioPath(dir, st.ID),
		})
	}
	return out
}

// Prerender synthesizes every step before any capture begins. Assets are
// returned in spec order.
func Prerender(ctx context.Context, synth Synthesizer, spec *tour.Spec, dir string) ([]Asset, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}
	logger := log.WithComponentFromContext(ctx, "narration")
	backend := backendName(synth)
	reqs := Requests(spec, dir)
	start := time.Now()

	var assets []Asset
	if batch, ok := synth.(BatchSynthesizer); ok {
		var err error
		if assets, err = batch.SynthesizeBatch(ctx, reqs); err != nil {
			return nil, err
		}
		if len(assets) != len(reqs) {
			return nil, fmt.Errorf("batch returned %d assets for %d steps", len(assets), len(reqs))
		}
	} else {
		assets = make([]Asset, 0, len(reqs))
		for _, req := range reqs {
			a, err := synth.Synthesize(log.ContextWithStepID(ctx, req.StepID), req)
			if err != nil {
				return nil, &StepError{StepID: req.StepID, Err: err}
			}
			assets = append(assets, a)
		}
	}

	var total time.Duration
	for i, a := range assets {
		if a.StepID != reqs[i].StepID {
			return nil, fmt.Errorf("asset %d is for step %q, want %q", i, a.StepID, reqs[i].StepID)
		}
		if a.Duration <= 0 {
			return nil, &StepError{StepID: a.StepID, Err: ErrEmptyAudio}
		}
		total += a.Duration
		logger.Info().
			Str(log.FieldStepID, a.StepID).
			Float64(log.FieldDuration, a.Duration.Seconds()).
			Msg("narration ready")
	}
	metrics.AddNarration(backend, total.Seconds())
	logger.Info().
		Str("backend", backend).
		Int("steps", len(assets)).
		Float64("total_s", total.Seconds()).
		Float64("target_s", spec.Meta.TargetDurationSeconds).
		Dur("elapsed", time.Since(start)).
		Msg("narration prerendered")
	return assets, nil
}

func backendName(s Synthesizer) string {
	if b, ok := s.(Backend); ok {
		return b.Name()
	}
	return "custom"
}
