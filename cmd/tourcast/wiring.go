// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/ManuGH/tourcast/internal/assembly"
	"github.com/ManuGH/tourcast/internal/browser"
	"github.com/ManuGH/tourcast/internal/camera"
	"github.com/ManuGH/tourcast/internal/capture"
	"github.com/ManuGH/tourcast/internal/config"
	"github.com/ManuGH/tourcast/internal/executor"
	"github.com/ManuGH/tourcast/internal/ledger"
	"github.com/ManuGH/tourcast/internal/media"
	"github.com/ManuGH/tourcast/internal/narration"
	"github.com/ManuGH/tourcast/internal/pipeline"
	"github.com/ManuGH/tourcast/internal/tour"
)

// newSynthesizer selects the narration backend.
func newSynthesizer(cfg config.AppConfig) (narration.Synthesizer, error) {
	switch cfg.TTS.Backend {
	case config.TTSBackendHTTP:
		return narration.NewHTTPSynthesizer(cfg.TTS.Endpoint, cfg.TTS.APIKey, cfg.TTS.Timeout), nil
	case config.TTSBackendCommand:
		return &narration.CommandSynthesizer{Argv: cfg.TTS.Command, Grace: cfg.FFmpeg.KillGrace}, nil
	case config.TTSBackendOffload:
		return narration.NewDispatcher(cfg.TTS.OffloadDir, cfg.TTS.OffloadTimeout, cfg.TTS.PollInterval), nil
	case config.TTSBackendReuse:
		return narration.Reuse{}, nil
	default:
		return nil, fmt.Errorf("unknown tts backend %q", cfg.TTS.Backend)
	}
}

// wiring builds the spec-dependent stages and remembers what must be closed.
type wiring struct {
	cfg    config.AppConfig
	zoom   camera.Mode
	ffmpeg *media.FFmpeg

	mu       sync.Mutex
	browsers []*browser.Browser
}

func newWiring(cfg config.AppConfig, zoom camera.Mode) *wiring {
	ffmpeg := media.NewFFmpeg(cfg.FFmpeg.Bin, cfg.FFmpeg.KillGrace)
	ffmpeg.StallTimeout = cfg.FFmpeg.StallTimeout
	return &wiring{cfg: cfg, zoom: zoom, ffmpeg: ffmpeg}
}

func (w *wiring) capturer(spec *tour.Spec) (pipeline.Capturer, error) {
	format := media.FormatFromSpec(spec)
	br := browser.New(browser.Config{
		ChromePath:    w.cfg.Browser.ChromePath,
		Headless:      w.cfg.Browser.Headless,
		LaunchTimeout: w.cfg.Browser.LaunchTimeout,
		Recorder:      w.ffmpeg,
		Format:        format,
	})
	w.mu.Lock()
	w.browsers = append(w.browsers, br)
	w.mu.Unlock()

	clock := executor.RealClock{}
	return &capture.Manager{
		Browser:  br,
		Executor: executor.New(spec.Settings, clock),
		Clock:    clock,
		Slides:   &capture.FFmpegSlides{Runner: w.ffmpeg, Format: format},
		FPS:      format.FPS,
	}, nil
}

func (w *wiring) assembler(spec *tour.Spec) (pipeline.Assembler, error) {
	return &assembly.Engine{
		Runner: w.ffmpeg,
		Prober: media.NewFFprobe(w.cfg.FFmpeg.FFprobeBin),
		Format: media.FormatFromSpec(spec),
		Zoom:   w.zoom,
	}, nil
}

func (w *wiring) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, b := range w.browsers {
		b.Close()
	}
	w.browsers = nil
}

// openLedger returns nil when the ledger is disabled.
func openLedger(ctx context.Context, cfg config.AppConfig) (*ledger.Ledger, error) {
	if cfg.Ledger.Path == "" {
		return nil, nil
	}
	return ledger.Open(ctx, cfg.Ledger.Path)
}
