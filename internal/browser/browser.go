// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package browser implements the capture ports on top of headless Chrome via
// the DevTools protocol.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/ManuGH/tourcast/internal/capture"
	"github.com/ManuGH/tourcast/internal/log"
	"github.com/ManuGH/tourcast/internal/media"
)

// Config selects the Chrome binary and the recorder.
type Config struct {
	ChromePath    string
	Headless      bool
	LaunchTimeout time.Duration
	// Recorder encodes screencast frames. Format fixes resolution and fps.
	Recorder *media.FFmpeg
	Format   media.CanonicalFormat
}

// Browser launches one Chrome process per session so sessions never share
// cookies, storage or history.
type Browser struct {
	cfg         Config
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

var _ capture.Browser = (*Browser)(nil)

// New prepares the allocator. Chrome itself starts on the first NewSession.
func New(cfg Config) *Browser {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("mute-audio", true),
		chromedp.WindowSize(cfg.Format.Width, cfg.Format.Height),
	)
	if cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromePath))
	}
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &Browser{cfg: cfg, allocCtx: allocCtx, allocCancel: cancel}
}

// NewSession starts a fresh browser with the requested viewport.
func (b *Browser) NewSession(ctx context.Context, opts capture.SessionOptions) (capture.Session, error) {
	logger := log.WithComponentFromContext(ctx, "browser")

	tabCtx, cancel := chromedp.NewContext(b.allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug().Msgf(format, args...)
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			logger.Warn().Msgf(format, args...)
		}),
	)

	s := &Session{ctx: tabCtx, cancel: cancel, browser: b, fps: opts.FPS}
	if s.fps <= 0 {
		s.fps = b.cfg.Format.FPS
	}

	launch := b.cfg.LaunchTimeout
	if launch <= 0 {
		launch = 30 * time.Second
	}
	lctx, lcancel := context.WithTimeout(ctx, launch)
	defer lcancel()
	err := s.run(lctx, chromedp.EmulateViewport(int64(opts.Viewport.Width), int64(opts.Viewport.Height)))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("launch chrome: %w", err)
	}
	return s, nil
}

// Close stops the allocator and any browsers still running.
func (b *Browser) Close() {
	b.allocCancel()
}
