// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package browser

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/tourcast/internal/capture"
	"github.com/ManuGH/tourcast/internal/log"
	"github.com/ManuGH/tourcast/internal/media"
)

const screencastQuality = 85

var errRecorderExited = errors.New("recorder exited before stop")

// recording pumps the latest screencast frame into ffmpeg at a fixed rate.
// Chrome only emits frames when the page repaints, so a static page repeats
// its last frame. The offset is frames written divided by fps, which keeps
// it exact in the output timeline even when the encoder falls behind.
type recording struct {
	fps    int
	proc   *media.Process
	frames atomic.Int64

	mu     sync.Mutex
	latest []byte

	failure atomic.Pointer[error]

	listenCancel context.CancelFunc
	pumpCancel   context.CancelFunc
	group        *errgroup.Group
	session      *Session

	stopOnce sync.Once
	stopErr  error
}

var _ capture.Recording = (*recording)(nil)

func startRecording(ctx context.Context, s *Session, path string) (*recording, error) {
	cfg := s.browser.cfg
	proc, err := cfg.Recorder.StartPiped("recorder", media.RecorderArgs(cfg.Format, path))
	if err != nil {
		return nil, err
	}
	r := &recording{fps: s.fps, proc: proc, session: s}

	listenCtx, listenCancel := context.WithCancel(s.ctx)
	r.listenCancel = listenCancel
	chromedp.ListenTarget(listenCtx, func(ev any) {
		frame, ok := ev.(*page.EventScreencastFrame)
		if !ok {
			return
		}
		if data, err := base64.StdEncoding.DecodeString(frame.Data); err == nil {
			r.mu.Lock()
			r.latest = data
			r.mu.Unlock()
		}
		// Acks cannot be sent from inside the listener.
		go func(id int64) {
			_ = chromedp.Run(listenCtx, page.ScreencastFrameAck(id))
		}(frame.SessionID)
	})

	start := page.StartScreencast().
		WithFormat(page.ScreencastFormatJpeg).
		WithQuality(screencastQuality).
		WithMaxWidth(int64(cfg.Format.Width)).
		WithMaxHeight(int64(cfg.Format.Height)).
		WithEveryNthFrame(1)
	if err := s.run(ctx, start); err != nil {
		listenCancel()
		proc.Kill()
		return nil, fmt.Errorf("start screencast: %w", err)
	}

	pumpCtx, pumpCancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(pumpCtx)
	r.pumpCancel = pumpCancel
	r.group = g
	g.Go(func() error { return r.pump(gctx) })
	g.Go(func() error { return r.watch(gctx) })
	return r, nil
}

func (r *recording) pump(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(r.fps))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		r.mu.Lock()
		frame := r.latest
		r.mu.Unlock()
		if frame == nil {
			continue
		}
		if _, err := r.proc.Stdin().Write(frame); err != nil {
			return r.fail(fmt.Errorf("write frame: %w", err))
		}
		r.frames.Add(1)
	}
}

func (r *recording) watch(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case <-r.proc.Done():
		if err := r.proc.Err(); err != nil {
			return r.fail(err)
		}
		return r.fail(errRecorderExited)
	}
}

func (r *recording) fail(err error) error {
	r.failure.CompareAndSwap(nil, &err)
	return err
}

func (r *recording) Offset() time.Duration {
	return time.Duration(r.frames.Load()) * time.Second / time.Duration(r.fps)
}

func (r *recording) Err() error {
	if p := r.failure.Load(); p != nil {
		return *p
	}
	return nil
}

// Stop ends the screencast, drains the pump and lets ffmpeg finalize the file.
func (r *recording) Stop(ctx context.Context) error {
	r.stopOnce.Do(func() {
		if err := r.session.run(ctx, page.StopScreencast()); err != nil {
			log.FromContext(ctx).Debug().Err(err).Msg("stop screencast")
		}
		r.listenCancel()
		r.pumpCancel()
		groupErr := r.group.Wait()
		finishErr := r.proc.Finish(ctx)
		r.stopErr = errors.Join(groupErr, finishErr)
	})
	return r.stopErr
}
