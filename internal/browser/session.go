// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/ManuGH/tourcast/internal/capture"
	"github.com/ManuGH/tourcast/internal/executor"
)

const pollInterval = 100 * time.Millisecond

// Session is one browser with one tab.
type Session struct {
	ctx     context.Context
	cancel  context.CancelFunc
	browser *Browser
	fps     int
}

var _ capture.Session = (*Session)(nil)

// run executes actions on the tab, bounded by the caller's ctx as well as the
// tab's own lifetime.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	cctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(cctx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

func (s *Session) Location(ctx context.Context) (string, error) {
	var loc string
	err := s.run(ctx, chromedp.Location(&loc))
	return loc, err
}

func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	err := s.run(ctx, chromedp.Title(&title))
	return title, err
}

func (s *Session) Type(ctx context.Context, text string, delay time.Duration) error {
	for _, r := range text {
		if err := s.run(ctx, chromedp.KeyEvent(string(r))); err != nil {
			return err
		}
		if delay <= 0 {
			continue
		}
		if err := (executor.RealClock{}).Sleep(ctx, delay); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) Press(ctx context.Context, key string) error {
	c, err := parseChord(key)
	if err != nil {
		return err
	}
	var opts []chromedp.KeyOption
	if len(c.modifiers) > 0 {
		opts = append(opts, chromedp.KeyModifiers(c.modifiers...))
	}
	return s.run(ctx, chromedp.KeyEvent(c.key, opts...))
}

func (s *Session) Click(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

func (s *Session) Visible(ctx context.Context, selector string) (bool, error) {
	var ok bool
	err := s.run(ctx, chromedp.Evaluate(visibleExpr(selector), &ok))
	return ok, err
}

func (s *Session) WaitFor(ctx context.Context, cond executor.Condition) error {
	var expr string
	switch cond.Kind {
	case executor.CondLoad:
		expr = loadExpr(cond.State)
	case executor.CondVisible:
		expr = visibleExpr(cond.Selector)
	case executor.CondHidden:
		expr = hiddenExpr(cond.Selector)
	default:
		return fmt.Errorf("unsupported wait condition %v", cond.Kind)
	}
	var ok bool
	if err := s.run(ctx, chromedp.Poll(expr, &ok, chromedp.WithPollingInterval(pollInterval))); err != nil {
		return err
	}
	if cond.Kind == executor.CondLoad && cond.State == "networkidle" {
		// No network idle signal over plain CDP; settle briefly instead.
		return executor.RealClock{}.Sleep(ctx, 500*time.Millisecond)
	}
	return nil
}

func (s *Session) Focus(ctx context.Context, region executor.Region) error {
	script, err := focusScript(region)
	if err != nil {
		return err
	}
	var ok bool
	if err := s.run(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no focusable %s found", region)
	}
	return nil
}

func (s *Session) Hide(ctx context.Context, region executor.Region) error {
	script, err := hideScript(region)
	if err != nil {
		return err
	}
	var found bool
	return s.run(ctx, chromedp.Evaluate(script, &found))
}

func (s *Session) Scroll(ctx context.Context, req executor.ScrollRequest) error {
	// The animation runs in the page; the executor's clock covers its duration.
	return s.run(ctx, chromedp.Evaluate("void "+scrollScript(req), nil))
}

func (s *Session) Record(ctx context.Context, path string) (capture.Recording, error) {
	if s.browser.cfg.Recorder == nil {
		return nil, errors.New("no recorder configured")
	}
	r, err := startRecording(ctx, s, path)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Session) Close() error {
	s.cancel()
	return nil
}
