// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/tourcast/internal/executor"
	"github.com/ManuGH/tourcast/internal/log"
	"github.com/ManuGH/tourcast/internal/telemetry"
	"github.com/ManuGH/tourcast/internal/timing"
	"github.com/ManuGH/tourcast/internal/tour"
)

// ClipKind tells assembly how a raw clip was produced.
type ClipKind string

const (
	ClipStep       ClipKind = "step"
	ClipSlides     ClipKind = "slides"
	ClipContinuous ClipKind = "continuous"
)

// Placement marks where a step sits inside a clip's timeline.
type Placement struct {
	StepID string
	Start  time.Duration
	End    time.Duration
}

// Clip is one raw recording on disk.
type Clip struct {
	ID         string
	Kind       ClipKind
	Path       string
	Placements []Placement
}

// Result is the ordered output of a capture phase.
type Result struct {
	Mode     string
	Clips    []Clip
	Attempts map[string]int
}

// Plan is everything Capture needs for one run.
type Plan struct {
	Spec     *tour.Spec
	Steps    []tour.Step
	Timeline timing.Timeline
	ClipDir  string
	Observer executor.Observer
}

// holdTick bounds how finely hold polls a recording that lags the clock.
const holdTick = 20 * time.Millisecond

// Manager drives capture sessions. Slides may be nil when no segment uses them.
type Manager struct {
	Browser  Browser
	Executor *executor.Executor
	Clock    executor.Clock
	Slides   SlideRenderer
	FPS      int
}

// Capture records every step. Mode is fixed for the whole run.
func (m *Manager) Capture(ctx context.Context, plan Plan) (Result, error) {
	if m.Clock == nil {
		m.Clock = executor.RealClock{}
	}
	if err := os.MkdirAll(plan.ClipDir, 0o750); err != nil {
		return Result{}, fmt.Errorf("create clip dir: %w", err)
	}
	if plan.Spec.Settings.Mode == tour.ModeContinuous {
		return m.captureContinuous(ctx, plan)
	}
	return m.captureIndependent(ctx, plan)
}

func (m *Manager) policy(plan Plan) executor.Policy {
	return executor.Policy{
		MaxRetries: plan.Spec.Settings.MaxRetries(),
		Observer:   plan.Observer,
		Clock:      m.Clock,
	}
}

func (m *Manager) sessionOptions(plan Plan) SessionOptions {
	return SessionOptions{Viewport: plan.Spec.Settings.Viewport, FPS: m.FPS}
}

func (m *Manager) captureIndependent(ctx context.Context, plan Plan) (Result, error) {
	res := Result{Mode: tour.ModeIndependent, Attempts: make(map[string]int, len(plan.Steps))}

	for _, st := range plan.Steps {
		entry, ok := plan.Timeline.Entry(st.ID)
		if !ok {
			return res, fmt.Errorf("step %q missing from timeline", st.ID)
		}
		final := filepath.Join(plan.ClipDir, "step-"+st.ID+".mkv")

		if st.IsSlides() {
			if m.Slides == nil {
				return res, fmt.Errorf("step %q: slide segment without a slide renderer", st.ID)
			}
			err := m.Slides.Render(ctx, SlideJob{Step: st, Source: plan.Spec.Slides, Duration: entry.Duration, Output: final})
			if err != nil {
				return res, err
			}
			res.Attempts[st.ID] = 1
			res.Clips = append(res.Clips, Clip{
				ID: st.ID, Kind: ClipSlides, Path: final,
				Placements: []Placement{{StepID: st.ID, End: entry.Duration}},
			})
			continue
		}

		var end time.Duration
		err := executor.Retry(ctx, m.policy(plan), st.ID, func(ctx context.Context, n int) error {
			res.Attempts[st.ID] = n
			path := filepath.Join(plan.ClipDir, fmt.Sprintf("step-%s.attempt-%d.mkv", st.ID, n))
			length, err := m.attemptIndependent(ctx, plan, st, entry, n, path)
			if err != nil {
				if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
					log.FromContext(ctx).Warn().Err(rmErr).Str(log.FieldPath, path).Msg("remove failed attempt clip")
				}
				return err
			}
			end = length
			return os.Rename(path, final)
		})
		if err != nil {
			return res, err
		}
		res.Clips = append(res.Clips, Clip{
			ID: st.ID, Kind: ClipStep, Path: final,
			Placements: []Placement{{StepID: st.ID, End: end}},
		})
	}
	return res, nil
}

// attemptIndependent runs one attempt in a fresh session and returns the
// recorded length.
func (m *Manager) attemptIndependent(ctx context.Context, plan Plan, st tour.Step, entry timing.Entry, n int, path string) (_ time.Duration, err error) {
	ctx = log.ContextWithStepID(ctx, st.ID)
	ctx, span := telemetry.Tracer("tourcast/capture").Start(ctx, "capture.step",
		trace.WithAttributes(telemetry.StepAttributes(st.ID, n)...))
	defer func() { telemetry.EndSpan(span, err, executor.Outcome(err)) }()

	sess, err := m.Browser.NewSession(ctx, m.sessionOptions(plan))
	if err != nil {
		return 0, &SessionError{StepID: st.ID, Err: err}
	}
	defer closeSession(ctx, sess)

	rec, err := sess.Record(ctx, path)
	if err != nil {
		return 0, &CaptureSinkError{StepID: st.ID, Err: err}
	}
	stopped := false
	defer func() {
		if !stopped {
			_ = rec.Stop(context.WithoutCancel(ctx))
		}
	}()

	if err := m.enter(ctx, sess, st); err != nil {
		return 0, err
	}
	if err := m.Executor.Attempt(ctx, sess, st); err != nil {
		if sinkErr := rec.Err(); sinkErr != nil {
			return 0, &CaptureSinkError{StepID: st.ID, Err: sinkErr}
		}
		return 0, err
	}
	if err := m.hold(ctx, rec, st.ID, entry.Duration); err != nil {
		return 0, err
	}
	length := rec.Offset()
	stopped = true
	if err := rec.Stop(ctx); err != nil {
		return 0, &CaptureSinkError{StepID: st.ID, Err: err}
	}
	return length, nil
}

// enter loads the step's start URL before its actions run.
func (m *Manager) enter(ctx context.Context, t executor.Target, st tour.Step) error {
	if st.URL == "" {
		return nil
	}
	actions := []tour.Action{
		{Kind: tour.ActionNavigate, URL: st.URL},
		{Kind: tour.ActionWaitForLoad},
	}
	return m.Executor.Attempt(ctx, t, tour.Step{ID: st.ID, Actions: actions})
}

func (m *Manager) captureContinuous(ctx context.Context, plan Plan) (res Result, err error) {
	res = Result{Mode: tour.ModeContinuous, Attempts: make(map[string]int, len(plan.Steps))}
	if len(plan.Steps) == 0 {
		return res, nil
	}
	logger := log.WithComponentFromContext(ctx, "capture")

	sess, err := m.Browser.NewSession(ctx, m.sessionOptions(plan))
	if err != nil {
		return res, &SessionError{StepID: plan.Steps[0].ID, Err: err}
	}
	defer closeSession(ctx, sess)

	path := filepath.Join(plan.ClipDir, "continuous.mkv")
	rec, err := sess.Record(ctx, path)
	if err != nil {
		return res, &CaptureSinkError{StepID: plan.Steps[0].ID, Err: err}
	}
	stopped := false
	defer func() {
		if !stopped {
			_ = rec.Stop(context.WithoutCancel(ctx))
		}
	}()

	// Every step shares the same URL; load it once.
	if err := m.enter(ctx, sess, plan.Steps[0]); err != nil {
		return res, err
	}

	clip := Clip{ID: "continuous", Kind: ClipContinuous, Path: path}
	for _, st := range plan.Steps {
		entry, ok := plan.Timeline.Entry(st.ID)
		if !ok {
			return res, fmt.Errorf("step %q missing from timeline", st.ID)
		}
		// Narration is placed from the start of the attempt that succeeded.
		var start time.Duration
		err := executor.Retry(ctx, m.policy(plan), st.ID, func(ctx context.Context, n int) error {
			res.Attempts[st.ID] = n
			start = rec.Offset()
			if err := m.Executor.Attempt(log.ContextWithStepID(ctx, st.ID), sess, st); err != nil {
				if sinkErr := rec.Err(); sinkErr != nil {
					return &CaptureSinkError{StepID: st.ID, Err: sinkErr}
				}
				return err
			}
			return nil
		})
		if err != nil {
			return res, err
		}
		if err := m.hold(ctx, rec, st.ID, start+entry.Duration); err != nil {
			return res, err
		}
		end := rec.Offset()
		clip.Placements = append(clip.Placements, Placement{StepID: st.ID, Start: start, End: end})
		logger.Debug().
			Str(log.FieldStepID, st.ID).
			Float64("start_s", start.Seconds()).
			Float64("end_s", end.Seconds()).
			Msg("step placed")
	}

	stopped = true
	if err := rec.Stop(ctx); err != nil {
		return res, &CaptureSinkError{StepID: plan.Steps[len(plan.Steps)-1].ID, Err: err}
	}
	res.Clips = []Clip{clip}
	return res, nil
}

// hold keeps recording until the recording offset reaches until.
func (m *Manager) hold(ctx context.Context, rec Recording, stepID string, until time.Duration) error {
	for {
		if err := rec.Err(); err != nil {
			return &CaptureSinkError{StepID: stepID, Err: err}
		}
		remaining := until - rec.Offset()
		if remaining <= 0 {
			return nil
		}
		if err := m.Clock.Sleep(ctx, max(remaining, holdTick)); err != nil {
			return err
		}
	}
}

func closeSession(ctx context.Context, s Session) {
	if err := s.Close(); err != nil {
		log.FromContext(ctx).Warn().Err(err).Msg("close browser session")
	}
}
