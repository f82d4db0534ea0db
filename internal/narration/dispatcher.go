// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package narration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/ManuGH/tourcast/internal/log"
)

// Offload protocol file names inside a job directory.
const (
	RequestFile = "request.json"
	DoneMarker  = "done.marker"
	ErrorMarker = "error.marker"
	AudioSubdir = "audio"
)

// ErrOffloadTimeout is returned when no marker appears before the deadline.
var ErrOffloadTimeout = errors.New("offload worker did not finish in time")

// OffloadError is the worker-reported failure from error.marker.
type OffloadError struct {
	JobID   string
	Message string
}

func (e *OffloadError) Error() string {
	return fmt.Sprintf("offload job %s failed: %s", e.JobID, e.Message)
}

// Dispatcher hands a whole run to a remote worker through a shared
// directory: request.json in, done.marker or error.marker out.
type Dispatcher struct {
	Dir          string
	Timeout      time.Duration
	PollInterval time.Duration
	// Cleanup removes the job directory after results are copied.
	Cleanup bool

	newJobID func() string
}

func NewDispatcher(dir string, timeout, poll time.Duration) *Dispatcher {
	return &Dispatcher{Dir: dir, Timeout: timeout, PollInterval: poll}
}

func (d *Dispatcher) Name() string { return "offload" }

type offloadStep struct {
	ID        string `json:"id"`
	Narration string `json:"narration"`
}

type offloadRequest struct {
	Voice    string        `json:"voice"`
	Speed    float64       `json:"speed"`
	Language string        `json:"language"`
	Steps    []offloadStep `json:"steps"`
}

type offloadDone struct {
	StepsGenerated int     `json:"steps_generated"`
	TotalDuration  float64 `json:"total_duration"`
}

// Synthesize dispatches a single-step job.
func (d *Dispatcher) Synthesize(ctx context.Context, req Request) (Asset, error) {
	assets, err := d.SynthesizeBatch(ctx, []Request{req})
	if err != nil {
		return Asset{}, err
	}
	return assets[0], nil
}

// SynthesizeBatch writes one job for all requests and waits for the worker.
// Voice, speed and language are taken from the first request.
func (d *Dispatcher) SynthesizeBatch(ctx context.Context, reqs []Request) ([]Asset, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	if _, err := os.Stat(d.Dir); err != nil {
		return nil, fmt.Errorf("offload directory unavailable: %w", err)
	}

	jobID := d.jobID()
	ctx = log.ContextWithJobID(ctx, jobID)
	logger := log.WithComponentFromContext(ctx, "offload")
	jobDir := filepath.Join(d.Dir, jobID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return nil, fmt.Errorf("create job dir: %w", err)
	}

	body := offloadRequest{Voice: reqs[0].Voice, Speed: reqs[0].Speed, Language: reqs[0].Language}
	for _, r := range reqs {
		body.Steps = append(body.Steps, offloadStep{ID: r.StepID, Narration: r.Text})
	}
	data, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := renameio.WriteFile(filepath.Join(jobDir, RequestFile), data, 0o644); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	logger.Info().Int("steps", len(reqs)).Str(log.FieldPath, jobDir).Msg("offload job dispatched")

	waitCtx := ctx
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}
	if err := d.wait(waitCtx, jobID, jobDir); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: job %s after %s", ErrOffloadTimeout, jobID, d.Timeout)
		}
		return nil, err
	}

	assets := make([]Asset, 0, len(reqs))
	for _, r := range reqs {
		remote := AudioPath(filepath.Join(jobDir, AudioSubdir), r.StepID)
		if err := copyAtomic(remote, r.Path); err != nil {
			return nil, &StepError{StepID: r.StepID, Err: err}
		}
		a, err := measure(r.StepID, r.Path)
		if err != nil {
			return nil, &StepError{StepID: r.StepID, Err: err}
		}
		assets = append(assets, a)
	}

	if d.Cleanup {
		if err := os.RemoveAll(jobDir); err != nil {
			logger.Warn().Err(err).Msg("offload job cleanup failed")
		}
	}
	return assets, nil
}

func (d *Dispatcher) jobID() string {
	if d.newJobID != nil {
		return d.newJobID()
	}
	return "job-" + uuid.NewString()
}

// wait returns when done.marker exists, or with an *OffloadError for
// error.marker. fsnotify wakes it early; the rate-limited poll covers shared
// filesystems that never deliver events.
func (d *Dispatcher) wait(ctx context.Context, jobID, jobDir string) error {
	logger := log.WithComponentFromContext(ctx, "offload")

	var events <-chan fsnotify.Event
	var watchErrs <-chan error
	if w, err := fsnotify.NewWatcher(); err == nil {
		defer func() { _ = w.Close() }()
		if err := w.Add(jobDir); err == nil {
			events, watchErrs = w.Events, w.Errors
		} else {
			logger.Debug().Err(err).Msg("watch unavailable, polling only")
		}
	}

	poll := d.PollInterval
	if poll <= 0 {
		poll = 5 * time.Second
	}
	limiter := rate.NewLimiter(rate.Every(poll), 1)
	start := time.Now()

	for {
		done, err := checkMarkers(jobID, jobDir)
		if err != nil || done {
			if done {
				logger.Info().Dur("elapsed", time.Since(start)).Msg("offload job completed")
			}
			return err
		}

		timer := time.NewTimer(limiter.Reserve().Delay())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case ev, ok := <-events:
			timer.Stop()
			if !ok {
				events = nil
				continue
			}
			if base := filepath.Base(ev.Name); base != DoneMarker && base != ErrorMarker {
				// Progress only; wait for the next tick.
				continue
			}
		case err, ok := <-watchErrs:
			timer.Stop()
			if !ok {
				watchErrs = nil
				continue
			}
			logger.Debug().Err(err).Msg("watch error")
		case <-timer.C:
		}
	}
}

func checkMarkers(jobID, jobDir string) (bool, error) {
	if data, err := os.ReadFile(filepath.Join(jobDir, ErrorMarker)); err == nil {
		var payload struct {
			Error string `json:"error"`
		}
		msg := "unknown error"
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			msg = payload.Error
		}
		return false, &OffloadError{JobID: jobID, Message: msg}
	}
	data, err := os.ReadFile(filepath.Join(jobDir, DoneMarker))
	if err != nil {
		return false, nil
	}
	var done offloadDone
	if json.Unmarshal(data, &done) == nil && done.StepsGenerated > 0 {
		log.L().Debug().
			Str(log.FieldJobID, jobID).
			Int("steps_generated", done.StepsGenerated).
			Float64("total_duration", done.TotalDuration).
			Msg("offload completion metadata")
	}
	return true, nil
}

func copyAtomic(src, dst string) error {
	// #nosec G304 -- job paths are derived from operator config
	in, err := os.Open(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrMissingAudio, src)
		}
		return err
	}
	defer func() { _ = in.Close() }()

	t, err := renameio.NewPendingFile(dst, renameio.WithPermissions(0o644))
	if err != nil {
		return err
	}
	defer func() { _ = t.Cleanup() }()
	if _, err := io.Copy(t, in); err != nil {
		return err
	}
	return t.CloseAtomicallyReplace()
}
