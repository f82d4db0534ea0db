// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrStalled means ffmpeg stopped advancing its -progress output.
var ErrStalled = errors.New("encoder stalled")

// progressArgs makes ffmpeg report key=value progress blocks on stdout.
var progressArgs = []string{"-progress", "pipe:1", "-nostats"}

type progressState int

const (
	progressStarting progressState = iota
	progressRunning
	progressEnded
	progressStalled
)

// progressWatch consumes ffmpeg -progress output. Only growing out_time or
// total_size count as a heartbeat; repeated identical blocks do not.
type progressWatch struct {
	mu      sync.Mutex
	timeout time.Duration
	now     func() time.Time

	outTime   int64
	totalSize int64
	heartbeat time.Time
	state     progressState
	partial   []byte
}

func newProgressWatch(timeout time.Duration, now func() time.Time) *progressWatch {
	return &progressWatch{timeout: timeout, now: now, heartbeat: now()}
}

// Write splits stdout into lines. It never fails so ffmpeg is never blocked.
func (w *progressWatch) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	buf := append(w.partial, p...)
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		w.parseLine(string(buf[:i]))
		buf = buf[i+1:]
	}
	w.partial = append(w.partial[:0], buf...)
	return len(p), nil
}

func (w *progressWatch) parseLine(line string) {
	key, val, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok || strings.Contains(val, "=") {
		return
	}
	switch key {
	case "out_time_us", "out_time_ms": // both are microseconds
		if v, err := strconv.ParseInt(val, 10, 64); err == nil && v > w.outTime {
			w.outTime = v
			w.beat()
		}
	case "total_size":
		if v, err := strconv.ParseInt(val, 10, 64); err == nil && v > w.totalSize {
			w.totalSize = v
			w.beat()
		}
	case "progress":
		if val == "end" {
			w.state = progressEnded
		}
	}
}

func (w *progressWatch) beat() {
	w.heartbeat = w.now()
	if w.state == progressStarting {
		w.state = progressRunning
	}
}

// check reports ErrStalled once no heartbeat arrived within the timeout.
func (w *progressWatch) check() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.state {
	case progressEnded:
		return nil
	case progressStalled:
		return ErrStalled
	}
	if w.now().Sub(w.heartbeat) > w.timeout {
		w.state = progressStalled
		return ErrStalled
	}
	return nil
}

func (w *progressWatch) current() progressState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// watch cancels the encoder with ErrStalled. It returns when ctx is done.
func (w *progressWatch) watch(ctx context.Context, tick time.Duration, cancel context.CancelCauseFunc) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := w.check(); err != nil {
				cancel(err)
				return
			}
		}
	}
}
