// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/ManuGH/tourcast/internal/log"
	"github.com/ManuGH/tourcast/internal/procgroup"
)

// stderrTailLines bounds the encoder output carried in errors.
const stderrTailLines = 8

// Runner executes one encoder invocation to completion.
type Runner interface {
	Run(ctx context.Context, desc string, args []string) error
}

// ProcessError carries the tail of encoder stderr.
type ProcessError struct {
	Desc string
	Err  error
	Tail string
}

func (e *ProcessError) Error() string {
	if e.Tail == "" {
		return fmt.Sprintf("ffmpeg %s: %v", e.Desc, e.Err)
	}
	return fmt.Sprintf("ffmpeg %s: %v: %s", e.Desc, e.Err, e.Tail)
}

func (e *ProcessError) Unwrap() error { return e.Err }

// FFmpeg runs the ffmpeg binary in its own process group.
type FFmpeg struct {
	Bin       string
	KillGrace time.Duration
	// StallTimeout cancels Run when ffmpeg makes no progress for this long.
	// Zero disables the check.
	StallTimeout time.Duration
}

const progressTick = time.Second

func NewFFmpeg(bin string, killGrace time.Duration) *FFmpeg {
	if bin == "" {
		bin = "ffmpeg"
	}
	if killGrace <= 0 {
		killGrace = procgroup.DefaultGrace
	}
	return &FFmpeg{Bin: bin, KillGrace: killGrace}
}

// Run blocks until ffmpeg exits. On cancellation the process group is
// terminated and reaped before Run returns.
func (f *FFmpeg) Run(ctx context.Context, desc string, args []string) error {
	logger := log.WithComponentFromContext(ctx, "ffmpeg")
	ring := NewLineRing(64)

	runCtx := ctx
	var stdout io.Writer = io.Discard
	if f.StallTimeout > 0 {
		pw := newProgressWatch(f.StallTimeout, time.Now)
		args = append(append([]string{}, progressArgs...), args...)
		stdout = pw
		var cancel context.CancelCauseFunc
		runCtx, cancel = context.WithCancelCause(ctx)
		defer cancel(nil)
		go pw.watch(runCtx, progressTick, cancel)
	}

	// #nosec G204 - binary comes from operator config; args are built by this package
	cmd := exec.Command(f.Bin, args...)
	cmd.Stderr = ring
	cmd.Stdout = stdout

	start := time.Now()
	logger.Debug().Str("desc", desc).Strs("args", args).Msg("ffmpeg start")
	err := procgroup.Run(runCtx, cmd, f.KillGrace)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return fmt.Errorf("ffmpeg %s: %w", desc, err)
		}
		if errors.Is(context.Cause(runCtx), ErrStalled) {
			logger.Warn().Str("desc", desc).Dur("stall_timeout", f.StallTimeout).Msg("ffmpeg stalled, terminated")
			return &ProcessError{Desc: desc, Err: ErrStalled, Tail: ring.Tail(stderrTailLines)}
		}
		logger.Warn().Str("desc", desc).Err(err).Strs("stderr", ring.LastN(stderrTailLines)).Msg("ffmpeg failed")
		return &ProcessError{Desc: desc, Err: err, Tail: ring.Tail(stderrTailLines)}
	}
	logger.Debug().Str("desc", desc).Dur("elapsed", time.Since(start)).Msg("ffmpeg done")
	return nil
}

// Process is a long-running ffmpeg fed through stdin (the screencast recorder).
type Process struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	ring  *LineRing
	grace time.Duration
	desc  string

	done    chan struct{}
	waitErr error

	closeOnce sync.Once
}

// StartPiped launches ffmpeg with a stdin pipe. The caller owns the process
// and must call Finish or Kill.
func (f *FFmpeg) StartPiped(desc string, args []string) (*Process, error) {
	// #nosec G204 - binary comes from operator config; args are built by this package
	cmd := exec.Command(f.Bin, args...)
	ring := NewLineRing(64)
	cmd.Stderr = ring
	cmd.Stdout = io.Discard
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg %s: stdin pipe: %w", desc, err)
	}
	procgroup.Set(cmd)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg %s: start: %w", desc, err)
	}

	p := &Process{cmd: cmd, stdin: stdin, ring: ring, grace: f.KillGrace, desc: desc, done: make(chan struct{})}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

// Stdin is the frame sink.
func (p *Process) Stdin() io.Writer { return p.stdin }

// Done is closed when the process has exited.
func (p *Process) Done() <-chan struct{} { return p.done }

// Err is the exit error; only valid after Done.
func (p *Process) Err() error {
	<-p.done
	if p.waitErr == nil {
		return nil
	}
	return &ProcessError{Desc: p.desc, Err: p.waitErr, Tail: p.ring.Tail(stderrTailLines)}
}

// Finish closes stdin so the encoder flushes, then waits for exit. If ctx
// expires first the group is terminated.
func (p *Process) Finish(ctx context.Context) error {
	p.closeOnce.Do(func() { _ = p.stdin.Close() })
	select {
	case <-p.done:
		return p.Err()
	case <-ctx.Done():
		p.Kill()
		return fmt.Errorf("ffmpeg %s: flush: %w", p.desc, ctx.Err())
	}
}

// Kill terminates the process group and waits for it to be reaped.
func (p *Process) Kill() {
	p.closeOnce.Do(func() { _ = p.stdin.Close() })
	select {
	case <-p.done:
		return
	default:
	}
	waitCh := make(chan error, 1)
	go func() {
		<-p.done
		waitCh <- p.waitErr
	}()
	_ = procgroup.Terminate(p.cmd, waitCh, p.grace)
}
