// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/ManuGH/tourcast/internal/log"
	"github.com/ManuGH/tourcast/internal/media"
	"github.com/ManuGH/tourcast/internal/procgroup"
)

const (
	defaultSetupTimeout = 5 * time.Minute
	setupStderrLines    = 20
)

// Shell runs one pre_setup command.
type Shell interface {
	Run(ctx context.Context, command string) error
}

// SetupError identifies the failing pre_setup entry.
type SetupError struct {
	Index   int
	Command string
	Stderr  string
	Err     error
}

func (e *SetupError) Error() string {
	msg := fmt.Sprintf("pre_setup[%d] %q: %v", e.Index, e.Command, e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *SetupError) Unwrap() error { return e.Err }

// ShellRunner executes commands with `sh -c` in their own process group so a
// cancelled run leaves nothing behind.
type ShellRunner struct {
	Shell   string
	Dir     string
	Timeout time.Duration
	Grace   time.Duration
}

func (s ShellRunner) Run(ctx context.Context, command string) error {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultSetupTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	shell := s.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	tail := media.NewLineRing(setupStderrLines)
	cmd := exec.Command(shell, "-c", command) //nolint:gosec // pre_setup is operator-authored
	cmd.Dir = s.Dir
	cmd.Stderr = tail
	if err := procgroup.Run(ctx, cmd, s.Grace); err != nil {
		return &commandError{err: err, stderr: tail.Tail(setupStderrLines)}
	}
	return nil
}

type commandError struct {
	err    error
	stderr string
}

func (e *commandError) Error() string { return e.err.Error() }
func (e *commandError) Unwrap() error { return e.err }

// preSetup runs every command in order and stops at the first failure.
func preSetup(ctx context.Context, sh Shell, commands []string) error {
	logger := log.WithComponentFromContext(ctx, "setup")
	for i, c := range commands {
		start := time.Now()
		if err := sh.Run(ctx, c); err != nil {
			se := &SetupError{Index: i, Command: c, Err: err}
			var ce *commandError
			if errors.As(err, &ce) {
				se.Err, se.Stderr = ce.err, ce.stderr
			}
			return se
		}
		logger.Debug().Int(log.FieldIndex, i).Dur("elapsed", time.Since(start)).Msg("pre_setup command done")
	}
	return nil
}
