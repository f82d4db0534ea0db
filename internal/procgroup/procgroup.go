// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procgroup starts external processes in their own process group and
// guarantees the whole tree is reaped on cancellation.
package procgroup

import (
	"context"
	"os/exec"
	"time"
)

// DefaultGrace is the SIGTERM grace period used by Run.
const DefaultGrace = 3 * time.Second

// Set configures cmd to start in a new process group. Terminate relies on it
// to reach grandchildren such as encoder helpers spawned by a shell.
func Set(cmd *exec.Cmd) {
	set(cmd)
}

// Run starts cmd in its own process group and waits for it. If ctx is cancelled
// first, the group is terminated (SIGTERM, then SIGKILL after grace) and the
// context error is returned once the process has been reaped.
func Run(ctx context.Context, cmd *exec.Cmd, grace time.Duration) error {
	if grace <= 0 {
		grace = DefaultGrace
	}
	Set(cmd)
	if err := cmd.Start(); err != nil {
		return err
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	select {
	case err := <-waitCh:
		return err
	case <-ctx.Done():
		_ = Terminate(cmd, waitCh, grace)
		return ctx.Err()
	}
}
