// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package procgroup

import (
	"os/exec"
	"time"

	"github.com/ManuGH/tourcast/internal/log"
	"github.com/ManuGH/tourcast/internal/metrics"
)

// Terminate stops cmd's process group: SIGTERM, then SIGKILL if the group is
// still alive after grace. waitCh must deliver cmd.Wait's result; Terminate
// always drains it, so the process is reaped when it returns. Nil commands
// are a no-op.
func Terminate(cmd *exec.Cmd, waitCh <-chan error, grace time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	logger := log.WithComponent("procgroup").With().Int("pid", cmd.Process.Pid).Logger()

	signal(terminateSignal, cmd, "SIGTERM")
	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case err := <-waitCh:
		return err
	case <-timer.C:
		logger.Warn().Dur("grace", grace).Msg("process group ignored SIGTERM, killing")
		signal(killSignal, cmd, "SIGKILL")
		return <-waitCh
	}
}

func signal(send func(*exec.Cmd) error, cmd *exec.Cmd, name string) {
	result := "sent"
	if err := send(cmd); err != nil {
		result = "error"
	}
	metrics.IncProcTerminate(name, result)
}
