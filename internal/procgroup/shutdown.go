// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package procgroup

import (
	"errors"
	"os/exec"
	"time"

	"github.com/shaka-project/shaka-streamer-sub000/internal/log"
	"github.com/shaka-project/shaka-streamer-sub000/internal/metrics"
)

// Terminate stops the process group of cmd.
// It sends SIGTERM, waits up to grace for waitCh to deliver the exit result,
// then sends SIGKILL and always drains waitCh. The Wait error is returned.
// It is safe to call on nil commands (returns nil).
func Terminate(cmd *exec.Cmd, waitCh <-chan error, grace time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	signal(cmd, SignalTerm)

	select {
	case err := <-waitCh:
		if err == nil {
			metrics.IncProcWait("exit0")
		} else {
			metrics.IncProcWait("exit_nonzero")
		}
		return err
	case <-time.After(grace):
	}

	logger := log.WithComponent("procgroup")
	logger.Warn().Int(log.FieldPID, cmd.Process.Pid).Dur("grace", grace).
		Msg("SIGTERM grace period exceeded, sending SIGKILL to process group")
	signal(cmd, SignalKill)

	err := <-waitCh
	if err == nil {
		metrics.IncProcWait("forced_exit0")
	} else {
		metrics.IncProcWait("forced_error")
	}
	return err
}

func signal(cmd *exec.Cmd, sig Signal) {
	err := Kill(cmd, sig)
	switch {
	case err == nil:
		metrics.IncProcTerminate(sig.String(), "sent")
	case errors.Is(err, ErrProcessNotFound):
		metrics.IncProcTerminate(sig.String(), "esrch")
	default:
		metrics.IncProcTerminate(sig.String(), "error")
		logger := log.WithComponent("procgroup")
		logger.Debug().Err(err).Int(log.FieldPID, cmd.Process.Pid).Msg("signal delivery failed")
	}
}
