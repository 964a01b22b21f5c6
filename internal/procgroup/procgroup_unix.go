// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build unix

package procgroup

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func set(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

func kill(cmd *exec.Cmd, sig Signal) error {
	s := unix.SIGTERM
	if sig == SignalKill {
		s = unix.SIGKILL
	}

	// Setpgid makes the child a group leader, so PGID == PID. The group id
	// stays reserved while any member is alive.
	pgid := cmd.Process.Pid
	if err := unix.Kill(-pgid, s); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return ErrProcessNotFound
		}
		return fmt.Errorf("%w: %s to group %d: %v", ErrKillFailed, sig, pgid, err)
	}
	return nil
}
