// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procgroup spawns node subprocesses in their own process group and
// tears the whole group down on shutdown.
package procgroup

import (
	"errors"
	"os/exec"
)

var (
	ErrProcessNotFound = errors.New("process not found")
	ErrKillFailed      = errors.New("kill operation failed")
)

// Signal is the platform-neutral set of signals Kill understands.
type Signal int

const (
	SignalTerm Signal = iota
	SignalKill
)

func (s Signal) String() string {
	switch s {
	case SignalTerm:
		return "SIGTERM"
	case SignalKill:
		return "SIGKILL"
	default:
		return "UNKNOWN"
	}
}

// Set configures the command to start in a new process group.
// Mandatory for Kill to reach grandchildren.
func Set(cmd *exec.Cmd) {
	set(cmd)
}

// Kill delivers sig to the process group of cmd.
// Returns nil for a nil command and ErrProcessNotFound if the group is gone.
func Kill(cmd *exec.Cmd, sig Signal) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return kill(cmd, sig)
}
