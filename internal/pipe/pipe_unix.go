// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build unix

package pipe

import (
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Owner-only permissions
const fifoMode = 0o600

func createIPC(dir, name string) (*Pipe, error) {
	path := filepath.Join(dir, name)
	if err := unix.Mkfifo(path, fifoMode); err != nil {
		return nil, err
	}
	return &Pipe{name: name, readEnd: path, writeEnd: path}, nil
}

func isPlatformClose(error) bool { return false }
