// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package pipe creates the named channels that connect node processes.
//
// On POSIX systems a pipe is a FIFO in the pipeline's temp directory. On
// Windows it is a pair of named pipes bridged by an in-process relay. In both
// cases the two ends are plain paths handed to the producer and consumer.
package pipe

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrPlatformUnsupported is returned when the OS offers no named pipes.
	ErrPlatformUnsupported = errors.New("pipe: platform not supported")
	// ErrNotCreated is returned when asking for an end the pipe does not have.
	ErrNotCreated = errors.New("pipe: end not created")
	// ErrInvalidMode is returned by CreateFilePipe for an unknown mode.
	ErrInvalidMode = errors.New("pipe: invalid mode")
)

// Mode selects which end of a file-backed pipe the path becomes.
type Mode string

const (
	// ModeWrite makes the path the write end: a process writes the file.
	ModeWrite Mode = "w"
	// ModeRead makes the path the read end: a process reads the file.
	ModeRead Mode = "r"
)

// Pipe is a single-writer, single-reader channel identified by paths.
type Pipe struct {
	name     string
	readEnd  string
	writeEnd string
	relay    *relay
}

// CreateIPCPipe creates a new uniquely named pipe. dir is where FIFOs are
// placed; suffix is appended to the generated name (e.g. ".vtt").
func CreateIPCPipe(dir, suffix string) (*Pipe, error) {
	name := uuid.NewString() + suffix
	p, err := createIPC(dir, name)
	if err != nil {
		return nil, fmt.Errorf("create pipe %s: %w", name, err)
	}
	return p, nil
}

// CreateFilePipe returns a Pipe whose read or write end is a regular file path.
func CreateFilePipe(path string, mode Mode) (*Pipe, error) {
	p := &Pipe{name: path}
	switch mode {
	case ModeWrite:
		p.writeEnd = path
	case ModeRead:
		p.readEnd = path
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	return p, nil
}

// Name returns the unique name the pipe was created with.
func (p *Pipe) Name() string { return p.name }

// ReadEnd returns the path a reader process opens.
func (p *Pipe) ReadEnd() (string, error) {
	if p.readEnd == "" {
		return "", ErrNotCreated
	}
	return p.readEnd, nil
}

// WriteEnd returns the path a writer process opens.
func (p *Pipe) WriteEnd() (string, error) {
	if p.writeEnd == "" {
		return "", ErrNotCreated
	}
	return p.writeEnd, nil
}

// Close stops the relay, if any. FIFO entries are removed together with the
// directory that holds them.
func (p *Pipe) Close() error {
	if p.relay == nil {
		return nil
	}
	return p.relay.stop()
}
