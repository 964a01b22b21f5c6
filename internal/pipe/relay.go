// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipe

import (
	"errors"
	"io"
	"net"
	"sync"
	"syscall"

	"github.com/shaka-project/shaka-streamer-sub000/internal/log"
)

const relayBufSize = 64 * 1024

// relay copies bytes from the writer-facing side to the reader-facing side
// for the lifetime of one pipe.
type relay struct {
	name     string
	shutdown func()
	done     chan struct{}

	once sync.Once
	err  error
}

// startRelay runs connect then copies until either side goes away.
// shutdown must unblock connect and any in-flight copy.
func startRelay(name string, connect func() (io.ReadCloser, io.WriteCloser, error), shutdown func()) *relay {
	r := &relay{name: name, shutdown: shutdown, done: make(chan struct{})}
	go r.run(connect)
	return r
}

func (r *relay) run(connect func() (io.ReadCloser, io.WriteCloser, error)) {
	defer close(r.done)
	defer r.once.Do(r.shutdown)
	logger := log.WithComponent("pipe")

	src, dst, err := connect()
	if err != nil {
		if !isNormalClose(err) {
			r.err = err
			logger.Error().Err(err).Str(log.FieldPipe, r.name).Msg("pipe relay connect failed")
		}
		return
	}
	defer func() { _ = src.Close() }()
	defer func() { _ = dst.Close() }()

	if err := copyRelay(dst, src); err != nil {
		r.err = err
		logger.Error().Err(err).Str(log.FieldPipe, r.name).Msg("pipe relay failed")
		return
	}
	logger.Debug().Str(log.FieldPipe, r.name).Msg("pipe relay finished")
}

func (r *relay) stop() error {
	r.once.Do(r.shutdown)
	<-r.done
	return r.err
}

// copyRelay moves data in fixed-size chunks. One side closing is a normal end.
func copyRelay(dst io.Writer, src io.Reader) error {
	buf := make([]byte, relayBufSize)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				if isNormalClose(werr) {
					return nil
				}
				return werr
			}
		}
		if rerr != nil {
			if isNormalClose(rerr) {
				return nil
			}
			return rerr
		}
	}
}

func isNormalClose(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.EPIPE):
		return true
	}
	return isPlatformClose(err)
}
