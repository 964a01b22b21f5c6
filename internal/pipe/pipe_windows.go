// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build windows

package pipe

import (
	"errors"
	"io"
	"net"
	"sync"

	"github.com/Microsoft/go-winio"
	"golang.org/x/sys/windows"
)

const pipePrefix = `\\.\pipe\`

func createIPC(_ string, name string) (*Pipe, error) {
	base := "-nt-shaka-" + name
	// The writer process connects to W, the reader process to R.
	writePath := pipePrefix + "W" + base
	readPath := pipePrefix + "R" + base

	cfg := &winio.PipeConfig{InputBufferSize: relayBufSize, OutputBufferSize: relayBufSize}
	inbound, err := winio.ListenPipe(writePath, cfg)
	if err != nil {
		return nil, err
	}
	outbound, err := winio.ListenPipe(readPath, cfg)
	if err != nil {
		_ = inbound.Close()
		return nil, err
	}

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	track := func(c net.Conn) {
		mu.Lock()
		conns = append(conns, c)
		mu.Unlock()
	}
	connect := func() (io.ReadCloser, io.WriteCloser, error) {
		src, err := inbound.Accept()
		if err != nil {
			return nil, nil, err
		}
		track(src)
		dst, err := outbound.Accept()
		if err != nil {
			_ = src.Close()
			return nil, nil, err
		}
		track(dst)
		return src, dst, nil
	}
	shutdown := func() {
		_ = inbound.Close()
		_ = outbound.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	}

	p := &Pipe{name: name, readEnd: readPath, writeEnd: writePath}
	p.relay = startRelay(name, connect, shutdown)
	return p, nil
}

func isPlatformClose(err error) bool {
	return errors.Is(err, windows.ERROR_BROKEN_PIPE) ||
		errors.Is(err, windows.ERROR_NO_DATA) ||
		errors.Is(err, winio.ErrPipeListenerClosed) ||
		errors.Is(err, winio.ErrFileClosed)
}
