// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package proxy

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shaka-project/shaka-streamer-sub000/internal/cloud"
)

var errStorage = errors.New("storage unavailable")

// memStore is a shared in-memory bucket behind every fake uploader.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	resets  int
	failOn  string

	created   atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
	delay     time.Duration
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (m *memStore) factory() cloud.Factory {
	return func(context.Context) (cloud.Uploader, error) {
		m.created.Add(1)
		return &memUploader{store: m}, nil
	}
}

func (m *memStore) get(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[path]
	return b, ok
}

func (m *memStore) enter() func() {
	n := m.active.Add(1)
	for {
		cur := m.maxActive.Load()
		if n <= cur || m.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	return func() { m.active.Add(-1) }
}

type memUploader struct {
	store   *memStore
	pending string
	buf     *bytes.Buffer
}

func (u *memUploader) WriteNonChunked(_ context.Context, path string, data []byte) error {
	defer u.store.enter()()
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	if path == u.store.failOn {
		return errStorage
	}
	u.store.objects[path] = append([]byte(nil), data...)
	return nil
}

func (u *memUploader) StartChunked(_ context.Context, path string) error {
	u.pending = path
	u.buf = &bytes.Buffer{}
	return nil
}

func (u *memUploader) WriteChunk(_ context.Context, data []byte) error {
	if u.buf == nil {
		return cloud.ErrNoChunkedTransfer
	}
	u.buf.Write(data)
	return nil
}

func (u *memUploader) EndChunked(context.Context) error {
	if u.buf == nil {
		return cloud.ErrNoChunkedTransfer
	}
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	u.store.objects[u.pending] = u.buf.Bytes()
	u.pending, u.buf = "", nil
	return nil
}

func (u *memUploader) Delete(_ context.Context, path string) error {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	if path == u.store.failOn {
		return errStorage
	}
	delete(u.store.objects, path)
	return nil
}

func (u *memUploader) Reset() {
	u.store.mu.Lock()
	u.store.resets++
	u.store.mu.Unlock()
	u.pending, u.buf = "", nil
}
