// SPDX-License-Identifier: MIT

// Package ratelimit suppresses repeated writes of the same path.
package ratelimit

import (
	"sync"
	"time"
)

// DefaultWindow is how long a written path stays suppressed, at most.
const DefaultWindow = 2 * time.Second

// Window admits each key once per window. When more than the window length has
// elapsed since the last reset, the whole set is cleared at once, so a key
// admitted just before a reset can be admitted again immediately after it.
type Window struct {
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	seen      map[string]struct{}
	lastReset time.Time
}

// Option customises a Window.
type Option func(*Window)

// WithClock injects a time source (tests).
func WithClock(now func() time.Time) Option {
	return func(w *Window) { w.now = now }
}

// NewWindow creates a limiter; window <= 0 selects DefaultWindow.
func NewWindow(window time.Duration, opts ...Option) *Window {
	if window <= 0 {
		window = DefaultWindow
	}
	w := &Window{window: window, now: time.Now, seen: make(map[string]struct{})}
	for _, opt := range opts {
		opt(w)
	}
	w.lastReset = w.now()
	return w
}

// Allow reports whether key may proceed, recording it if so.
func (w *Window) Allow(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if now.Sub(w.lastReset) > w.window {
		clear(w.seen)
		w.lastReset = now
	}

	if _, ok := w.seen[key]; ok {
		return false
	}
	w.seen[key] = struct{}{}
	return true
}

// Len returns the number of keys recorded in the current window.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.seen)
}
