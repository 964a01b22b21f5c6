// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cloud

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/shaka-project/shaka-streamer-sub000/internal/log"
	"github.com/shaka-project/shaka-streamer-sub000/internal/metrics"
)

var (
	ErrPoolClosed      = errors.New("cloud: pool closed")
	ErrHandleReleased  = errors.New("cloud: worker handle already released")
	ErrInvalidPoolSize = errors.New("cloud: pool size must be positive")
)

type worker struct {
	id       int
	inbox    chan Message
	uploader Uploader
}

// Pool is a fixed set of upload workers. Each worker owns one persistent
// Uploader and processes the messages of one Handle at a time.
type Pool struct {
	workers   []*worker
	available chan *worker
	closed    chan struct{}
	logger    zerolog.Logger

	// sendMu is held for reading while a message is in flight so Close can
	// wait for in-flight work before closing worker inboxes.
	sendMu    sync.RWMutex
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewPool creates size uploaders with factory and starts one goroutine per worker.
func NewPool(ctx context.Context, factory Factory, size int) (*Pool, error) {
	if size <= 0 {
		return nil, ErrInvalidPoolSize
	}

	p := &Pool{
		available: make(chan *worker, size),
		closed:    make(chan struct{}),
		logger:    log.WithComponent("cloud"),
	}
	for i := 0; i < size; i++ {
		u, err := factory(ctx)
		if err != nil {
			return nil, fmt.Errorf("create uploader %d: %w", i, err)
		}
		p.workers = append(p.workers, &worker{id: i, inbox: make(chan Message, 1), uploader: u})
	}
	for _, w := range p.workers {
		p.wg.Add(1)
		go p.run(w)
		p.available <- w
	}
	p.logger.Info().Int("size", size).Msg("upload pool started")
	return p, nil
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

func (p *Pool) run(w *worker) {
	defer p.wg.Done()
	for msg := range w.inbox {
		err := p.dispatch(w, msg)
		if err != nil {
			metrics.IncUploadError(msg.Kind.String())
		}
		msg.reply <- err
	}
}

func (p *Pool) dispatch(w *worker, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Int(log.FieldWorkerID, w.id).Interface("panic", r).
				Str("op", msg.Kind.String()).Msg("uploader panicked")
			err = fmt.Errorf("uploader panic during %s: %v", msg.Kind, r)
		}
	}()

	ctx := msg.ctx
	switch msg.Kind {
	case MsgWriteNonChunked:
		return w.uploader.WriteNonChunked(ctx, msg.Path, msg.Data)
	case MsgStartChunked:
		return w.uploader.StartChunked(ctx, msg.Path)
	case MsgWriteChunk:
		return w.uploader.WriteChunk(ctx, msg.Data)
	case MsgEndChunked:
		return w.uploader.EndChunked(ctx)
	case MsgDelete:
		return w.uploader.Delete(ctx, msg.Path)
	case MsgReset:
		w.uploader.Reset()
		return nil
	default:
		return fmt.Errorf("unknown message kind %d", msg.Kind)
	}
}

// Get blocks until a worker is free, ctx is done, or the pool closes.
// The caller must Release the handle when its request is complete.
func (p *Pool) Get(ctx context.Context) (*Handle, error) {
	start := time.Now()
	select {
	case w := <-p.available:
		metrics.ObservePoolAcquire(time.Since(start))
		return &Handle{pool: p, w: w}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.closed:
		return nil, ErrPoolClosed
	}
}

func (p *Pool) send(ctx context.Context, w *worker, msg Message) error {
	p.sendMu.RLock()
	defer p.sendMu.RUnlock()
	select {
	case <-p.closed:
		return ErrPoolClosed
	default:
	}

	if ctx == nil {
		ctx = context.Background()
	}
	msg.ctx = ctx
	msg.reply = make(chan error, 1)
	w.inbox <- msg
	return <-msg.reply
}

// Close stops every worker and waits for them to exit. In-flight messages
// complete first. Safe to call more than once.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
		p.sendMu.Lock()
		for _, w := range p.workers {
			close(w.inbox)
		}
		p.sendMu.Unlock()
		p.wg.Wait()
		p.logger.Info().Msg("upload pool stopped")
	})
}

// Handle is exclusive access to one worker. It implements Uploader by
// forwarding each call as a Message and waiting for the worker's result.
type Handle struct {
	pool *Pool
	w    *worker

	mu       sync.Mutex
	released bool
}

var _ Uploader = (*Handle)(nil)

// WorkerID identifies the worker behind the handle.
func (h *Handle) WorkerID() int { return h.w.id }

func (h *Handle) do(ctx context.Context, msg Message) error {
	h.mu.Lock()
	released := h.released
	h.mu.Unlock()
	if released {
		return ErrHandleReleased
	}
	return h.pool.send(ctx, h.w, msg)
}

func (h *Handle) WriteNonChunked(ctx context.Context, path string, data []byte) error {
	return h.do(ctx, Message{Kind: MsgWriteNonChunked, Path: path, Data: data})
}

func (h *Handle) StartChunked(ctx context.Context, path string) error {
	return h.do(ctx, Message{Kind: MsgStartChunked, Path: path})
}

func (h *Handle) WriteChunk(ctx context.Context, data []byte) error {
	return h.do(ctx, Message{Kind: MsgWriteChunk, Data: data})
}

func (h *Handle) EndChunked(ctx context.Context) error {
	return h.do(ctx, Message{Kind: MsgEndChunked})
}

func (h *Handle) Delete(ctx context.Context, path string) error {
	return h.do(ctx, Message{Kind: MsgDelete, Path: path})
}

// Reset resets the worker's uploader while keeping the handle. It does
// nothing after Release.
func (h *Handle) Reset() {
	err := h.do(context.Background(), Message{Kind: MsgReset})
	if err != nil && !errors.Is(err, ErrHandleReleased) && !errors.Is(err, ErrPoolClosed) {
		h.pool.logger.Warn().Err(err).Int(log.FieldWorkerID, h.w.id).Msg("worker reset failed")
	}
}

// Release resets the worker's uploader and returns the worker to the pool.
// Safe to call more than once.
func (h *Handle) Release() {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return
	}
	h.released = true
	h.mu.Unlock()

	if err := h.pool.send(context.Background(), h.w, Message{Kind: MsgReset}); err != nil {
		if errors.Is(err, ErrPoolClosed) {
			metrics.ObservePoolRelease()
			return
		}
		h.pool.logger.Warn().Err(err).Int(log.FieldWorkerID, h.w.id).Msg("worker reset failed")
	}
	h.pool.available <- h.w
	metrics.ObservePoolRelease()
}
