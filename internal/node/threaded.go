// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package node

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/shaka-project/shaka-streamer-sub000/internal/log"
	"github.com/shaka-project/shaka-streamer-sub000/internal/metrics"
)

// PassFunc is one iteration of a threaded node. Returning done ends the loop
// with Finished; an error either ends it with Errored or is logged, depending
// on ThreadedConfig.ContinueOnError.
type PassFunc func(ctx context.Context) (done bool, err error)

// ThreadedConfig controls the loop of a ThreadedNode.
type ThreadedConfig struct {
	Name            string
	Interval        time.Duration
	ContinueOnError bool
	// StopTimeout bounds how long Stop waits for an in-flight pass.
	StopTimeout time.Duration
}

// ThreadedNode runs a PassFunc repeatedly on its own goroutine.
type ThreadedNode struct {
	cfg    ThreadedConfig
	pass   PassFunc
	logger zerolog.Logger

	mu      sync.Mutex
	status  Status
	started bool
	cancel  context.CancelFunc
	done    chan struct{}

	stopOnce sync.Once
}

// NewThreadedNode returns an unstarted loop node.
func NewThreadedNode(cfg ThreadedConfig, pass PassFunc) *ThreadedNode {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 30 * time.Second
	}
	return &ThreadedNode{
		cfg:    cfg,
		pass:   pass,
		logger: log.WithComponent("node").With().Str(log.FieldNode, cfg.Name).Logger(),
		status: Finished,
		done:   make(chan struct{}),
	}
}

// Start launches the loop goroutine.
func (n *ThreadedNode) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		return ErrAlreadyStarted
	}
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	n.cancel = cancel
	n.started = true
	n.status = Running

	go n.loop(loopCtx, log.WithContext(ctx, n.logger))
	return nil
}

func (n *ThreadedNode) loop(ctx context.Context, logger zerolog.Logger) {
	defer close(n.done)
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := n.pass(ctx)
		if err != nil {
			if !n.cfg.ContinueOnError {
				logger.Error().Err(err).Msg("node loop failed")
				n.setStatus(Errored)
				metrics.IncNodeStatus(n.cfg.Name, Errored.String())
				return
			}
			logger.Warn().Err(err).Msg("node pass failed, continuing")
		}
		if done {
			n.setStatus(Finished)
			metrics.IncNodeStatus(n.cfg.Name, Finished.String())
			return
		}

		timer := time.NewTimer(n.cfg.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (n *ThreadedNode) setStatus(s Status) {
	n.mu.Lock()
	n.status = s
	n.mu.Unlock()
}

// Status reports Running while the loop is alive.
func (n *ThreadedNode) Status() Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.status
}

// Done is closed when the loop goroutine exits.
func (n *ThreadedNode) Done() <-chan struct{} { return n.done }

// Stop signals the loop and joins it. An Errored status survives Stop; any
// other status becomes Finished.
func (n *ThreadedNode) Stop(Status) {
	n.stopOnce.Do(func() {
		n.mu.Lock()
		cancel := n.cancel
		n.mu.Unlock()
		if cancel == nil {
			return
		}
		cancel()

		select {
		case <-n.done:
		case <-time.After(n.cfg.StopTimeout):
			n.logger.Warn().Dur("timeout", n.cfg.StopTimeout).Msg("node loop did not stop in time")
		}

		n.mu.Lock()
		if n.status != Errored {
			n.status = Finished
		}
		n.mu.Unlock()
	})
}
