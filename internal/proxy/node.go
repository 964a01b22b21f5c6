// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package proxy

import (
	"context"
	"sync"
	"time"

	"github.com/shaka-project/shaka-streamer-sub000/internal/cloud"
	"github.com/shaka-project/shaka-streamer-sub000/internal/log"
	"github.com/shaka-project/shaka-streamer-sub000/internal/node"
)

const shutdownTimeout = 10 * time.Second

// NodeConfig configures a Node.
type NodeConfig struct {
	// UploadLocation is the gs:// or s3:// destination.
	UploadLocation  string
	PoolSize        int
	RateLimitWindow time.Duration
	// Factory overrides the uploader factory derived from UploadLocation.
	Factory cloud.Factory
}

// Node owns the upload pool and the proxy server for one pipeline.
// It never holds the pipeline open: its status is Finished unless serving
// failed, and the controller stops it explicitly at teardown.
type Node struct {
	cfg NodeConfig

	mu     sync.Mutex
	pool   *cloud.Pool
	server *Server
	failed bool

	stopOnce sync.Once
}

var _ node.Node = (*Node)(nil)

// NewNode validates the upload location eagerly so a bad scheme is a
// configuration error before anything starts.
func NewNode(cfg NodeConfig) (*Node, error) {
	if cfg.Factory == nil {
		f, err := cloud.NewFactory(cfg.UploadLocation)
		if err != nil {
			return nil, err
		}
		cfg.Factory = f
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 4
	}
	return &Node{cfg: cfg}, nil
}

// Start creates the pool and binds the server. Calling Start again is a no-op,
// since the controller starts the proxy early to learn its location.
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.server != nil {
		return nil
	}

	pool, err := cloud.NewPool(ctx, n.cfg.Factory, n.cfg.PoolSize)
	if err != nil {
		return err
	}
	srv, err := New(Config{Pool: pool, RateLimitWindow: n.cfg.RateLimitWindow})
	if err != nil {
		pool.Close()
		return err
	}
	if err := srv.Start(); err != nil {
		pool.Close()
		return err
	}
	n.pool, n.server = pool, srv

	go func() {
		if err := <-srv.Err(); err != nil {
			n.mu.Lock()
			n.failed = true
			n.mu.Unlock()
		}
	}()
	return nil
}

// Location is the URL that replaces the cloud destination in packager output.
func (n *Node) Location() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.server == nil {
		return ""
	}
	return n.server.Location()
}

func (n *Node) Status() node.Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failed {
		return node.Errored
	}
	return node.Finished
}

// Stop shuts the server down, waiting a bounded time for in-flight uploads,
// then closes the pool.
func (n *Node) Stop(node.Status) {
	n.stopOnce.Do(func() {
		n.mu.Lock()
		srv, pool := n.server, n.pool
		n.mu.Unlock()
		if srv == nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger := log.WithComponent("proxy")
			logger.Warn().Err(err).Msg("upload proxy shutdown incomplete")
		}
		// Drain the serve goroutine before the pool goes away.
		for range srv.Err() {
		}
		pool.Close()
	})
}
