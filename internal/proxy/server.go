// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package proxy runs the local HTTP endpoint the packager uploads to. Each PUT
// or DELETE is relayed to cloud storage through a worker from a cloud.Pool.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/shaka-project/shaka-streamer-sub000/internal/cloud"
	"github.com/shaka-project/shaka-streamer-sub000/internal/log"
	"github.com/shaka-project/shaka-streamer-sub000/internal/ratelimit"
)

// DefaultListenAddr binds the loopback interface on an OS-assigned port.
const DefaultListenAddr = "localhost:0"

var (
	ErrNoPool         = errors.New("proxy: upload pool is required")
	ErrAlreadyStarted = errors.New("proxy: server already started")
)

// Config holds the configuration for the upload proxy server.
type Config struct {
	// Pool provides the upload workers. Required.
	Pool *cloud.Pool

	// ListenAddr defaults to DefaultListenAddr.
	ListenAddr string

	// RateLimitWindow is how long a written path is suppressed; defaults to
	// ratelimit.DefaultWindow.
	RateLimitWindow time.Duration

	// Logger defaults to the "proxy" component logger.
	Logger *zerolog.Logger
}

// Server is the upload proxy HTTP server.
type Server struct {
	pool    *cloud.Pool
	limiter *ratelimit.Window
	logger  zerolog.Logger
	addr    string

	// suppressLog throttles the per-request log line for suppressed PUTs.
	suppressLog rate.Sometimes

	httpServer *http.Server

	mu       sync.Mutex
	listener net.Listener
	serveErr chan error
}

// New validates cfg and builds an unstarted server.
func New(cfg Config) (*Server, error) {
	if cfg.Pool == nil {
		return nil, ErrNoPool
	}
	addr := cfg.ListenAddr
	if addr == "" {
		addr = DefaultListenAddr
	}
	logger := log.WithComponent("proxy")
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	s := &Server{
		pool:        cfg.Pool,
		limiter:     ratelimit.NewWindow(cfg.RateLimitWindow),
		logger:      logger,
		addr:        addr,
		suppressLog: rate.Sometimes{First: 3, Interval: 10 * time.Second},
		serveErr:    make(chan error, 1),
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}
	return s, nil
}

// Handler returns the instrumented router. Exposed for httptest.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.requestContext)
	r.Put("/*", s.handlePut)
	r.Delete("/*", s.handleDelete)

	return otelhttp.NewHandler(r, "upload-proxy",
		otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
			return operation + " " + r.Method
		}),
	)
}

// Start binds the listener synchronously and serves in the background, so
// Location is valid as soon as Start returns.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return ErrAlreadyStarted
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("proxy listen %s: %w", s.addr, err)
	}
	s.listener = ln
	s.logger.Info().Str(log.FieldLocation, "http://"+ln.Addr().String()).Msg("starting upload proxy")

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("upload proxy failed")
			s.serveErr <- err
		}
		close(s.serveErr)
	}()
	return nil
}

// Location is the base URL the packager should upload to.
func (s *Server) Location() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return "http://" + s.listener.Addr().String()
}

// Err delivers a serve failure, if any, and is closed when serving stops.
func (s *Server) Err() <-chan error { return s.serveErr }

// Shutdown gracefully stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down upload proxy")
	return s.httpServer.Shutdown(ctx)
}
