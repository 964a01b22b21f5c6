// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command streamer runs one transcoding and packaging pipeline described by a
// YAML configuration file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/shaka-project/shaka-streamer-sub000/internal/config"
	"github.com/shaka-project/shaka-streamer-sub000/internal/controller"
	"github.com/shaka-project/shaka-streamer-sub000/internal/log"
	"github.com/shaka-project/shaka-streamer-sub000/internal/node"
	"github.com/shaka-project/shaka-streamer-sub000/internal/telemetry"
	"github.com/shaka-project/shaka-streamer-sub000/internal/version"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2

	metricsRequestsPerMinute = 120
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("streamer", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to pipeline config file (YAML)")
	envFile := fs.String("env-file", ".env", "optional dotenv file")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address")
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	if *showVersion {
		_, _ = fmt.Fprintln(stdout, version.String())
		return exitOK
	}

	// Safe defaults until the config is loaded.
	log.Configure(log.Config{Level: "info", Service: "shaka-streamer"})
	logger := log.WithComponent("streamer")

	if *configPath == "" {
		logger.Error().Msg("-config is required")
		return exitUsage
	}

	cfg, err := config.NewLoader(*configPath, *envFile).Load()
	if err != nil {
		logger.Error().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", *configPath).
			Msg("failed to load configuration")
		return exitUsage
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	log.Reconfigure(log.Config{Level: cfg.LogLevel, Service: "shaka-streamer"})
	logger = log.WithComponent("streamer")
	logger.Info().
		Str("event", "config.loaded").
		Str("path", *configPath).
		Str("version", version.Version).
		Int("periods", len(cfg.Periods)).
		Msg("loaded configuration")

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    "shaka-streamer",
		ServiceVersion: version.Version,
		ExporterType:   cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to set up tracing")
		return exitUsage
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("trace exporter shutdown incomplete")
		}
	}()

	status, err := runPipeline(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("pipeline failed")
		return exitFailed
	}
	logger.Info().Str(log.FieldStatus, status.String()).Msg("pipeline done")
	if status != node.Finished {
		return exitFailed
	}
	return exitOK
}

// runPipeline starts the controller and, if configured, the metrics server,
// and returns the final pipeline status once the pipeline ends or ctx is
// cancelled.
func runPipeline(ctx context.Context, cfg config.Config) (node.Status, error) {
	ctrl := controller.New(cfg, controller.Options{Version: version.Version})
	if err := ctrl.Start(ctx); err != nil {
		return node.Errored, err
	}

	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	if cfg.MetricsAddr != "" {
		srv, ln, err := metricsServer(cfg.MetricsAddr)
		if err != nil {
			ctrl.Stop()
			return node.Errored, err
		}
		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			select {
			case <-gctx.Done():
			case <-done:
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	var status node.Status
	g.Go(func() error {
		defer close(done)
		var err error
		status, err = ctrl.Wait(gctx)
		if err != nil && ctx.Err() != nil {
			// Interrupted: stop below, with whatever status the nodes report.
			return nil
		}
		return err
	})

	err := g.Wait()
	ctrl.Stop()
	if ctx.Err() != nil {
		status = ctrl.Status()
		if status == node.Running {
			status = node.Errored
		}
	}
	return status, err
}

func metricsServer(addr string) (*http.Server, net.Listener, error) {
	r := chi.NewRouter()
	r.Use(httprate.LimitByIP(metricsRequestsPerMinute, time.Minute))
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen metrics %s: %w", addr, err)
	}
	return &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}, ln, nil
}
