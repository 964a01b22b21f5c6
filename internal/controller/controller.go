// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package controller turns a configuration into a running pipeline: named
// pipes, command and packager nodes, the upload proxy and the period merge.
package controller

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/shaka-project/shaka-streamer-sub000/internal/cloud"
	"github.com/shaka-project/shaka-streamer-sub000/internal/config"
	"github.com/shaka-project/shaka-streamer-sub000/internal/log"
	"github.com/shaka-project/shaka-streamer-sub000/internal/node"
	"github.com/shaka-project/shaka-streamer-sub000/internal/periodconcat"
	"github.com/shaka-project/shaka-streamer-sub000/internal/pipe"
	"github.com/shaka-project/shaka-streamer-sub000/internal/proxy"
)

// ErrAlreadyStarted is returned by a second call to Start.
var ErrAlreadyStarted = errors.New("controller already started")

const (
	tempDirPattern = "shaka-live-*"
	pollInterval   = time.Second

	httpIncompatible = "output is sent over HTTP, so no manifests are left on local disk to merge"
)

// Options carries what the configuration file does not.
type Options struct {
	Version string
	// Factory overrides the uploaders derived from a cloud output.
	Factory cloud.Factory
}

// Controller owns every node of one pipeline run.
type Controller struct {
	cfg    config.Config
	opts   Options
	logger zerolog.Logger
	poll   time.Duration

	mu      sync.Mutex
	started bool
	nodes   []node.Node
	pipes   []*pipe.Pipe
	tempDir string
	output  string

	stopOnce sync.Once
}

// New returns an unstarted controller for cfg.
func New(cfg config.Config, opts Options) *Controller {
	return &Controller{
		cfg:    cfg,
		opts:   opts,
		logger: log.WithComponent("controller"),
		poll:   pollInterval,
	}
}

// Start builds the node graph and starts every node in order. On failure,
// whatever was already started is stopped again.
func (c *Controller) Start(ctx context.Context) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true

	if err := config.Validate(c.cfg); err != nil {
		return err
	}

	defer func() {
		if err != nil {
			c.teardown(node.Errored)
		}
	}()

	tempDir, err := os.MkdirTemp("", tempDirPattern)
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	c.tempDir = tempDir

	output, err := c.routeOutput(ctx)
	if err != nil {
		return err
	}
	c.output = output

	multi := len(c.cfg.Periods) > 1
	var periods []periodconcat.Period
	for i, p := range c.cfg.Periods {
		pctx := ctx
		periodOut := output
		if multi {
			pctx = log.ContextWithPeriod(ctx, i+1)
			periodOut, err = c.periodOutput(output, i+1)
			if err != nil {
				return err
			}
		}
		packager, err := c.addPeriod(pctx, p, periodOut)
		if err != nil {
			return fmt.Errorf("period %d: %w", i+1, err)
		}
		periods = append(periods, periodconcat.Period{
			OutputDir: periodOut,
			Streams:   outputStreams(p.Streams),
			Node:      packager,
		})
	}

	if multi && c.cfg.IsVOD() {
		c.nodes = append(c.nodes, c.concatNode(output, periods))
	}

	for _, n := range c.nodes {
		if err := n.Start(ctx); err != nil {
			return err
		}
	}

	c.logger.Info().
		Str(log.FieldOutputDir, output).
		Int("periods", len(c.cfg.Periods)).
		Int("nodes", len(c.nodes)).
		Msg("pipeline started")
	return nil
}

// routeOutput prepares the output location and returns where packagers
// write to.
func (c *Controller) routeOutput(ctx context.Context) (string, error) {
	out := c.cfg.Output
	switch {
	case isHTTP(out):
		return strings.TrimSuffix(out, "/"), nil

	case strings.Contains(out, "://"):
		// gs://, s3://; other schemes fail in NewNode.
		p, err := proxy.NewNode(proxy.NodeConfig{
			UploadLocation:  out,
			PoolSize:        c.cfg.Upload.PoolSize,
			RateLimitWindow: c.cfg.Upload.RateLimitWindow,
			Factory:         c.opts.Factory,
		})
		if err != nil {
			return "", fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
		}
		if len(c.cfg.Periods) > 1 {
			return "", fmt.Errorf("%w: cloud upload cannot be combined with multiple periods", config.ErrInvalidConfig)
		}
		// The proxy starts first so its address can replace the output.
		if err := p.Start(ctx); err != nil {
			return "", fmt.Errorf("start upload proxy: %w", err)
		}
		c.nodes = append(c.nodes, p)
		c.logger.Info().
			Str(log.FieldLocation, p.Location()).
			Str("upload_location", out).
			Msg("upload proxy serving")
		return p.Location(), nil

	default:
		if err := os.RemoveAll(out); err != nil {
			return "", fmt.Errorf("clear output dir: %w", err)
		}
		if err := os.MkdirAll(out, 0o755); err != nil {
			return "", fmt.Errorf("create output dir: %w", err)
		}
		return out, nil
	}
}

func (c *Controller) periodOutput(output string, index int) (string, error) {
	name := fmt.Sprintf("period_%d", index)
	if isHTTP(output) {
		return output + "/" + name, nil
	}
	dir := filepath.Join(output, name)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("create period dir: %w", err)
	}
	return dir, nil
}

// addPeriod creates the period's pipes and nodes and returns its packager.
func (c *Controller) addPeriod(ctx context.Context, p config.Period, output string) (node.Node, error) {
	logger := log.WithComponentFromContext(ctx, "controller")

	vars := config.Vars{Output: output, TempDir: c.tempDir, Pipes: map[string]config.PipeEnds{}}
	for _, name := range p.Pipes {
		pp, err := pipe.CreateIPCPipe(c.tempDir, "")
		if err != nil {
			return nil, err
		}
		c.pipes = append(c.pipes, pp)
		r, err := pp.ReadEnd()
		if err != nil {
			return nil, err
		}
		w, err := pp.WriteEnd()
		if err != nil {
			return nil, err
		}
		vars.Pipes[name] = config.PipeEnds{Read: r, Write: w}
		logger.Debug().Str(log.FieldPipe, name).Str(log.FieldPath, r).Msg("pipe created")
	}

	for _, cmd := range p.Commands {
		n, err := c.processNode(vars, cmd, cmd.Name, 0)
		if err != nil {
			return nil, err
		}
		c.nodes = append(c.nodes, n)
	}

	name := p.Packager.Name
	if name == "" {
		name = "packager"
	}
	packager, err := c.processNode(vars, p.Packager, name, c.cfg.Process.PoliteWait)
	if err != nil {
		return nil, err
	}
	c.nodes = append(c.nodes, packager)
	return packager, nil
}

func (c *Controller) processNode(vars config.Vars, cmd config.Command, name string, polite time.Duration) (*node.ProcessNode, error) {
	args, err := vars.ExpandAll(cmd.Args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	var env map[string]string
	if len(cmd.Env) > 0 {
		env = make(map[string]string, len(cmd.Env))
		for k, v := range cmd.Env {
			if env[k], err = vars.Expand(v); err != nil {
				return nil, fmt.Errorf("%s: env %s: %w", name, k, err)
			}
		}
	}
	n, err := node.NewProcessNode(node.ProcessConfig{
		Name:       name,
		Args:       args,
		Env:        env,
		PoliteWait: polite,
		Grace:      c.cfg.Process.GracePeriod,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}

func (c *Controller) concatNode(output string, periods []periodconcat.Period) *periodconcat.Node {
	formats := make([]periodconcat.Format, 0, len(c.cfg.ManifestFormat))
	for _, f := range c.cfg.ManifestFormat {
		formats = append(formats, periodconcat.Format(f))
	}
	var incompatible []string
	if isHTTP(output) {
		incompatible = append(incompatible, httpIncompatible)
	}
	return periodconcat.NewNode(periodconcat.Config{
		OutputDir:    output,
		Periods:      periods,
		Formats:      formats,
		DASHOutput:   c.cfg.DASHOutput,
		HLSOutput:    c.cfg.HLSOutput,
		Version:      c.opts.Version,
		Incompatible: incompatible,
	})
}

func outputStreams(streams []config.Stream) []periodconcat.OutputStream {
	out := make([]periodconcat.OutputStream, 0, len(streams))
	for _, s := range streams {
		out = append(out, periodconcat.OutputStream{
			Type:     periodconcat.StreamType(s.Type),
			Codec:    s.Codec,
			Language: s.Language,
			Channels: s.Channels,
			Resolution: periodconcat.Resolution{
				Name:   s.Resolution.Name,
				Width:  s.Resolution.Width,
				Height: s.Resolution.Height,
			},
			Segment: s.Segment,
		})
	}
	return out
}

// Output is where packagers write: the local directory, the HTTP URL or the
// upload proxy address. Empty before Start.
func (c *Controller) Output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.output
}

// Status aggregates the status of every node.
func (c *Controller) Status() node.Status {
	c.mu.Lock()
	nodes := c.nodes
	c.mu.Unlock()
	return node.Aggregate(node.Statuses(nodes)...)
}

// Wait polls until the pipeline is no longer running and returns its
// status, or returns early when ctx is done.
func (c *Controller) Wait(ctx context.Context) (node.Status, error) {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()
	for {
		if s := c.Status(); s != node.Running {
			return s, nil
		}
		select {
		case <-ctx.Done():
			return node.Running, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Stop stops every node in reverse start order, passing the current
// aggregate status, then removes the temp dir. It is idempotent.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		final := c.Status()
		c.mu.Lock()
		defer c.mu.Unlock()
		c.teardown(final)
		c.logger.Info().Str(log.FieldStatus, final.String()).Msg("pipeline stopped")
	})
}

// teardown runs with c.mu held.
func (c *Controller) teardown(final node.Status) {
	for i := len(c.nodes) - 1; i >= 0; i-- {
		c.nodes[i].Stop(final)
	}
	for _, p := range c.pipes {
		if err := p.Close(); err != nil {
			c.logger.Warn().Err(err).Str(log.FieldPipe, p.Name()).Msg("pipe close failed")
		}
	}
	c.pipes = nil
	if c.tempDir != "" {
		if err := os.RemoveAll(c.tempDir); err != nil {
			c.logger.Warn().Err(err).Str(log.FieldPath, c.tempDir).Msg("temp dir cleanup failed")
		}
		c.tempDir = ""
	}
}

func isHTTP(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
