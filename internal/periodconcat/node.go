// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package periodconcat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/shaka-project/shaka-streamer-sub000/internal/log"
	"github.com/shaka-project/shaka-streamer-sub000/internal/metrics"
	"github.com/shaka-project/shaka-streamer-sub000/internal/node"
	"github.com/shaka-project/shaka-streamer-sub000/internal/telemetry"
)

// Format is a manifest format to merge.
type Format string

const (
	FormatDASH Format = "dash"
	FormatHLS  Format = "hls"
)

const (
	DefaultDASHOutput = "dash.mpd"
	DefaultHLSOutput  = "hls.m3u8"

	packagerComment = "Generated with https://github.com/shaka-project/shaka-packager"
)

// Config describes one multi-period merge.
type Config struct {
	// OutputDir receives the merged manifests. Period directories are
	// referenced relative to it.
	OutputDir  string
	Periods    []Period
	Formats    []Format
	DASHOutput string
	HLSOutput  string
	Version    string
	// Incompatible lists reasons, known up front, why the merge cannot
	// succeed.
	Incompatible []string
	Interval     time.Duration
}

// Node waits for every period's packager to finish, then merges their
// manifests exactly once.
type Node struct {
	*node.ThreadedNode

	cfg     Config
	reasons []string
	logger  zerolog.Logger
}

var _ node.Node = (*Node)(nil)

// NewNode checks the periods and returns an unstarted merge node. A merge
// that is known to fail is reported right away and fails when it runs.
func NewNode(cfg Config) *Node {
	if cfg.DASHOutput == "" {
		cfg.DASHOutput = DefaultDASHOutput
	}
	if cfg.HLSOutput == "" {
		cfg.HLSOutput = DefaultHLSOutput
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}

	n := &Node{
		cfg:     cfg,
		reasons: append(append([]string(nil), cfg.Incompatible...), checkPeriods(cfg.Periods)...),
		logger:  log.WithComponent("periodconcat"),
	}
	if len(n.reasons) > 0 {
		n.logger.Warn().
			Strs("reasons", n.reasons).
			Msg("periods cannot be concatenated; give every period the same kinds of streams and write output to a local directory or a cloud bucket")
	}
	n.ThreadedNode = node.NewThreadedNode(node.ThreadedConfig{
		Name:     "periodconcat",
		Interval: cfg.Interval,
	}, n.pass)
	return n
}

// checkPeriods requires either every period or none to carry video, and the
// same for audio.
func checkPeriods(periods []Period) []string {
	var reasons []string
	for _, t := range []StreamType{StreamVideo, StreamAudio} {
		with := 0
		for _, p := range periods {
			if p.has(t) {
				with++
			}
		}
		if with != 0 && with != len(periods) {
			reasons = append(reasons, fmt.Sprintf("%d of %d periods have %s streams", with, len(periods), t))
		}
	}
	return reasons
}

func (n *Node) pass(ctx context.Context) (bool, error) {
	for i, p := range n.cfg.Periods {
		if p.Node == nil {
			continue
		}
		switch p.Node.Status() {
		case node.Running:
			return false, nil
		case node.Errored:
			return false, fmt.Errorf("concatenation stopped: packager of period %d errored", i)
		}
	}

	if len(n.reasons) > 0 {
		return false, fmt.Errorf("%w: %s", ErrIncompatiblePeriods, strings.Join(n.reasons, "; "))
	}
	return true, n.merge(ctx)
}

func (n *Node) merge(ctx context.Context) error {
	logger := log.WithContext(ctx, n.logger)
	version := n.cfg.Version
	if version == "" {
		version = "dev"
	}
	madeWith := "Made Multi-Period with https://github.com/shaka-project/shaka-streamer version " + version

	for _, f := range n.cfg.Formats {
		_, finish := telemetry.StartSpan(ctx, "periodconcat", "merge "+string(f),
			telemetry.ConcatAttributes(string(f), len(n.cfg.Periods), n.cfg.OutputDir)...)
		var err error
		switch f {
		case FormatDASH:
			err = MergeDASH(n.cfg.Periods, n.cfg.OutputDir, n.cfg.DASHOutput, packagerComment, madeWith)
		case FormatHLS:
			err = MergeHLS(n.cfg.Periods, n.cfg.OutputDir, n.cfg.HLSOutput, madeWith)
		default:
			err = fmt.Errorf("unknown manifest format %q", f)
		}
		finish(err)
		metrics.RecordPeriodConcat(string(f), err)
		if err != nil {
			return fmt.Errorf("%s concatenation: %w", f, err)
		}
		logger.Info().
			Str(log.FieldFormat, string(f)).
			Int("periods", len(n.cfg.Periods)).
			Str(log.FieldOutputDir, n.cfg.OutputDir).
			Msg("periods concatenated")
	}
	return nil
}
