// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/shaka-project/shaka-streamer-sub000/internal/log"
	"github.com/shaka-project/shaka-streamer-sub000/internal/metrics"
	"github.com/shaka-project/shaka-streamer-sub000/internal/procgroup"
)

const (
	// DefaultGrace is how long a process group gets between SIGTERM and SIGKILL.
	DefaultGrace = time.Second
	// DefaultPoliteWait is how long a packager may take to flush a VOD manifest.
	DefaultPoliteWait = 5 * time.Minute

	stderrTailLines = 20
)

var (
	ErrAlreadyStarted = errors.New("node already started")
	ErrEmptyCommand   = errors.New("node command is empty")
)

// ProcessConfig describes one external command.
type ProcessConfig struct {
	Name string   // label used in logs and metrics, e.g. "ffmpeg" or "packager"
	Args []string // argv; Args[0] is the executable
	Env  map[string]string
	Dir  string

	// Stdout and Stderr optionally receive the process output. Stderr is
	// always captured for failure diagnostics as well.
	Stdout io.Writer
	Stderr io.Writer

	// PoliteWait lets the process finish on its own when the pipeline is
	// stopping with status Finished. Zero disables it.
	PoliteWait time.Duration
	Grace      time.Duration
}

// ProcessNode supervises exactly one subprocess.
type ProcessNode struct {
	cfg    ProcessConfig
	ring   *LineRing
	logger zerolog.Logger

	mu       sync.Mutex
	cmd      *exec.Cmd
	started  bool
	done     chan struct{}
	waitErr  error
	exitCode int

	stopOnce sync.Once
}

// NewProcessNode validates cfg and returns an unstarted node.
func NewProcessNode(cfg ProcessConfig) (*ProcessNode, error) {
	if len(cfg.Args) == 0 || cfg.Args[0] == "" {
		return nil, ErrEmptyCommand
	}
	if cfg.Grace <= 0 {
		cfg.Grace = DefaultGrace
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Args[0]
	}
	return &ProcessNode{
		cfg:    cfg,
		ring:   NewLineRing(256),
		logger: log.WithComponent("node").With().Str(log.FieldNode, cfg.Name).Logger(),
		done:   make(chan struct{}),
	}, nil
}

// Name returns the configured label.
func (n *ProcessNode) Name() string { return n.cfg.Name }

// Start spawns the process in its own process group.
func (n *ProcessNode) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		return ErrAlreadyStarted
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// #nosec G204 -- argv comes from the operator's pipeline configuration
	cmd := exec.Command(n.cfg.Args[0], n.cfg.Args[1:]...)
	cmd.Dir = n.cfg.Dir
	cmd.Env = mergeEnv(os.Environ(), n.cfg.Env)
	cmd.Stdout = n.cfg.Stdout
	if n.cfg.Stderr != nil {
		cmd.Stderr = io.MultiWriter(n.ring, n.cfg.Stderr)
	} else {
		cmd.Stderr = n.ring
	}
	procgroup.Set(cmd)

	logger := log.WithContext(ctx, n.logger)
	logger.Info().Str(log.FieldCommand, strings.Join(n.cfg.Args, " ")).Msg("starting process")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", n.cfg.Name, err)
	}
	n.cmd = cmd
	n.started = true

	go n.wait(logger)
	return nil
}

func (n *ProcessNode) wait(logger zerolog.Logger) {
	err := n.cmd.Wait()
	code := 0
	if err != nil {
		code = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
	}

	n.mu.Lock()
	n.waitErr = err
	n.exitCode = code
	n.mu.Unlock()
	close(n.done)

	if code == 0 {
		logger.Info().Int(log.FieldPID, n.cmd.Process.Pid).Msg("process finished")
		metrics.IncNodeStatus(n.cfg.Name, Finished.String())
		return
	}
	logger.Error().
		Int(log.FieldPID, n.cmd.Process.Pid).
		Int(log.FieldExitCode, code).
		Strs("stderr", n.ring.LastN(stderrTailLines)).
		Msg("process exited with error")
	metrics.IncNodeStatus(n.cfg.Name, Errored.String())
}

// Status reports Running until the process exits, then Finished for exit
// code zero and Errored otherwise. An unstarted node is Finished.
func (n *ProcessNode) Status() Status {
	n.mu.Lock()
	started := n.started
	n.mu.Unlock()
	if !started {
		return Finished
	}

	select {
	case <-n.done:
	default:
		return Running
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.exitCode == 0 {
		return Finished
	}
	return Errored
}

// Done is closed once the process has been reaped.
func (n *ProcessNode) Done() <-chan struct{} { return n.done }

// ExitCode returns the exit code once Done is closed (-1 if killed by a signal).
func (n *ProcessNode) ExitCode() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.exitCode
}

// StderrTail returns the last captured stderr lines.
func (n *ProcessNode) StderrTail(lines int) []string {
	return n.ring.LastN(lines)
}

// Stop terminates the process group. With final == Finished and a polite
// wait configured, the process first gets that long to exit on its own.
func (n *ProcessNode) Stop(final Status) {
	n.stopOnce.Do(func() {
		n.mu.Lock()
		cmd := n.cmd
		n.mu.Unlock()
		if cmd == nil {
			return
		}

		if final == Finished && n.cfg.PoliteWait > 0 {
			timer := time.NewTimer(n.cfg.PoliteWait)
			select {
			case <-n.done:
			case <-timer.C:
				n.logger.Warn().Dur("polite_wait", n.cfg.PoliteWait).Msg("process did not finish in time, terminating")
			}
			timer.Stop()
		}

		// Once the leader is reaped its PID may be reused; nothing to signal.
		select {
		case <-n.done:
			return
		default:
		}

		waitCh := make(chan error, 1)
		go func() {
			<-n.done
			n.mu.Lock()
			waitCh <- n.waitErr
			n.mu.Unlock()
		}()
		_ = procgroup.Terminate(cmd, waitCh, n.cfg.Grace)
	})
}

func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if _, override := extra[k]; override {
			continue
		}
		out = append(out, kv)
	}
	for _, k := range keys {
		out = append(out, k+"="+extra[k])
	}
	return out
}
