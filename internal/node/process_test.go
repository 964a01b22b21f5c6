// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build unix

package node

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaka-project/shaka-streamer-sub000/internal/metrics"
)

func startProcess(t *testing.T, cfg ProcessConfig) *ProcessNode {
	t.Helper()
	n, err := NewProcessNode(cfg)
	require.NoError(t, err)
	require.NoError(t, n.Start(context.Background()))
	t.Cleanup(func() { n.Stop(Errored) })
	return n
}

func waitDone(t *testing.T, n *ProcessNode) {
	t.Helper()
	select {
	case <-n.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}
}

func TestProcessNodeExitStatus(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   Status
	}{
		{name: "success", script: "exit 0", want: Finished},
		{name: "failure", script: "echo broken >&2; exit 3", want: Errored},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := startProcess(t, ProcessConfig{Name: "sh", Args: []string{"sh", "-c", tt.script}})
			waitDone(t, n)
			assert.Equal(t, tt.want, n.Status())
		})
	}
}

func TestProcessNodeStopAfterExitSendsNoSignal(t *testing.T) {
	n := startProcess(t, ProcessConfig{Name: "sh", Args: []string{"sh", "-c", "exit 0"}, Grace: time.Second})
	waitDone(t, n)

	sent := testutil.ToFloat64(metrics.ProcTerminateTotal.WithLabelValues("SIGTERM", "sent"))
	missing := testutil.ToFloat64(metrics.ProcTerminateTotal.WithLabelValues("SIGTERM", "esrch"))
	reaped := testutil.ToFloat64(metrics.ProcWaitTotal.WithLabelValues("exit0"))

	n.Stop(Finished)

	assert.Equal(t, sent, testutil.ToFloat64(metrics.ProcTerminateTotal.WithLabelValues("SIGTERM", "sent")))
	assert.Equal(t, missing, testutil.ToFloat64(metrics.ProcTerminateTotal.WithLabelValues("SIGTERM", "esrch")))
	assert.Equal(t, reaped, testutil.ToFloat64(metrics.ProcWaitTotal.WithLabelValues("exit0")))
	assert.Equal(t, Finished, n.Status())
}

func TestProcessNodeCapturesStderr(t *testing.T) {
	var extra bytes.Buffer
	n := startProcess(t, ProcessConfig{
		Args:   []string{"sh", "-c", "echo first >&2; echo second >&2; exit 1"},
		Stderr: &extra,
	})
	waitDone(t, n)
	assert.Equal(t, 1, n.ExitCode())
	assert.Equal(t, []string{"first", "second"}, n.StderrTail(5))
	assert.Contains(t, extra.String(), "second")
}

func TestProcessNodeRunningUntilStopped(t *testing.T) {
	n := startProcess(t, ProcessConfig{Args: []string{"sleep", "30"}, Grace: 200 * time.Millisecond})
	assert.Equal(t, Running, n.Status())

	start := time.Now()
	n.Stop(Errored)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, Errored, n.Status(), "killed process is not a clean finish")

	// idempotent
	n.Stop(Errored)
}

func TestProcessNodePoliteWait(t *testing.T) {
	n := startProcess(t, ProcessConfig{
		Args:       []string{"sh", "-c", "sleep 0.3; exit 0"},
		PoliteWait: 10 * time.Second,
	})
	n.Stop(Finished)
	assert.Equal(t, Finished, n.Status(), "process should have finished on its own")
}

func TestProcessNodeEnv(t *testing.T) {
	var out bytes.Buffer
	n := startProcess(t, ProcessConfig{
		Args:   []string{"sh", "-c", `printf %s "$STREAMER_TEST_VAR"`},
		Env:    map[string]string{"STREAMER_TEST_VAR": "hello"},
		Stdout: &out,
	})
	waitDone(t, n)
	assert.Equal(t, "hello", out.String())
}

func TestProcessNodeStartTwice(t *testing.T) {
	n := startProcess(t, ProcessConfig{Args: []string{"true"}})
	assert.ErrorIs(t, n.Start(context.Background()), ErrAlreadyStarted)
}

func TestProcessNodeUnstarted(t *testing.T) {
	n, err := NewProcessNode(ProcessConfig{Args: []string{"true"}})
	require.NoError(t, err)
	assert.Equal(t, Finished, n.Status())
	n.Stop(Finished)
}

func TestNewProcessNodeEmpty(t *testing.T) {
	_, err := NewProcessNode(ProcessConfig{})
	assert.ErrorIs(t, err, ErrEmptyCommand)
}

func TestMergeEnv(t *testing.T) {
	got := mergeEnv([]string{"A=1", "B=2"}, map[string]string{"B": "3", "C": "4"})
	assert.Equal(t, []string{"A=1", "B=3", "C=4"}, got)
}
