// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package node

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestThreadedNodeFinishes(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int32
	n := NewThreadedNode(ThreadedConfig{Name: "t", Interval: time.Millisecond}, func(context.Context) (bool, error) {
		return calls.Add(1) == 3, nil
	})
	require.NoError(t, n.Start(context.Background()))

	select {
	case <-n.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not finish")
	}
	assert.Equal(t, Finished, n.Status())
	assert.EqualValues(t, 3, calls.Load())
	n.Stop(Finished)
}

func TestThreadedNodeErrorStopsLoop(t *testing.T) {
	defer goleak.VerifyNone(t)

	n := NewThreadedNode(ThreadedConfig{Name: "t", Interval: time.Millisecond}, func(context.Context) (bool, error) {
		return false, errors.New("fatal")
	})
	require.NoError(t, n.Start(context.Background()))
	<-n.Done()
	assert.Equal(t, Errored, n.Status())

	n.Stop(Finished)
	assert.Equal(t, Errored, n.Status(), "Errored survives Stop")
}

func TestThreadedNodeContinueOnError(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int32
	n := NewThreadedNode(ThreadedConfig{Name: "t", Interval: time.Millisecond, ContinueOnError: true},
		func(context.Context) (bool, error) {
			if calls.Add(1) < 3 {
				return false, errors.New("transient")
			}
			return true, nil
		})
	require.NoError(t, n.Start(context.Background()))
	<-n.Done()
	assert.Equal(t, Finished, n.Status())
}

func TestThreadedNodeStopInterruptsSleep(t *testing.T) {
	defer goleak.VerifyNone(t)

	n := NewThreadedNode(ThreadedConfig{Name: "t", Interval: time.Hour}, func(context.Context) (bool, error) {
		return false, nil
	})
	require.NoError(t, n.Start(context.Background()))
	assert.Equal(t, Running, n.Status())

	start := time.Now()
	n.Stop(Finished)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, Finished, n.Status())
}

func TestThreadedNodeStartTwice(t *testing.T) {
	defer goleak.VerifyNone(t)

	n := NewThreadedNode(ThreadedConfig{Interval: time.Hour}, func(context.Context) (bool, error) { return false, nil })
	require.NoError(t, n.Start(context.Background()))
	assert.ErrorIs(t, n.Start(context.Background()), ErrAlreadyStarted)
	n.Stop(Finished)
}
