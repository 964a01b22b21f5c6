// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package node supervises the units of a pipeline: external processes and
// in-process loops, each reporting a Status.
package node

import "context"

// Status is the lifecycle state of a node.
// Values are ordered by severity so aggregation is a max.
type Status int

const (
	// Finished means the node ended successfully (or never ran).
	Finished Status = iota
	// Running means the node is still working.
	Running
	// Errored means the node failed.
	Errored
)

func (s Status) String() string {
	switch s {
	case Finished:
		return "finished"
	case Running:
		return "running"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// Aggregate reduces many statuses to one: any Errored wins, then any
// Running, otherwise Finished. No statuses yields Finished.
func Aggregate(statuses ...Status) Status {
	agg := Finished
	for _, s := range statuses {
		if s > agg {
			agg = s
		}
	}
	return agg
}

// Node is one supervised unit of a pipeline.
// Start is called at most once; Stop is idempotent; nodes are never restarted.
type Node interface {
	Start(ctx context.Context) error
	Status() Status
	// Stop terminates the node. final is the pipeline's aggregate status and
	// lets nodes wait politely for a clean finish.
	Stop(final Status)
}

// Statuses collects the current status of every node.
func Statuses(nodes []Node) []Status {
	out := make([]Status, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Status())
	}
	return out
}
