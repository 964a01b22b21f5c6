// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProcTerminateTotal counts signals delivered while stopping node process groups.
	ProcTerminateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamer_proc_terminate_total",
		Help: "Signals sent to process groups during node shutdown",
	}, []string{"signal", "result"})

	// ProcWaitTotal counts how reaped node processes ended.
	ProcWaitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamer_proc_wait_total",
		Help: "Reaped node processes by outcome",
	}, []string{"result"})

	// NodeStatusTotal counts terminal node statuses by node kind.
	NodeStatusTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamer_node_status_total",
		Help: "Terminal node statuses by node kind",
	}, []string{"kind", "status"})
)

// IncProcTerminate records a signal delivery attempt.
func IncProcTerminate(signal, result string) {
	ProcTerminateTotal.WithLabelValues(signal, result).Inc()
}

// IncProcWait records the outcome of reaping a process.
func IncProcWait(result string) {
	ProcWaitTotal.WithLabelValues(result).Inc()
}

// IncNodeStatus records the terminal status of a node.
func IncNodeStatus(kind, status string) {
	if kind == "" {
		kind = "unknown"
	}
	NodeStatusTotal.WithLabelValues(kind, status).Inc()
}
