// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProxyRequestsTotal counts proxy responses by method and status code.
	ProxyRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamer_proxy_requests_total",
		Help: "Upload proxy requests by method and response code",
	}, []string{"method", "code"})

	// ProxySuppressedTotal counts PUTs discarded by the duplicate-write window.
	ProxySuppressedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamer_proxy_suppressed_total",
		Help: "PUT requests discarded because the path was already written in the current window",
	})

	// UploadPoolBusy is the number of workers currently handed out.
	UploadPoolBusy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streamer_upload_pool_busy",
		Help: "Upload workers currently checked out",
	})

	// UploadPoolAcquireSeconds tracks how long callers waited for a worker.
	UploadPoolAcquireSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "streamer_upload_pool_acquire_seconds",
		Help:    "Time spent waiting for a free upload worker",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10), // 100us to ~26s
	})

	// UploadErrorsTotal counts failed uploader operations by message kind.
	UploadErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamer_upload_errors_total",
		Help: "Failed uploader operations by operation",
	}, []string{"op"})
)

// ObserveProxyRequest records one completed proxy request.
func ObserveProxyRequest(method string, code int) {
	ProxyRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

// IncProxySuppressed records a rate-limited PUT.
func IncProxySuppressed() {
	ProxySuppressedTotal.Inc()
}

// ObservePoolAcquire records a successful worker checkout.
func ObservePoolAcquire(wait time.Duration) {
	UploadPoolAcquireSeconds.Observe(wait.Seconds())
	UploadPoolBusy.Inc()
}

// ObservePoolRelease records a worker being returned.
func ObservePoolRelease() {
	UploadPoolBusy.Dec()
}

// IncUploadError records an uploader failure for op.
func IncUploadError(op string) {
	UploadErrorsTotal.WithLabelValues(op).Inc()
}
