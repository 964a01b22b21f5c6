// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PeriodConcatTotal counts manifest merges by format and result.
var PeriodConcatTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "streamer_periodconcat_total",
	Help: "Multi-period manifest merges by format and result",
}, []string{"format", "result"})

// RecordPeriodConcat records the outcome of one merge.
func RecordPeriodConcat(format string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	PeriodConcatTotal.WithLabelValues(format, result).Inc()
}
