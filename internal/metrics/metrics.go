// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// metrics.go - Prometheus collectors for the diagram publish pipeline.
//
// Collectors register with the default registry and are served on /metrics in
// streamable HTTP mode.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "onenote"
	subsystem = "diagram"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	PublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "publish_total",
			Help:      "Total number of diagram publish attempts by outcome and the stage that ended them.",
		},
		[]string{"outcome", "stage"},
	)
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each publish pipeline stage.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)
	RenderBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "render_bytes",
			Help:      "Size of encoded diagram images.",
			Buckets:   prometheus.ExponentialBuckets(4096, 2, 10),
		},
	)
)

// ObserveStage records how long a stage took, measured from start.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// RecordPublish counts a finished publish attempt.
func RecordPublish(outcome, stage string) {
	PublishTotal.WithLabelValues(outcome, stage).Inc()
}
