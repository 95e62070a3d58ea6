package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsSubmittedTotal counts accepted submissions by template.
	JobsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filler_jobs_submitted_total",
			Help: "Total number of accepted document jobs",
		},
		[]string{"template"},
	)

	// RendersTotal counts finished render executions by template and outcome.
	RendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filler_renders_total",
			Help: "Total number of render executions",
		},
		[]string{"template", "status"},
	)

	// RenderDuration tracks the duration of render executions in seconds.
	RenderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filler_render_duration_seconds",
			Help:    "Duration of render executions in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
		[]string{"template"},
	)

	// WorkersActive tracks the number of currently busy workers.
	WorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "filler_workers_active",
			Help: "Number of currently active worker goroutines",
		},
	)

	// PublishFailuresTotal counts failed enqueue attempts at submission time.
	PublishFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filler_publish_failures_total",
			Help: "Total number of failed task publishes",
		},
	)

	// RetriesTotal counts in-task automatic render retries.
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filler_render_retries_total",
			Help: "Total number of automatic render retries",
		},
		[]string{"template"},
	)
)
