// Package metrics exposes Prometheus instrumentation for the job pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vidproc",
		Name:      "jobs_total",
		Help:      "Jobs handled, by outcome.",
	}, []string{"outcome"})

	JobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vidproc",
		Name:      "jobs_in_flight",
		Help:      "Jobs currently inside the pipeline.",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vidproc",
		Name:      "stage_duration_seconds",
		Help:      "Wall clock time per pipeline stage.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
	}, []string{"stage", "result"})

	CleanupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vidproc",
		Name:      "cleanup_failures_total",
		Help:      "Scratch deletions that failed for a reason other than the file being absent.",
	})

	QueueMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vidproc",
		Name:      "queue_messages_total",
		Help:      "Messages read from the job queue, by decode status.",
	}, []string{"status"})
)

// ObserveStage records how long a stage took.
func ObserveStage(stage string, started time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	StageDuration.WithLabelValues(stage, result).Observe(time.Since(started).Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
