// Package metrics provides Prometheus metrics for the dispatch pipeline and
// HTTP layer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TasksSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_tasks_submitted_total",
			Help: "Total number of tasks accepted for dispatch",
		},
		[]string{"mode"},
	)
	TasksCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_tasks_completed_total",
			Help: "Total number of tasks that completed successfully",
		},
		[]string{"mode"},
	)
	TasksFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_tasks_failed_total",
			Help: "Total number of tasks that failed",
		},
		[]string{"mode"},
	)
	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nexus_dispatch_duration_seconds",
			Help:    "Agent dispatch duration in seconds",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"mode", "status"},
	)
	TasksInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nexus_tasks_in_flight",
			Help: "Current number of tasks executing",
		},
	)
	ObserverConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nexus_observer_connections",
			Help: "Current number of connected WebSocket observers",
		},
	)
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nexus_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

func RecordTaskSubmitted(mode string) {
	TasksSubmitted.WithLabelValues(mode).Inc()
	TasksInFlight.Inc()
}

func RecordTaskCompleted(mode string, duration time.Duration) {
	TasksCompleted.WithLabelValues(mode).Inc()
	DispatchDuration.WithLabelValues(mode, "completed").Observe(duration.Seconds())
	TasksInFlight.Dec()
}

func RecordTaskFailed(mode string, duration time.Duration) {
	TasksFailed.WithLabelValues(mode).Inc()
	DispatchDuration.WithLabelValues(mode, "failed").Observe(duration.Seconds())
	TasksInFlight.Dec()
}

func RecordObserverConnected() {
	ObserverConnections.Inc()
}

func RecordObserverDisconnected() {
	ObserverConnections.Dec()
}

func RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
