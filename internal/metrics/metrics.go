package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medrefill_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "medrefill_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	reminderRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medrefill_reminder_runs_total",
		Help: "Count of reminder dispatch runs by mode and result",
	}, []string{"mode", "result"})

	reminderRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "medrefill_reminder_run_duration_seconds",
		Help:    "Duration of reminder dispatch runs",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	reminderDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medrefill_reminder_deliveries_total",
		Help: "Count of per-user reminder deliveries by mode, variant and result",
	}, []string{"mode", "variant", "result"})
)

// ObserveHTTPRequest records an HTTP request metric.
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveReminderRun records a finished dispatch run. result is "ok" or "error".
func ObserveReminderRun(mode, result string, duration time.Duration) {
	reminderRuns.WithLabelValues(mode, result).Inc()
	reminderRunDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// ObserveDelivery records one user's reminder attempt.
func ObserveDelivery(mode, variant string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	reminderDeliveries.WithLabelValues(mode, variant, result).Inc()
}
