package http

import "github.com/prometheus/client_golang/prometheus"

// Metrics for bot API connections.
type Metrics struct {
	apiRequestsTotal   *prometheus.CounterVec
	apiRequestsErrors  *prometheus.CounterVec
	apiRequestDuration *prometheus.HistogramVec
	apiFloodWait       *prometheus.GaugeVec
}

// NewMetrics creates a new API metrics instance.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		apiRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Bot API requests issued during probes",
		}, []string{"service", "operation"}),

		apiRequestsErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_errors_total",
			Help:      "Bot API requests that failed, by error type",
		}, []string{"service", "operation", "error_type"}),

		apiRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Bot API request durations in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"service", "operation"}),

		apiFloodWait: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "flood_wait_seconds",
			Help:      "Latest Retry-After value reported by the bot API",
		}, []string{"service"}),
	}

	prometheus.MustRegister(
		m.apiRequestsTotal,
		m.apiRequestsErrors,
		m.apiRequestDuration,
		m.apiFloodWait,
	)

	return m
}
