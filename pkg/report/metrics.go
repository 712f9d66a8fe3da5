package report

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	generatedTotal *prometheus.CounterVec
	artifactBytes  *prometheus.HistogramVec
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		generatedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "generated_total",
			Help:      "Total number of report artifacts written",
		}, []string{"format"}),

		artifactBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "artifact_bytes",
			Help:      "Size of written report artifacts",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		}, []string{"format"}),
	}

	prometheus.MustRegister(
		m.generatedTotal,
		m.artifactBytes,
	)

	return m
}

// ObserveArtifact records one written artifact.
func (m *Metrics) ObserveArtifact(format string, size int) {
	m.generatedTotal.WithLabelValues(format).Inc()
	m.artifactBytes.WithLabelValues(format).Observe(float64(size))
}
