package probe

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	probesTotal   *prometheus.CounterVec
	probeDuration *prometheus.HistogramVec
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		probesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "probe",
			Name:      "runs_total",
			Help:      "Total number of probes executed",
		}, []string{"channel", "status"}),

		probeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "probe",
			Name:      "duration_seconds",
			Help:      "Time taken to execute probes",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"channel"}),
	}

	prometheus.MustRegister(
		m.probesTotal,
		m.probeDuration,
	)

	return m
}

// ObserveProbe records one finished probe.
func (m *Metrics) ObserveProbe(channel, status string, seconds float64) {
	m.probesTotal.WithLabelValues(channel, status).Inc()
	m.probeDuration.WithLabelValues(channel).Observe(seconds)
}
