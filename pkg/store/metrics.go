package store

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	operationsTotal    *prometheus.CounterVec
	operationErrors    *prometheus.CounterVec
	operationDuration  *prometheus.HistogramVec
	objectsTotal       *prometheus.GaugeVec
	objectSizeBytes    *prometheus.HistogramVec
	artifactsPersisted *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "S3 calls made against the artifact bucket",
		}, []string{"operation", "repository"}),

		operationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_errors_total",
			Help:      "S3 calls that failed, by classified error type",
		}, []string{"operation", "repository", "error_type"}),

		// Screenshot uploads over slow links can run long, so the top
		// bucket sits well above a typical PUT.
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Time spent on S3 calls",
			Buckets:   []float64{0.05, 0.25, 1, 5, 15},
		}, []string{"operation", "repository"}),

		objectsTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "objects_total",
			Help:      "Artifacts currently listed in the bucket",
		}, []string{"repository"}),

		objectSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "object_size_bytes",
			Help:      "Artifact payload sizes",
			Buckets:   []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024},
		}, []string{"repository"}),

		artifactsPersisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "artifacts_persisted_total",
			Help:      "Session artifacts uploaded, by artifact kind",
		}, []string{"kind"}),
	}

	prometheus.MustRegister(
		m.operationsTotal,
		m.operationErrors,
		m.operationDuration,
		m.objectsTotal,
		m.objectSizeBytes,
		m.artifactsPersisted,
	)

	return m
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "request_failed"
	}
}
