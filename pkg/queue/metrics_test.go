package queue

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	t.Run("metrics are registered successfully", func(t *testing.T) {
		prometheus.DefaultRegisterer = prometheus.NewRegistry()
		m := NewMetrics("test")
		assert.NotNil(t, m)

		expected := `
# HELP test_queue_length_current Current number of runs in queue
# TYPE test_queue_length_current gauge
test_queue_length_current 0
`
		assert.NoError(t, testutil.CollectAndCompare(m.queueLength, strings.NewReader(expected)))
	})

	t.Run("counter metrics increment correctly", func(t *testing.T) {
		prometheus.DefaultRegisterer = prometheus.NewRegistry()
		m := NewMetrics("test")

		m.queuedTotal.WithLabelValues("smoke", "schedule").Inc()
		assert.Equal(t, float64(1), testutil.ToFloat64(m.queuedTotal.WithLabelValues("smoke", "schedule")))

		m.processedTotal.WithLabelValues("smoke", "schedule", "success").Inc()
		assert.Equal(t, float64(1), testutil.ToFloat64(m.processedTotal.WithLabelValues("smoke", "schedule", "success")))

		m.failuresTotal.WithLabelValues("smoke", "schedule", "worker_error").Inc()
		assert.Equal(t, float64(1), testutil.ToFloat64(m.failuresTotal.WithLabelValues("smoke", "schedule", "worker_error")))

		m.skipsDueToLock.WithLabelValues("smoke", "schedule").Inc()
		assert.Equal(t, float64(1), testutil.ToFloat64(m.skipsDueToLock.WithLabelValues("smoke", "schedule")))
	})

	t.Run("gauge metrics update correctly", func(t *testing.T) {
		prometheus.DefaultRegisterer = prometheus.NewRegistry()
		m := NewMetrics("test")

		m.queueLength.Set(5)
		assert.Equal(t, float64(5), testutil.ToFloat64(m.queueLength))

		m.queueLength.Dec()
		assert.Equal(t, float64(4), testutil.ToFloat64(m.queueLength))

		m.queueLength.Inc()
		assert.Equal(t, float64(5), testutil.ToFloat64(m.queueLength))
	})

	t.Run("histogram metrics record correctly", func(t *testing.T) {
		prometheus.DefaultRegisterer = prometheus.NewRegistry()
		m := NewMetrics("test")

		m.processingTime.WithLabelValues("smoke", "schedule").Observe(1.5)
		m.processingTime.WithLabelValues("smoke", "schedule").Observe(2.5)

		expected := `
# HELP test_queue_run_processing_duration_seconds Time taken to process suite runs
# TYPE test_queue_run_processing_duration_seconds histogram
test_queue_run_processing_duration_seconds_bucket{suite="smoke",trigger="schedule",le="1"} 0
test_queue_run_processing_duration_seconds_bucket{suite="smoke",trigger="schedule",le="5"} 2
test_queue_run_processing_duration_seconds_bucket{suite="smoke",trigger="schedule",le="10"} 2
test_queue_run_processing_duration_seconds_bucket{suite="smoke",trigger="schedule",le="30"} 2
test_queue_run_processing_duration_seconds_bucket{suite="smoke",trigger="schedule",le="60"} 2
test_queue_run_processing_duration_seconds_bucket{suite="smoke",trigger="schedule",le="120"} 2
test_queue_run_processing_duration_seconds_bucket{suite="smoke",trigger="schedule",le="300"} 2
test_queue_run_processing_duration_seconds_bucket{suite="smoke",trigger="schedule",le="+Inf"} 2
test_queue_run_processing_duration_seconds_sum{suite="smoke",trigger="schedule"} 4
test_queue_run_processing_duration_seconds_count{suite="smoke",trigger="schedule"} 2
`
		assert.NoError(t, testutil.CollectAndCompare(m.processingTime, strings.NewReader(expected)))
	})
}
