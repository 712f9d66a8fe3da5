package scheduler

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
# HELP test_scheduler_active_jobs Current number of registered watch jobs
# TYPE test_scheduler_active_jobs gauge
test_scheduler_active_jobs 0
`
		assert.NoError(t, testutil.CollectAndCompare(m.activeJobs, strings.NewReader(expected)))
	})

	t.Run("counter metrics increment correctly", func(t *testing.T) {
		prometheus.DefaultRegisterer = prometheus.NewRegistry()
		m := NewMetrics("test")

		m.jobsTotal.WithLabelValues("@daily").Inc()
		assert.Equal(t, float64(1), testutil.ToFloat64(m.jobsTotal.WithLabelValues("@daily")))

		m.jobExecutions.WithLabelValues("watch-smoke", "@daily").Inc()
		assert.Equal(t, float64(1), testutil.ToFloat64(m.jobExecutions.WithLabelValues("watch-smoke", "@daily")))

		m.jobFailures.WithLabelValues("watch-smoke", "@daily").Inc()
		assert.Equal(t, float64(1), testutil.ToFloat64(m.jobFailures.WithLabelValues("watch-smoke", "@daily")))
	})

	t.Run("gauge metrics update correctly", func(t *testing.T) {
		prometheus.DefaultRegisterer = prometheus.NewRegistry()
		m := NewMetrics("test")

		m.activeJobs.Set(3)
		assert.Equal(t, float64(3), testutil.ToFloat64(m.activeJobs))

		m.activeJobs.Dec()
		assert.Equal(t, float64(2), testutil.ToFloat64(m.activeJobs))

		m.activeJobs.Inc()
		assert.Equal(t, float64(3), testutil.ToFloat64(m.activeJobs))
	})

	t.Run("histogram metrics record correctly", func(t *testing.T) {
		prometheus.DefaultRegisterer = prometheus.NewRegistry()
		m := NewMetrics("test")

		// One quick API-only run, one long UI run.
		m.executionTime.WithLabelValues("watch-smoke").Observe(12.5)
		m.executionTime.WithLabelValues("watch-smoke").Observe(95)

		expected := `
# HELP test_scheduler_job_execution_duration_seconds Time taken to execute a scheduled suite run
# TYPE test_scheduler_job_execution_duration_seconds histogram
test_scheduler_job_execution_duration_seconds_bucket{name="watch-smoke",le="1"} 0
test_scheduler_job_execution_duration_seconds_bucket{name="watch-smoke",le="5"} 0
test_scheduler_job_execution_duration_seconds_bucket{name="watch-smoke",le="15"} 1
test_scheduler_job_execution_duration_seconds_bucket{name="watch-smoke",le="30"} 1
test_scheduler_job_execution_duration_seconds_bucket{name="watch-smoke",le="60"} 1
test_scheduler_job_execution_duration_seconds_bucket{name="watch-smoke",le="120"} 2
test_scheduler_job_execution_duration_seconds_bucket{name="watch-smoke",le="300"} 2
test_scheduler_job_execution_duration_seconds_bucket{name="watch-smoke",le="+Inf"} 2
test_scheduler_job_execution_duration_seconds_sum{name="watch-smoke"} 107.5
test_scheduler_job_execution_duration_seconds_count{name="watch-smoke"} 2
`
		assert.NoError(t, testutil.CollectAndCompare(m.executionTime, strings.NewReader(expected)))
	})

	t.Run("timestamp metrics update correctly", func(t *testing.T) {
		prometheus.DefaultRegisterer = prometheus.NewRegistry()
		m := NewMetrics("test")

		timestamp := float64(1234567890)
		m.lastExecutionTS.WithLabelValues("watch-smoke", "@daily").Set(timestamp)
		assert.Equal(t, timestamp, testutil.ToFloat64(m.lastExecutionTS.WithLabelValues("watch-smoke", "@daily")))
	})
}
