package scheduler

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	jobsTotal       *prometheus.CounterVec
	jobExecutions   *prometheus.CounterVec
	jobFailures     *prometheus.CounterVec
	activeJobs      prometheus.Gauge
	executionTime   *prometheus.HistogramVec
	lastExecutionTS *prometheus.GaugeVec
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "jobs_total",
			Help:      "Total number of watch jobs registered",
		}, []string{"schedule"}),

		jobExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_executions_total",
			Help:      "Total number of scheduled suite runs",
		}, []string{"name", "schedule"}),

		jobFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_failures_total",
			Help:      "Total number of scheduled suite runs that returned an error",
		}, []string{"name", "schedule"}),

		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "active_jobs",
			Help:      "Current number of registered watch jobs",
		}),

		// Suite runs are dominated by per-probe response waits, so the
		// buckets skew much longer than a typical request histogram.
		executionTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_execution_duration_seconds",
			Help:      "Time taken to execute a scheduled suite run",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
		}, []string{"name"}),

		lastExecutionTS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_last_execution_timestamp",
			Help:      "Timestamp of the last run for each watch job",
		}, []string{"name", "schedule"}),
	}

	prometheus.MustRegister(
		m.jobsTotal,
		m.jobExecutions,
		m.jobFailures,
		m.activeJobs,
		m.executionTime,
		m.lastExecutionTS,
	)

	return m
}
