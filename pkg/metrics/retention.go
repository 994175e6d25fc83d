package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RetentionJobMetrics tracks the scheduled purge jobs of the retention worker.
type RetentionJobMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
	purged   *prometheus.CounterVec
}

func NewRetentionJobMetrics(reg prometheus.Registerer) *RetentionJobMetrics {
	if reg == nil {
		return &RetentionJobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "retention_job_duration_seconds",
		Help:    "Duration of retention jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "retention_job_runs_total",
		Help: "Retention job executions grouped by result.",
	}, []string{"job", "result"})
	purged := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "retention_rows_purged_total",
		Help: "Rows deleted by retention jobs.",
	}, []string{"job"})
	reg.MustRegister(duration, runs, purged)
	return &RetentionJobMetrics{duration: duration, runs: runs, purged: purged}
}

func (m *RetentionJobMetrics) ObserveDuration(job string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncRun counts one execution; result is "ok" or "error".
func (m *RetentionJobMetrics) IncRun(job string, err error) {
	if m == nil || m.runs == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.runs.WithLabelValues(normalizeLabel(job), result).Inc()
}

func (m *RetentionJobMetrics) AddPurged(job string, rows int64) {
	if m == nil || m.purged == nil || rows <= 0 {
		return
	}
	m.purged.WithLabelValues(normalizeLabel(job)).Add(float64(rows))
}
