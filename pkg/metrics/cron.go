package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CronJobMetrics tracks run durations and outcomes for scheduled jobs. A nil
// receiver or an unregistered instance is a no-op, so worker code can call it
// unconditionally.
type CronJobMetrics struct {
	durations *prometheus.HistogramVec
	runs      *prometheus.CounterVec
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	m := &CronJobMetrics{
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cron_job_duration_seconds",
			Help:    "Duration of cron job runs in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cron_job_runs_total",
			Help: "Cron job runs partitioned by outcome.",
		}, []string{"job", "outcome"}),
	}
	reg.MustRegister(m.durations, m.runs)
	return m
}

func (m *CronJobMetrics) ObserveDuration(job string, elapsed time.Duration) {
	if m == nil || m.durations == nil {
		return
	}
	m.durations.WithLabelValues(jobLabel(job)).Observe(elapsed.Seconds())
}

func (m *CronJobMetrics) IncSuccess(job string) { m.incRun(job, "success") }
func (m *CronJobMetrics) IncFailure(job string) { m.incRun(job, "failure") }

func (m *CronJobMetrics) incRun(job, outcome string) {
	if m == nil || m.runs == nil {
		return
	}
	m.runs.WithLabelValues(jobLabel(job), outcome).Inc()
}

func jobLabel(job string) string {
	if job == "" {
		return "unknown"
	}
	return job
}
