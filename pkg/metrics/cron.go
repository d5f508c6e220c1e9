package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// CronJobMetrics tracks the catalog maintenance worker.
type CronJobMetrics struct {
	duration    *prometheus.HistogramVec
	runs        *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
	skipped     prometheus.Counter
}

// NewCronJobMetrics registers the cron metrics on reg. A nil reg yields a
// recorder whose methods are no-ops.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return nil
	}
	m := &CronJobMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "catalog_cron_job_duration_seconds",
			Help:    "Wall time of catalog maintenance jobs.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"job"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_cron_job_runs_total",
			Help: "Catalog maintenance job runs by outcome.",
		}, []string{"job", "outcome"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "catalog_cron_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run per job.",
		}, []string{"job"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_cron_cycles_skipped_total",
			Help: "Cycles skipped because another worker held the lock.",
		}),
	}
	reg.MustRegister(m.duration, m.runs, m.lastSuccess, m.skipped)
	return m
}

// ObserveRun records one job execution. A nil err counts as success.
func (c *CronJobMetrics) ObserveRun(job string, d time.Duration, err error) {
	if c == nil {
		return
	}
	job = normalizeLabel(job)
	c.duration.WithLabelValues(job).Observe(d.Seconds())
	if err != nil {
		c.runs.WithLabelValues(job, OutcomeFailure).Inc()
		return
	}
	c.runs.WithLabelValues(job, OutcomeSuccess).Inc()
	c.lastSuccess.WithLabelValues(job).SetToCurrentTime()
}

func (c *CronJobMetrics) IncSkippedCycle() {
	if c == nil {
		return
	}
	c.skipped.Inc()
}

func normalizeLabel(job string) string {
	if job == "" {
		return "unknown"
	}
	return job
}
