package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CronJobs records outcomes of the maintenance jobs run by the cron worker.
type CronJobs struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
	affected *prometheus.CounterVec
}

func NewCronJobs(reg prometheus.Registerer) *CronJobs {
	if reg == nil {
		return &CronJobs{}
	}
	c := &CronJobs{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cron_job_duration_seconds",
			Help:    "Duration of cron jobs in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cron_job_runs_total",
			Help: "Cron job executions by result.",
		}, []string{"job", "result"}),
		affected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cron_job_rows_total",
			Help: "Rows changed by cron jobs.",
		}, []string{"job"}),
	}
	reg.MustRegister(c.duration, c.runs, c.affected)
	return c
}

func (c *CronJobs) ObserveDuration(job string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

func (c *CronJobs) IncSuccess(job string) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(normalizeLabel(job), "success").Inc()
}

func (c *CronJobs) IncFailure(job string) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(normalizeLabel(job), "failure").Inc()
}

// AddRows counts rows a job expired or deleted.
func (c *CronJobs) AddRows(job string, rows int64) {
	if c == nil || c.affected == nil || rows <= 0 {
		return
	}
	c.affected.WithLabelValues(normalizeLabel(job)).Add(float64(rows))
}
