package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCronJobsRecordsRunsAndRows(t *testing.T) {
	reg := prometheus.NewRegistry()
	jobs := NewCronJobs(reg)
	jobs.ObserveDuration("session-expiry", 2*time.Second)
	jobs.IncSuccess("session-expiry")
	jobs.IncFailure("outbox-retention")
	jobs.AddRows("session-expiry", 4)
	jobs.AddRows("session-expiry", 0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "cron_job_rows_total", "job", "session-expiry"); err != nil || got != 4 {
		t.Fatalf("expected rows=4, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "cron_job_runs_total", "result", "failure"); err != nil || got != 1 {
		t.Fatalf("expected one failure, got %f err=%v", got, err)
	}
	if got, err := fetchHistogramSum(mfs, "cron_job_duration_seconds", "job", "session-expiry"); err != nil || got != 2 {
		t.Fatalf("expected duration sum 2, got %f err=%v", got, err)
	}
}

func TestNilCronJobsIsNoop(t *testing.T) {
	var jobs *CronJobs
	jobs.IncSuccess("x")
	jobs.AddRows("x", 3)
	NewCronJobs(nil).IncFailure("x")
}
