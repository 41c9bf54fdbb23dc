package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vitalcart/storefront-backend/pkg/logger"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	defaultParkedAttempts  = 5
)

type outboxPurger interface {
	PurgeSettled(ctx context.Context, cutoff time.Time, parkedAttempts int) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger *logger.Logger
	Outbox outboxPurger
	// Retention is how long delivered and parked events are kept for replay and audit.
	Retention time.Duration
	// ParkedAttempts must match the publisher's max attempts.
	ParkedAttempts int
}

// NewOutboxRetentionJob purges outbox events that the publisher is finished with.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:           params.Logger,
		outbox:         params.Outbox,
		retention:      params.Retention,
		parkedAttempts: params.ParkedAttempts,
		now:            time.Now,
	}
	if job.retention <= 0 {
		job.retention = defaultOutboxRetention
	}
	if job.parkedAttempts <= 0 {
		job.parkedAttempts = defaultParkedAttempts
	}
	return job, nil
}

type outboxRetentionJob struct {
	logg           *logger.Logger
	outbox         outboxPurger
	retention      time.Duration
	parkedAttempts int
	now            func() time.Time
	purged         int64
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Affected() int64 { return j.purged }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	j.purged = 0
	cutoff := j.now().UTC().Add(-j.retention)
	rows, err := j.outbox.PurgeSettled(ctx, cutoff, j.parkedAttempts)
	if err != nil {
		return fmt.Errorf("purge outbox before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	j.purged = rows
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":          cutoff,
		"retention_hours": int(j.retention.Hours()),
		"rows_purged":     rows,
	}), "outbox retention complete")
	return nil
}
