package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/vitalcart/storefront-backend/pkg/logger"
)

type sessionExpirer interface {
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

type SessionExpiryJobParams struct {
	Logger   *logger.Logger
	Sessions sessionExpirer
}

// NewSessionExpiryJob flips abandoned checkout sessions to expired so their
// tokens stop resolving and payment starts are refused.
func NewSessionExpiryJob(params SessionExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("session repository required")
	}
	return &sessionExpiryJob{
		logg:     params.Logger,
		sessions: params.Sessions,
		now:      time.Now,
	}, nil
}

type sessionExpiryJob struct {
	logg     *logger.Logger
	sessions sessionExpirer
	now      func() time.Time
	expired  int64
}

func (j *sessionExpiryJob) Name() string { return "session-expiry" }

func (j *sessionExpiryJob) Affected() int64 { return j.expired }

func (j *sessionExpiryJob) Run(ctx context.Context) error {
	j.expired = 0
	now := j.now().UTC()
	rows, err := j.sessions.ExpireStale(ctx, now)
	if err != nil {
		return fmt.Errorf("expire checkout sessions: %w", err)
	}
	j.expired = rows
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       now,
		"rows_expired": rows,
	}), "checkout session expiry complete")
	return nil
}
