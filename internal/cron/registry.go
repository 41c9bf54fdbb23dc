package cron

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Job is one sweep executed by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type schedule struct {
	job     Job
	every   time.Duration
	lastRun time.Time
}

// Registry holds jobs and how often each should run. A job with no period
// runs on every worker tick.
type Registry struct {
	order  []*schedule
	byName map[string]*schedule
}

func NewRegistry() *Registry {
	return &Registry{byName: map[string]*schedule{}}
}

// Add registers job to run at most once per every. Names must be unique.
func (r *Registry) Add(job Job, every time.Duration) error {
	if job == nil {
		return errors.New("job is nil")
	}
	name := job.Name()
	if name == "" {
		return errors.New("job name is required")
	}
	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("job %q already registered", name)
	}
	s := &schedule{job: job, every: every}
	r.order = append(r.order, s)
	r.byName[name] = s
	return nil
}

// Due returns jobs whose period has elapsed at now, in registration order.
func (r *Registry) Due(now time.Time) []Job {
	var due []Job
	for _, s := range r.order {
		if s.lastRun.IsZero() || s.every <= 0 || !now.Before(s.lastRun.Add(s.every)) {
			due = append(due, s.job)
		}
	}
	return due
}

// MarkRan records a successful run so the job waits out its period.
func (r *Registry) MarkRan(name string, at time.Time) {
	if s, ok := r.byName[name]; ok {
		s.lastRun = at
	}
}

// Names lists registered job names in order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.order))
	for _, s := range r.order {
		names = append(names, s.job.Name())
	}
	return names
}
