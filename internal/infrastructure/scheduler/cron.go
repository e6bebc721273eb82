package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"NewsOnboarding/internal/ports"
)

// CronScheduler runs a job on a standard five-field cron expression.
// Overlapping runs are skipped rather than queued.
type CronScheduler struct {
	spec     string
	location *time.Location
	logger   cron.Logger

	mu    sync.Mutex
	cron  *cron.Cron
	entry cron.EntryID
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler configured via cron expression string.
// A nil location means UTC and a nil logger discards cron's own output.
func NewCronScheduler(spec string, loc *time.Location, logger cron.Logger) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = cron.DiscardLogger
	}
	return &CronScheduler{spec: spec, location: loc, logger: logger}
}

// Start registers job and starts ticking. The schedule stops when ctx is done.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return fmt.Errorf("scheduler: already started")
	}

	sched := cron.New(
		cron.WithLocation(c.location),
		cron.WithLogger(c.logger),
		cron.WithChain(cron.Recover(c.logger), cron.SkipIfStillRunning(c.logger)),
	)
	entry, err := sched.AddFunc(c.spec, func() {
		job(time.Now().In(c.location))
	})
	if err != nil {
		return fmt.Errorf("scheduler: parse %q: %w", c.spec, err)
	}

	c.cron = sched
	c.entry = entry
	sched.Start()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		if c.cron == sched {
			c.cron = nil
			c.entry = 0
		}
		c.mu.Unlock()
		sched.Stop()
	}()
	return nil
}

// Next reports when the job fires next, or the zero time when not started.
func (c *CronScheduler) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron == nil {
		return time.Time{}
	}
	entry := c.cron.Entry(c.entry)
	if entry.Schedule == nil {
		return time.Time{}
	}
	return entry.Schedule.Next(time.Now().In(c.location))
}

// Stop halts the schedule and waits for a running job, bounded by ctx.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	sched := c.cron
	c.cron = nil
	c.entry = 0
	c.mu.Unlock()
	if sched == nil {
		return nil
	}

	select {
	case <-sched.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
