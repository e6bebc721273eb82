package usecase

import (
	"context"
	"log/slog"
	"time"

	"NewsOnboarding/internal/ports"
)

// Scheduler wires the cron-like driver with the batch refresh use case.
type Scheduler struct {
	driver     ports.Scheduler
	onboarding *Onboarding
	logger     *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring refreshes.
func NewScheduler(driver ports.Scheduler, onboarding *Onboarding, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, onboarding: onboarding, logger: logger}
}

// Start registers the non-forced refresh with the provided scheduler.
// A failed refresh is logged and retried on the next tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.onboarding == nil {
		return nil
	}

	job := func(trigger time.Time) {
		if _, err := s.onboarding.RunBatchRefresh(ctx, false); err != nil && s.logger != nil {
			s.logger.Error("scheduled batch refresh failed", "trigger", trigger, "error", err)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
