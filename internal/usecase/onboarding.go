package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"NewsOnboarding/internal/domain"
	"NewsOnboarding/internal/ports"
)

// OnboardingDeps wires the onboarding components behind the exposed operations.
type OnboardingDeps struct {
	Store           ports.Store
	Batches         *BatchManager
	Allocator       *Allocator
	Recorder        *Recorder
	Clock           ports.Clock
	Logger          *slog.Logger
	AssignmentCount int
}

// Onboarding is the entry point consumed by the API layer and the refresh trigger.
type Onboarding struct {
	store           ports.Store
	batches         *BatchManager
	allocator       *Allocator
	recorder        *Recorder
	clock           ports.Clock
	logger          *slog.Logger
	assignmentCount int
}

// NewOnboarding constructs the onboarding facade.
func NewOnboarding(deps OnboardingDeps) *Onboarding {
	count := deps.AssignmentCount
	if count <= 0 {
		count = domain.DefaultAssignmentCount
	}
	return &Onboarding{
		store:           deps.Store,
		batches:         deps.Batches,
		allocator:       deps.Allocator,
		recorder:        deps.Recorder,
		clock:           deps.Clock,
		logger:          deps.Logger,
		assignmentCount: count,
	}
}

// GetAssignments returns the user's assignments in the active batch, generating the batch
// on demand. When generation fails for lack of candidates the most recent batch is served.
// A non-positive desired count uses the configured default.
func (o *Onboarding) GetAssignments(ctx context.Context, userID string, desired int) ([]domain.Assignment, error) {
	if desired <= 0 {
		desired = o.assignmentCount
	}

	batch, err := o.batches.EnsureActiveBatch(ctx)
	if errors.Is(err, domain.ErrGeneration) {
		latest, latestErr := o.batches.LatestBatch(ctx)
		if latestErr != nil {
			return nil, latestErr
		}
		if latest == nil {
			return nil, err
		}
		o.warn("serving most recent batch after generation failure", "batch_id", latest.ID,
			"expires_at", latest.ExpiresAt, "expired", !latest.ActiveAt(o.clock.Now()), "error", err)
		batch = *latest
	} else if err != nil {
		return nil, err
	}

	return o.allocator.Assign(ctx, userID, batch, desired)
}

// SubmitResponse records a decision ("accepted" or "rejected") on one of the user's assignments.
func (o *Onboarding) SubmitResponse(ctx context.Context, userID, assignmentID, decision string) (domain.Assignment, error) {
	status, err := domain.ParseDecision(decision)
	if err != nil {
		return domain.Assignment{}, err
	}
	return o.recorder.Record(ctx, userID, assignmentID, status)
}

// RunBatchRefresh is invoked by the periodic trigger. It reuses an active batch unless forced.
func (o *Onboarding) RunBatchRefresh(ctx context.Context, force bool) (GenerateResult, error) {
	res, err := o.batches.GenerateBatch(ctx, force)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("batch refresh: %w", err)
	}

	msg := "reused active batch"
	if res.Created {
		msg = "created new batch"
	}
	o.info(msg, "batch_id", res.Batch.ID, "expires_at", res.Batch.ExpiresAt, "items", len(res.Batch.Items))
	return res, nil
}

// ListAssignments returns every assignment the user holds across batches, oldest first.
func (o *Onboarding) ListAssignments(ctx context.Context, userID string) ([]domain.Assignment, error) {
	if userID == "" {
		return nil, fmt.Errorf("empty user id: %w", domain.ErrValidation)
	}
	list, err := o.store.ListAssignments(ctx, userID, "")
	if err != nil {
		return nil, fmt.Errorf("list assignments for %s: %w", userID, err)
	}
	return list, nil
}

// OnboardingState reads the user's completion latch.
func (o *Onboarding) OnboardingState(ctx context.Context, userID string) (domain.OnboardingState, error) {
	if userID == "" {
		return domain.OnboardingState{}, fmt.Errorf("empty user id: %w", domain.ErrValidation)
	}
	return o.store.OnboardingState(ctx, userID)
}

// CompleteOnboarding sets the latch explicitly, e.g. when the user skips the review.
func (o *Onboarding) CompleteOnboarding(ctx context.Context, userID string) (domain.OnboardingState, error) {
	if userID == "" {
		return domain.OnboardingState{}, fmt.Errorf("empty user id: %w", domain.ErrValidation)
	}
	now := o.clock.Now()
	err := o.store.InTx(ctx, func(tx ports.Tx) error {
		return tx.MarkOnboardingComplete(ctx, userID, now)
	})
	if err != nil {
		return domain.OnboardingState{}, fmt.Errorf("complete onboarding for %s: %w", userID, err)
	}
	return o.store.OnboardingState(ctx, userID)
}

func (o *Onboarding) info(msg string, args ...interface{}) {
	if o.logger != nil {
		o.logger.Info(msg, args...)
	}
}

func (o *Onboarding) warn(msg string, args ...interface{}) {
	if o.logger != nil {
		o.logger.Warn(msg, args...)
	}
}
