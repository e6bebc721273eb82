package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"NewsOnboarding/internal/domain"
	"NewsOnboarding/internal/metrics"
	"NewsOnboarding/internal/ports"
)

// RecorderDeps wires the adapters used to record decisions.
type RecorderDeps struct {
	Store   ports.Store
	Clock   ports.Clock
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Recorder applies a user's decision to one assignment and fans out to
// interest scoring and completion detection in the same transaction.
type Recorder struct {
	store      ports.Store
	clock      ports.Clock
	metrics    *metrics.Metrics
	logger     *slog.Logger
	completion CompletionDetector
}

// NewRecorder constructs the response recorder.
func NewRecorder(deps RecorderDeps) *Recorder {
	return &Recorder{
		store:   deps.Store,
		clock:   deps.Clock,
		metrics: deps.Metrics,
		logger:  deps.Logger,
	}
}

// Record moves a pending assignment to decision. Resubmitting the stored decision
// returns the record unchanged and fires no side effects; any other change to a
// decided assignment is rejected with domain.ErrValidation.
func (r *Recorder) Record(ctx context.Context, userID, assignmentID string, decision domain.AssignmentStatus) (domain.Assignment, error) {
	if !decision.Terminal() {
		return domain.Assignment{}, fmt.Errorf("decision %q: %w", decision, domain.ErrValidation)
	}
	if userID == "" || assignmentID == "" {
		return domain.Assignment{}, fmt.Errorf("user and assignment ids are required: %w", domain.ErrValidation)
	}

	now := r.clock.Now()
	var (
		result    domain.Assignment
		duplicate bool
		completed bool
	)

	err := r.store.InTx(ctx, func(tx ports.Tx) error {
		// Held until commit so the last two decisions cannot both count the other as pending.
		if err := tx.LockUser(ctx, userID); err != nil {
			return err
		}
		current, err := tx.GetAssignment(ctx, assignmentID)
		if err != nil {
			return err
		}
		if current.UserID != userID {
			return fmt.Errorf("assignment %s: %w", assignmentID, domain.ErrForbidden)
		}

		ok, err := tx.TransitionAssignment(ctx, assignmentID, domain.StatusPending, decision, now)
		if err != nil {
			return err
		}
		if !ok {
			// Status was not pending at write time; re-read what won.
			latest, err := tx.GetAssignment(ctx, assignmentID)
			if err != nil {
				return err
			}
			if latest.Status == decision {
				result, duplicate = latest, true
				return nil
			}
			return fmt.Errorf("assignment %s already %s: %w", assignmentID, latest.Status, domain.ErrValidation)
		}

		if delta := domain.InterestDelta(decision); delta != 0 && current.Topic != "" {
			if err := tx.IncrementInterest(ctx, userID, current.Topic, delta, now); err != nil {
				return err
			}
		}

		completed, err = r.completion.Evaluate(ctx, tx, userID, now)
		if err != nil {
			return err
		}

		result = current
		result.Status = decision
		result.DecidedAt = now
		return nil
	})
	if err != nil {
		return domain.Assignment{}, err
	}

	r.metrics.Response(string(decision), duplicate)
	if completed {
		r.metrics.OnboardingCompleted()
	}
	if r.logger != nil {
		r.logger.Debug("response recorded", "user_id", userID, "assignment_id", assignmentID,
			"decision", decision, "duplicate", duplicate, "completed", completed)
	}
	return result, nil
}
