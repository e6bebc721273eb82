package usecase

import (
	"context"
	"time"

	"NewsOnboarding/internal/ports"
)

// CompletionDetector latches a user's onboarding once nothing is left pending.
type CompletionDetector struct{}

// IsComplete is true iff the user was ever assigned something and nothing is pending.
func IsComplete(total, pending int) bool {
	return total > 0 && pending == 0
}

// Evaluate counts the user's assignments inside tx and sets the latch when complete.
// The latch is never cleared; re-marking a completed user keeps the first timestamp.
func (CompletionDetector) Evaluate(ctx context.Context, tx ports.Tx, userID string, at time.Time) (bool, error) {
	total, pending, err := tx.CountAssignments(ctx, userID)
	if err != nil {
		return false, err
	}
	if !IsComplete(total, pending) {
		return false, nil
	}
	if err := tx.MarkOnboardingComplete(ctx, userID, at); err != nil {
		return false, err
	}
	return true, nil
}
