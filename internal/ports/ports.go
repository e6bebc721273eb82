package ports

import (
	"context"
	"time"

	"NewsOnboarding/internal/domain"
)

// CandidateSource pulls candidate items for a set of topics from upstream providers.
// A call is a single attempt; callers bound it with a context deadline.
type CandidateSource interface {
	Fetch(ctx context.Context, topics []string, limit int) ([]domain.CandidateItem, error)
}

// Clock supplies the current time and is swapped for a fixed clock in tests.
type Clock interface {
	Now() time.Time
}

// Random drives topic selection and assignment shuffling.
type Random interface {
	Shuffle(n int, swap func(i, j int))
}

// BatchStore persists candidate items and the batches that group them.
type BatchStore interface {
	// ActiveBatch returns the most recently generated batch unexpired at now, or nil.
	ActiveBatch(ctx context.Context, now time.Time) (*domain.Batch, error)
	// LatestBatch returns the most recently generated batch regardless of expiry, or nil.
	LatestBatch(ctx context.Context) (*domain.Batch, error)
	// CreateBatch upserts items by URL and stores the batch with its membership atomically.
	CreateBatch(ctx context.Context, batch domain.Batch) (domain.Batch, error)
}

// AssignmentStore creates and lists per-user assignments.
type AssignmentStore interface {
	// ListAssignments returns the user's assignments oldest first; an empty batchID spans all batches.
	ListAssignments(ctx context.Context, userID, batchID string) ([]domain.Assignment, error)
	// CreateAssignments inserts pending assignments, skipping (user, batch, item) duplicates.
	CreateAssignments(ctx context.Context, assignments []domain.Assignment) (int, error)
}

// Store is the persistent store behind the onboarding use cases.
type Store interface {
	BatchStore
	AssignmentStore
	OnboardingState(ctx context.Context, userID string) (domain.OnboardingState, error)
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx groups the writes a recorded decision performs so they commit together.
type Tx interface {
	// LockUser serializes decisions for one user until the transaction ends.
	LockUser(ctx context.Context, userID string) error
	GetAssignment(ctx context.Context, assignmentID string) (domain.Assignment, error)
	// TransitionAssignment moves an assignment from one status to another and
	// reports false when the stored status no longer matches from.
	TransitionAssignment(ctx context.Context, assignmentID string, from, to domain.AssignmentStatus, at time.Time) (bool, error)
	IncrementInterest(ctx context.Context, userID, topic string, delta int, at time.Time) error
	CountAssignments(ctx context.Context, userID string) (total, pending int, err error)
	MarkOnboardingComplete(ctx context.Context, userID string, at time.Time) error
}

// Scheduler controls when batch refreshes execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
