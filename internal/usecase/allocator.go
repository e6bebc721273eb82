package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"NewsOnboarding/internal/domain"
	"NewsOnboarding/internal/metrics"
	"NewsOnboarding/internal/ports"
)

// AllocatorDeps wires the adapters used for assignment allocation.
type AllocatorDeps struct {
	Store   ports.AssignmentStore
	Clock   ports.Clock
	Random  ports.Random
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Allocator tops up a user's assignments within one batch without repeating items.
type Allocator struct {
	store   ports.AssignmentStore
	clock   ports.Clock
	random  ports.Random
	metrics *metrics.Metrics
	logger  *slog.Logger
	users   keyedMutex
}

// NewAllocator constructs the assignment allocator.
func NewAllocator(deps AllocatorDeps) *Allocator {
	return &Allocator{
		store:   deps.Store,
		clock:   deps.Clock,
		random:  deps.Random,
		metrics: deps.Metrics,
		logger:  deps.Logger,
	}
}

// Assign guarantees up to desired assignments for userID in batch and returns them oldest first.
// A pool smaller than the shortfall yields fewer assignments without error.
// Calls for the same user are serialized here; the store's unique key covers other processes.
func (a *Allocator) Assign(ctx context.Context, userID string, batch domain.Batch, desired int) ([]domain.Assignment, error) {
	if userID == "" {
		return nil, fmt.Errorf("empty user id: %w", domain.ErrValidation)
	}
	if desired <= 0 {
		return nil, fmt.Errorf("desired count %d: %w", desired, domain.ErrValidation)
	}

	unlock := a.users.lock(userID)
	defer unlock()

	existing, err := a.store.ListAssignments(ctx, userID, batch.ID)
	if err != nil {
		return nil, fmt.Errorf("load assignments for %s: %w", userID, err)
	}
	if len(existing) >= desired {
		return existing, nil
	}

	assigned := make(map[string]struct{}, len(existing))
	for _, as := range existing {
		assigned[as.ItemID] = struct{}{}
	}
	pool := make([]domain.CandidateItem, 0, len(batch.Items))
	for _, item := range batch.Items {
		if _, ok := assigned[item.ID]; !ok {
			pool = append(pool, item)
		}
	}
	if len(pool) == 0 {
		return existing, nil
	}

	a.random.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	shortfall := desired - len(existing)
	if len(pool) > shortfall {
		pool = pool[:shortfall]
	}

	now := a.clock.Now()
	rows := make([]domain.Assignment, 0, len(pool))
	for i, item := range pool {
		rows = append(rows, domain.Assignment{
			UserID:    userID,
			BatchID:   batch.ID,
			ItemID:    item.ID,
			Topic:     normalizeTopic(item.Topic),
			Position:  len(existing) + i,
			Status:    domain.StatusPending,
			CreatedAt: now,
		})
	}

	created, err := a.store.CreateAssignments(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("create assignments for %s: %w", userID, err)
	}
	a.metrics.AssignmentsCreated(created)
	if a.logger != nil {
		a.logger.Debug("assignments topped up", "user_id", userID, "batch_id", batch.ID,
			"existing", len(existing), "created", created, "desired", desired)
	}

	all, err := a.store.ListAssignments(ctx, userID, batch.ID)
	if err != nil {
		return nil, fmt.Errorf("reload assignments for %s: %w", userID, err)
	}
	return all, nil
}
