package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"NewsOnboarding/internal/domain"
	"NewsOnboarding/internal/ports"
)

type sqlTx struct {
	tx    *sql.Tx
	store *SQLStore
}

var _ ports.Tx = (*sqlTx)(nil)

// LockUser takes a transaction-scoped advisory lock on Postgres. SQLite needs none
// because its single connection already runs one transaction at a time.
func (t *sqlTx) LockUser(ctx context.Context, userID string) error {
	query, args, err := t.store.userLockQuery(userID)
	if err != nil {
		return fmt.Errorf("storage: build user lock: %w", err)
	}
	if query == "" {
		return nil
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("storage: lock user %s: %w", userID, err)
	}
	return nil
}

func (s *SQLStore) userLockQuery(userID string) (string, []any, error) {
	if s.driver != DriverPostgres {
		return "", nil, nil
	}
	return s.sb.Select().
		Column(squirrel.Expr("pg_advisory_xact_lock(hashtext(?))", userID)).
		ToSql()
}

// GetAssignment loads one assignment with its item or fails with domain.ErrNotFound.
func (t *sqlTx) GetAssignment(ctx context.Context, assignmentID string) (domain.Assignment, error) {
	found, err := t.store.selectAssignments(ctx, t.tx, squirrel.Eq{"a.id": assignmentID})
	if err != nil {
		return domain.Assignment{}, err
	}
	if len(found) == 0 {
		return domain.Assignment{}, fmt.Errorf("assignment %s: %w", assignmentID, domain.ErrNotFound)
	}
	return found[0], nil
}

// TransitionAssignment is a compare-and-swap on the status column.
func (t *sqlTx) TransitionAssignment(ctx context.Context, assignmentID string, from, to domain.AssignmentStatus, at time.Time) (bool, error) {
	query, args, err := t.store.sb.Update("assignments").
		Set("status", string(to)).
		Set("decided_at", at.UnixMilli()).
		Where(squirrel.Eq{"id": assignmentID, "status": string(from)}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("storage: build transition: %w", err)
	}

	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("storage: transition assignment %s: %w", assignmentID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("storage: transition rows affected: %w", err)
	}
	return n == 1, nil
}

// IncrementInterest adds delta to the (user, topic) score, creating the row on first use.
func (t *sqlTx) IncrementInterest(ctx context.Context, userID, topic string, delta int, at time.Time) error {
	query, args, err := t.store.sb.Insert("interest_scores").
		Columns("user_id", "topic", "score", "updated_at").
		Values(userID, topic, delta, at.UnixMilli()).
		Suffix(`ON CONFLICT (user_id, topic) DO UPDATE
			SET score = interest_scores.score + excluded.score,
			    updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("storage: build interest upsert: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("storage: increment interest %s/%s: %w", userID, topic, err)
	}
	return nil
}

// CountAssignments returns the user's total and pending assignment counts across all batches.
func (t *sqlTx) CountAssignments(ctx context.Context, userID string) (int, int, error) {
	query, args, err := t.store.sb.Select("COUNT(*)").
		Column(squirrel.Expr("COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)", string(domain.StatusPending))).
		From("assignments").
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return 0, 0, fmt.Errorf("storage: build count query: %w", err)
	}

	var total, pending int
	if err := t.tx.QueryRowContext(ctx, query, args...).Scan(&total, &pending); err != nil {
		return 0, 0, fmt.Errorf("storage: count assignments %s: %w", userID, err)
	}
	return total, pending, nil
}

// MarkOnboardingComplete sets the completion latch; the first completion time is kept.
func (t *sqlTx) MarkOnboardingComplete(ctx context.Context, userID string, at time.Time) error {
	query, args, err := t.store.sb.Insert("onboarding_completions").
		Columns("user_id", "completed_at").
		Values(userID, at.UnixMilli()).
		Suffix("ON CONFLICT (user_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("storage: build completion insert: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("storage: mark onboarding complete %s: %w", userID, err)
	}
	return nil
}
