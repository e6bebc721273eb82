package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/require"

	"NewsOnboarding/internal/domain"
	"NewsOnboarding/internal/ports"
)

var baseTime = time.Date(2025, time.November, 8, 6, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(context.Background(), DriverSQLite, dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleItems(n int, topic string) []domain.CandidateItem {
	items := make([]domain.CandidateItem, n)
	for i := range items {
		items[i] = domain.CandidateItem{
			URL:         fmt.Sprintf("https://news.example.com/%s/%d", topic, i),
			Title:       fmt.Sprintf("%s story %d", topic, i),
			SourceName:  "Example",
			Topic:       topic,
			PublishedAt: baseTime,
		}
	}
	return items
}

func createBatch(t *testing.T, s *SQLStore, generatedAt time.Time, items []domain.CandidateItem) domain.Batch {
	t.Helper()
	batch, err := s.CreateBatch(context.Background(), domain.Batch{
		GeneratedAt: generatedAt,
		ExpiresAt:   generatedAt.Add(domain.BatchTTL),
		Items:       items,
	})
	require.NoError(t, err)
	return batch
}

func TestOpen(t *testing.T) {
	t.Run("creates schema", func(t *testing.T) {
		s := newTestStore(t)
		for _, table := range []string{"candidate_items", "batches", "batch_items", "assignments", "interest_scores", "onboarding_completions"} {
			_, err := s.db.Exec("SELECT COUNT(*) FROM " + table)
			require.NoError(t, err, "table %s", table)
		}
	})

	t.Run("rejects unknown driver", func(t *testing.T) {
		_, err := Open(context.Background(), "mysql", "dsn")
		require.Error(t, err)
	})

	t.Run("reopen keeps data", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "reopen.db")
		s, err := Open(context.Background(), DriverSQLite, dbPath)
		require.NoError(t, err)
		createBatch(t, s, baseTime, sampleItems(2, "tech"))
		require.NoError(t, s.Close())

		s, err = Open(context.Background(), DriverSQLite, dbPath)
		require.NoError(t, err)
		defer s.Close()
		latest, err := s.LatestBatch(context.Background())
		require.NoError(t, err)
		require.NotNil(t, latest)
		require.Len(t, latest.Items, 2)
	})
}

func TestCreateBatchUpsertsItemsByURL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := createBatch(t, s, baseTime, sampleItems(3, "tech"))
	require.Len(t, first.Items, 3)

	updated := sampleItems(3, "tech")
	updated[0].Title = "Refreshed headline"
	updated[1].Topic = ""
	second := createBatch(t, s, baseTime.Add(time.Hour), updated)

	for i := range first.Items {
		require.Equal(t, first.Items[i].ID, second.Items[i].ID, "item %d should be reused", i)
	}

	var count int
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM candidate_items").Scan(&count))
	require.Equal(t, 3, count)

	latest, err := s.LatestBatch(ctx)
	require.NoError(t, err)
	require.Equal(t, second.ID, latest.ID)
	require.Equal(t, "Refreshed headline", latest.Items[0].Title)
	require.Equal(t, "tech", latest.Items[1].Topic, "empty topic must not erase a known topic")
}

func TestActiveBatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	none, err := s.ActiveBatch(ctx, baseTime)
	require.NoError(t, err)
	require.Nil(t, none)

	older := createBatch(t, s, baseTime, sampleItems(2, "tech"))
	newer := createBatch(t, s, baseTime.Add(2*time.Hour), sampleItems(2, "sports"))

	active, err := s.ActiveBatch(ctx, baseTime.Add(3*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, active)
	require.Equal(t, newer.ID, active.ID)
	require.Equal(t, domain.BatchTTL, active.ExpiresAt.Sub(active.GeneratedAt))
	require.Equal(t, "sports", active.Items[0].Topic)

	expired, err := s.ActiveBatch(ctx, baseTime.Add(2*time.Hour+domain.BatchTTL))
	require.NoError(t, err)
	require.Nil(t, expired)

	latest, err := s.LatestBatch(ctx)
	require.NoError(t, err)
	require.Equal(t, newer.ID, latest.ID)
	require.NotEqual(t, older.ID, latest.ID)
}

func TestCreateAssignmentsSkipsDuplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	batch := createBatch(t, s, baseTime, sampleItems(3, "tech"))

	build := func(items []domain.CandidateItem) []domain.Assignment {
		out := make([]domain.Assignment, 0, len(items))
		for i, item := range items {
			out = append(out, domain.Assignment{
				UserID:    "u1",
				BatchID:   batch.ID,
				ItemID:    item.ID,
				Topic:     item.Topic,
				Position:  i,
				Status:    domain.StatusPending,
				CreatedAt: baseTime,
			})
		}
		return out
	}

	n, err := s.CreateAssignments(ctx, build(batch.Items[:2]))
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = s.CreateAssignments(ctx, build(batch.Items))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	list, err := s.ListAssignments(ctx, "u1", batch.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, batch.Items[0].URL, list[0].Item.URL)
	require.Equal(t, domain.StatusPending, list[0].Status)
	require.True(t, list[0].DecidedAt.IsZero())

	other, err := s.ListAssignments(ctx, "u2", "")
	require.NoError(t, err)
	require.Empty(t, other)
}

func TestTxDecisionFlow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	batch := createBatch(t, s, baseTime, sampleItems(2, "tech"))

	_, err := s.CreateAssignments(ctx, []domain.Assignment{
		{UserID: "u1", BatchID: batch.ID, ItemID: batch.Items[0].ID, Topic: "tech", Status: domain.StatusPending, CreatedAt: baseTime},
		{UserID: "u1", BatchID: batch.ID, ItemID: batch.Items[1].ID, Topic: "tech", Position: 1, Status: domain.StatusPending, CreatedAt: baseTime},
	})
	require.NoError(t, err)
	list, err := s.ListAssignments(ctx, "u1", "")
	require.NoError(t, err)

	decidedAt := baseTime.Add(time.Minute)
	err = s.InTx(ctx, func(tx ports.Tx) error {
		ok, err := tx.TransitionAssignment(ctx, list[0].ID, domain.StatusPending, domain.StatusAccepted, decidedAt)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = tx.TransitionAssignment(ctx, list[0].ID, domain.StatusPending, domain.StatusAccepted, decidedAt)
		require.NoError(t, err)
		require.False(t, ok, "second transition from pending must not match")

		require.NoError(t, tx.IncrementInterest(ctx, "u1", "tech", 1, decidedAt))
		require.NoError(t, tx.IncrementInterest(ctx, "u1", "tech", -1, decidedAt))
		require.NoError(t, tx.IncrementInterest(ctx, "u1", "tech", -1, decidedAt))

		total, pending, err := tx.CountAssignments(ctx, "u1")
		require.NoError(t, err)
		require.Equal(t, 2, total)
		require.Equal(t, 1, pending)

		got, err := tx.GetAssignment(ctx, list[0].ID)
		require.NoError(t, err)
		require.Equal(t, domain.StatusAccepted, got.Status)
		require.Equal(t, decidedAt, got.DecidedAt)
		return nil
	})
	require.NoError(t, err)

	scores, err := s.InterestScores(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, []domain.InterestScore{{UserID: "u1", Topic: "tech", Score: -1}}, scores)
}

func TestLockUser(t *testing.T) {
	t.Run("sqlite runs without a lock statement", func(t *testing.T) {
		s := newTestStore(t)
		ctx := context.Background()

		query, _, err := s.userLockQuery("u1")
		require.NoError(t, err)
		require.Empty(t, query)

		err = s.InTx(ctx, func(tx ports.Tx) error {
			require.NoError(t, tx.LockUser(ctx, "u1"))
			return tx.IncrementInterest(ctx, "u1", "tech", 1, baseTime)
		})
		require.NoError(t, err)
	})

	t.Run("postgres takes a transaction advisory lock", func(t *testing.T) {
		s := &SQLStore{sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar), driver: DriverPostgres}

		query, args, err := s.userLockQuery("u1")
		require.NoError(t, err)
		require.Equal(t, "SELECT pg_advisory_xact_lock(hashtext($1))", query)
		require.Equal(t, []any{"u1"}, args)
	})
}

func TestTxRollbackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx ports.Tx) error {
		require.NoError(t, tx.IncrementInterest(ctx, "u1", "tech", 1, baseTime))
		return boom
	})
	require.ErrorIs(t, err, boom)

	scores, err := s.InterestScores(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, scores)
}

func TestGetAssignmentNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.InTx(ctx, func(tx ports.Tx) error {
		_, err := tx.GetAssignment(ctx, "missing")
		return err
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOnboardingCompletionLatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	state, err := s.OnboardingState(ctx, "u1")
	require.NoError(t, err)
	require.False(t, state.Completed)

	first := baseTime.Add(time.Hour)
	for _, at := range []time.Time{first, first.Add(time.Hour)} {
		err := s.InTx(ctx, func(tx ports.Tx) error {
			return tx.MarkOnboardingComplete(ctx, "u1", at)
		})
		require.NoError(t, err)
	}

	state, err = s.OnboardingState(ctx, "u1")
	require.NoError(t, err)
	require.True(t, state.Completed)
	require.Equal(t, first, state.CompletedAt)
}
