package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"NewsOnboarding/internal/domain"
	"NewsOnboarding/internal/ports"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const assignmentColumns = `a.id, a.user_id, a.batch_id, a.item_id, a.topic, a.ordinal, a.status, a.created_at, a.decided_at,
	i.id, i.url, i.title, i.description, i.image_url, i.source_name, i.topic, i.published_at`

const itemColumns = `i.id, i.url, i.title, i.description, i.image_url, i.source_name, i.topic, i.published_at`

// runner is satisfied by both *sql.DB and *sql.Tx.
type runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore persists batches, assignments, scores and completion state in SQLite or Postgres.
type SQLStore struct {
	db     *sql.DB
	sb     squirrel.StatementBuilderType
	driver string
}

var _ ports.Store = (*SQLStore)(nil)

// Open connects to the database for driver and applies the schema.
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	var placeholder squirrel.PlaceholderFormat
	switch driver {
	case DriverSQLite:
		placeholder = squirrel.Question
	case DriverPostgres:
		placeholder = squirrel.Dollar
	default:
		return nil, fmt.Errorf("storage: unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}

	if driver == DriverSQLite {
		// One connection keeps SQLite transactions serialized instead of failing with SQLITE_BUSY.
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("storage: set WAL mode: %w", err)
		}
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("storage: enable foreign keys: %w", err)
		}
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("storage: apply schema: %w", err)
		}
	}

	return &SQLStore{
		db:     db,
		sb:     squirrel.StatementBuilder.PlaceholderFormat(placeholder),
		driver: driver,
	}, nil
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ActiveBatch returns the newest batch whose expiry is after now.
func (s *SQLStore) ActiveBatch(ctx context.Context, now time.Time) (*domain.Batch, error) {
	query, args, err := s.sb.Select("id", "generated_at", "expires_at").
		From("batches").
		Where(squirrel.Gt{"expires_at": now.UnixMilli()}).
		OrderBy("generated_at DESC", "id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("storage: build active batch query: %w", err)
	}
	return s.loadBatch(ctx, query, args)
}

// LatestBatch returns the newest batch even if it has expired.
func (s *SQLStore) LatestBatch(ctx context.Context) (*domain.Batch, error) {
	query, args, err := s.sb.Select("id", "generated_at", "expires_at").
		From("batches").
		OrderBy("generated_at DESC", "id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("storage: build latest batch query: %w", err)
	}
	return s.loadBatch(ctx, query, args)
}

func (s *SQLStore) loadBatch(ctx context.Context, query string, args []any) (*domain.Batch, error) {
	var (
		batch                  domain.Batch
		generatedAt, expiresAt int64
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&batch.ID, &generatedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: query batch: %w", err)
	}
	batch.GeneratedAt = fromMillis(generatedAt)
	batch.ExpiresAt = fromMillis(expiresAt)

	items, err := s.batchItems(ctx, batch.ID)
	if err != nil {
		return nil, err
	}
	batch.Items = items
	return &batch, nil
}

func (s *SQLStore) batchItems(ctx context.Context, batchID string) ([]domain.CandidateItem, error) {
	query, args, err := s.sb.Select(itemColumns).
		From("batch_items bi").
		Join("candidate_items i ON i.id = bi.item_id").
		Where(squirrel.Eq{"bi.batch_id": batchID}).
		OrderBy("bi.ordinal").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("storage: build batch items query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: query batch items %s: %w", batchID, err)
	}
	defer rows.Close()

	var items []domain.CandidateItem
	for rows.Next() {
		var (
			item        domain.CandidateItem
			publishedAt int64
		)
		if err := rows.Scan(&item.ID, &item.URL, &item.Title, &item.Description, &item.ImageURL,
			&item.SourceName, &item.Topic, &publishedAt); err != nil {
			return nil, fmt.Errorf("storage: scan batch item: %w", err)
		}
		item.PublishedAt = fromMillis(publishedAt)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate batch items: %w", err)
	}
	return items, nil
}

// CreateBatch upserts the batch items by URL and inserts the batch with its membership
// in one transaction, so a failure leaves no partial batch behind.
func (s *SQLStore) CreateBatch(ctx context.Context, batch domain.Batch) (domain.Batch, error) {
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	items := make([]domain.CandidateItem, len(batch.Items))
	copy(items, batch.Items)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for i := range items {
			id, err := s.upsertItem(ctx, tx, items[i], batch.GeneratedAt)
			if err != nil {
				return err
			}
			items[i].ID = id
		}

		query, args, err := s.sb.Insert("batches").
			Columns("id", "generated_at", "expires_at").
			Values(batch.ID, batch.GeneratedAt.UnixMilli(), batch.ExpiresAt.UnixMilli()).
			ToSql()
		if err != nil {
			return fmt.Errorf("storage: build batch insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("storage: insert batch %s: %w", batch.ID, err)
		}

		if len(items) == 0 {
			return nil
		}
		membership := s.sb.Insert("batch_items").Columns("batch_id", "item_id", "ordinal")
		for i, item := range items {
			membership = membership.Values(batch.ID, item.ID, i)
		}
		query, args, err = membership.Suffix("ON CONFLICT (batch_id, item_id) DO NOTHING").ToSql()
		if err != nil {
			return fmt.Errorf("storage: build batch items insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("storage: insert batch items: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Batch{}, err
	}

	batch.Items = items
	return batch, nil
}

func (s *SQLStore) upsertItem(ctx context.Context, r runner, item domain.CandidateItem, at time.Time) (string, error) {
	query, args, err := s.sb.Insert("candidate_items").
		Columns("id", "url", "title", "description", "image_url", "source_name", "topic", "published_at", "updated_at").
		Values(uuid.NewString(), item.URL, item.Title, item.Description, item.ImageURL, item.SourceName,
			item.Topic, item.PublishedAt.UnixMilli(), at.UnixMilli()).
		Suffix(`ON CONFLICT (url) DO UPDATE
			SET title = excluded.title,
			    description = excluded.description,
			    image_url = excluded.image_url,
			    source_name = excluded.source_name,
			    topic = CASE WHEN excluded.topic <> '' THEN excluded.topic ELSE candidate_items.topic END,
			    published_at = excluded.published_at,
			    updated_at = excluded.updated_at
			RETURNING id`).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("storage: build item upsert: %w", err)
	}

	var id string
	if err := r.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return "", fmt.Errorf("storage: upsert item %s: %w", item.URL, err)
	}
	return id, nil
}

// ListAssignments returns the user's assignments joined with their items, oldest first.
func (s *SQLStore) ListAssignments(ctx context.Context, userID, batchID string) ([]domain.Assignment, error) {
	where := squirrel.Eq{"a.user_id": userID}
	if batchID != "" {
		where["a.batch_id"] = batchID
	}
	return s.selectAssignments(ctx, s.db, where)
}

func (s *SQLStore) selectAssignments(ctx context.Context, r runner, where squirrel.Eq) ([]domain.Assignment, error) {
	query, args, err := s.sb.Select(assignmentColumns).
		From("assignments a").
		Join("candidate_items i ON i.id = a.item_id").
		Where(where).
		OrderBy("a.created_at", "a.ordinal", "a.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("storage: build assignments query: %w", err)
	}

	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: query assignments: %w", err)
	}
	defer rows.Close()

	var result []domain.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate assignments: %w", err)
	}
	return result, nil
}

func scanAssignment(rows *sql.Rows) (domain.Assignment, error) {
	var (
		a                      domain.Assignment
		status                 string
		createdAt, publishedAt int64
		decidedAt              sql.NullInt64
	)
	err := rows.Scan(&a.ID, &a.UserID, &a.BatchID, &a.ItemID, &a.Topic, &a.Position, &status, &createdAt, &decidedAt,
		&a.Item.ID, &a.Item.URL, &a.Item.Title, &a.Item.Description, &a.Item.ImageURL, &a.Item.SourceName,
		&a.Item.Topic, &publishedAt)
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("storage: scan assignment: %w", err)
	}
	a.Status = domain.AssignmentStatus(status)
	a.CreatedAt = fromMillis(createdAt)
	if decidedAt.Valid {
		a.DecidedAt = fromMillis(decidedAt.Int64)
	}
	a.Item.PublishedAt = fromMillis(publishedAt)
	return a, nil
}

// CreateAssignments inserts pending assignments and returns how many rows were new.
// Rows colliding on (user_id, batch_id, item_id) are skipped.
func (s *SQLStore) CreateAssignments(ctx context.Context, assignments []domain.Assignment) (int, error) {
	if len(assignments) == 0 {
		return 0, nil
	}

	inserted := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, a := range assignments {
			if a.ID == "" {
				a.ID = uuid.NewString()
			}
			query, args, err := s.sb.Insert("assignments").
				Columns("id", "user_id", "batch_id", "item_id", "topic", "ordinal", "status", "created_at").
				Values(a.ID, a.UserID, a.BatchID, a.ItemID, a.Topic, a.Position, string(a.Status), a.CreatedAt.UnixMilli()).
				Suffix("ON CONFLICT (user_id, batch_id, item_id) DO NOTHING").
				ToSql()
			if err != nil {
				return fmt.Errorf("storage: build assignment insert: %w", err)
			}
			res, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("storage: insert assignment for item %s: %w", a.ItemID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("storage: assignment rows affected: %w", err)
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// OnboardingState reads the user's completion latch.
func (s *SQLStore) OnboardingState(ctx context.Context, userID string) (domain.OnboardingState, error) {
	query, args, err := s.sb.Select("completed_at").
		From("onboarding_completions").
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return domain.OnboardingState{}, fmt.Errorf("storage: build onboarding state query: %w", err)
	}

	state := domain.OnboardingState{UserID: userID}
	var completedAt int64
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return state, nil
	}
	if err != nil {
		return domain.OnboardingState{}, fmt.Errorf("storage: query onboarding state %s: %w", userID, err)
	}
	state.Completed = true
	state.CompletedAt = fromMillis(completedAt)
	return state, nil
}

// InterestScores lists the user's topic scores ordered by topic.
func (s *SQLStore) InterestScores(ctx context.Context, userID string) ([]domain.InterestScore, error) {
	query, args, err := s.sb.Select("user_id", "topic", "score").
		From("interest_scores").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("topic").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("storage: build interest query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: query interest scores: %w", err)
	}
	defer rows.Close()

	var scores []domain.InterestScore
	for rows.Next() {
		var sc domain.InterestScore
		if err := rows.Scan(&sc.UserID, &sc.Topic, &sc.Score); err != nil {
			return nil, fmt.Errorf("storage: scan interest score: %w", err)
		}
		scores = append(scores, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate interest scores: %w", err)
	}
	return scores, nil
}

// InTx runs fn inside a database transaction, committing only when fn succeeds.
func (s *SQLStore) InTx(ctx context.Context, fn func(tx ports.Tx) error) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return fn(&sqlTx{tx: tx, store: s})
	})
}

func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit tx: %w", err)
	}
	return nil
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
