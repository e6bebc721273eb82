package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"NewsOnboarding/internal/domain"
	"NewsOnboarding/internal/metrics"
	"NewsOnboarding/internal/ports"
)

// BatchSettings tunes how a batch is drawn from the candidate source.
type BatchSettings struct {
	Topics         []string
	TopicsPerBatch int
	CandidateLimit int
	// MinItems is the fewest distinct candidates a batch may hold.
	MinItems     int
	FetchTimeout time.Duration
}

// BatchManagerDeps wires the driven adapters of the batch lifecycle.
type BatchManagerDeps struct {
	Store    ports.BatchStore
	Source   ports.CandidateSource
	Clock    ports.Clock
	Random   ports.Random
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Settings BatchSettings
}

// BatchManager owns the lifecycle of the shared candidate pool.
// The active batch is always read from the store, never cached in memory.
type BatchManager struct {
	store    ports.BatchStore
	source   ports.CandidateSource
	clock    ports.Clock
	random   ports.Random
	metrics  *metrics.Metrics
	logger   *slog.Logger
	settings BatchSettings
	group    singleflight.Group
}

// GenerateResult reports the batch a refresh settled on and whether it was new.
type GenerateResult struct {
	Batch   domain.Batch
	Created bool
}

// NewBatchManager constructs the batch lifecycle component.
func NewBatchManager(deps BatchManagerDeps) *BatchManager {
	settings := deps.Settings
	if settings.TopicsPerBatch <= 0 {
		settings.TopicsPerBatch = 3
	}
	if settings.CandidateLimit <= 0 {
		settings.CandidateLimit = 30
	}
	if settings.MinItems <= 0 {
		settings.MinItems = domain.DefaultAssignmentCount
	}
	if settings.FetchTimeout <= 0 {
		settings.FetchTimeout = 15 * time.Second
	}
	return &BatchManager{
		store:    deps.Store,
		source:   deps.Source,
		clock:    deps.Clock,
		random:   deps.Random,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		settings: settings,
	}
}

// ActiveBatch returns the most recently generated unexpired batch, or nil.
func (m *BatchManager) ActiveBatch(ctx context.Context) (*domain.Batch, error) {
	batch, err := m.store.ActiveBatch(ctx, m.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("load active batch: %w", err)
	}
	return batch, nil
}

// LatestBatch returns the most recently generated batch regardless of expiry, or nil.
func (m *BatchManager) LatestBatch(ctx context.Context) (*domain.Batch, error) {
	batch, err := m.store.LatestBatch(ctx)
	if err != nil {
		return nil, fmt.Errorf("load latest batch: %w", err)
	}
	return batch, nil
}

// EnsureActiveBatch returns the active batch, generating one when none is active.
// Concurrent callers in this process share one generation; other processes may still race.
// The shared generation is bounded by FetchTimeout only, and each caller stops waiting
// when its own ctx is done.
func (m *BatchManager) EnsureActiveBatch(ctx context.Context) (domain.Batch, error) {
	active, err := m.ActiveBatch(ctx)
	if err != nil {
		return domain.Batch{}, err
	}
	if active != nil {
		return *active, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := m.group.DoChan("generate", func() (any, error) {
		return m.GenerateBatch(shared, false)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.Batch{}, res.Err
		}
		return res.Val.(GenerateResult).Batch, nil
	case <-ctx.Done():
		return domain.Batch{}, ctx.Err()
	}
}

// GenerateBatch builds a new batch unless one is active and force is false.
// Source failures surface as domain.ErrRetrieval and too few distinct candidates
// as domain.ErrGeneration; neither persists anything.
func (m *BatchManager) GenerateBatch(ctx context.Context, force bool) (GenerateResult, error) {
	if !force {
		active, err := m.ActiveBatch(ctx)
		if err != nil {
			m.metrics.BatchRefresh(metrics.ResultStoreError)
			return GenerateResult{}, err
		}
		if active != nil {
			m.metrics.BatchRefresh(metrics.ResultReused)
			return GenerateResult{Batch: *active}, nil
		}
	}

	topics := m.pickTopics()
	items, err := m.fetch(ctx, topics)
	if err != nil {
		m.metrics.BatchRefresh(metrics.ResultRetrievalError)
		return GenerateResult{}, err
	}

	now := m.clock.Now()
	items = normalizeCandidates(items, now)
	if len(items) < m.settings.MinItems {
		m.metrics.BatchRefresh(metrics.ResultGenerationError)
		return GenerateResult{}, fmt.Errorf("%d distinct candidates for topics %v, need %d: %w",
			len(items), topics, m.settings.MinItems, domain.ErrGeneration)
	}

	batch, err := m.store.CreateBatch(ctx, domain.Batch{
		ID:          uuid.NewString(),
		GeneratedAt: now,
		ExpiresAt:   now.Add(domain.BatchTTL),
		Items:       items,
	})
	if err != nil {
		m.metrics.BatchRefresh(metrics.ResultStoreError)
		return GenerateResult{}, fmt.Errorf("persist batch: %w", err)
	}

	m.metrics.BatchRefresh(metrics.ResultCreated)
	m.metrics.BatchGenerated(len(batch.Items))
	m.info("batch generated", "batch_id", batch.ID, "topics", topics, "items", len(batch.Items),
		"expires_at", batch.ExpiresAt)
	return GenerateResult{Batch: batch, Created: true}, nil
}

// fetch performs the single bounded source call.
func (m *BatchManager) fetch(ctx context.Context, topics []string) ([]domain.CandidateItem, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, m.settings.FetchTimeout)
	defer cancel()

	started := time.Now()
	items, err := m.source.Fetch(fetchCtx, topics, m.settings.CandidateLimit)
	m.metrics.ObserveFetch(time.Since(started))
	if err == nil && fetchCtx.Err() != nil {
		err = fetchCtx.Err()
	}
	if err != nil {
		return nil, fmt.Errorf("fetch candidates for topics %v: %w: %w", topics, domain.ErrRetrieval, err)
	}
	return items, nil
}

func (m *BatchManager) pickTopics() []string {
	topics := append([]string(nil), m.settings.Topics...)
	m.random.Shuffle(len(topics), func(i, j int) {
		topics[i], topics[j] = topics[j], topics[i]
	})
	if len(topics) > m.settings.TopicsPerBatch {
		topics = topics[:m.settings.TopicsPerBatch]
	}
	return topics
}

// normalizeCandidates canonicalizes URLs, drops duplicates and fills display defaults.
func normalizeCandidates(items []domain.CandidateItem, now time.Time) []domain.CandidateItem {
	out := make([]domain.CandidateItem, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		key, err := domain.CanonicalURL(item.URL)
		if err != nil {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		item.ID = ""
		item.URL = key
		item.Topic = normalizeTopic(item.Topic)
		if strings.TrimSpace(item.Title) == "" {
			item.Title = key
		}
		if strings.TrimSpace(item.SourceName) == "" {
			item.SourceName = "Unknown"
		}
		if item.PublishedAt.IsZero() {
			item.PublishedAt = now
		}
		out = append(out, item)
	}
	return out
}

func normalizeTopic(topic string) string {
	return strings.ToLower(strings.TrimSpace(topic))
}

func (m *BatchManager) info(msg string, args ...interface{}) {
	if m.logger != nil {
		m.logger.Info(msg, args...)
	}
}
