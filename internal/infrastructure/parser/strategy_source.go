package parser

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"NewsOnboarding/internal/config"
	"NewsOnboarding/internal/domain"
	"NewsOnboarding/internal/ports"
	"NewsOnboarding/internal/scanner"
)

// StrategySource implements CandidateSource via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	sites    []config.SiteConfig
	logger   *slog.Logger
}

var _ ports.CandidateSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with config-defined sites.
func NewStrategySource(reg *scanner.Registry, sites []config.SiteConfig, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		sites:    sites,
		logger:   log,
	}
}

// Fetch scans every topic in parallel, splitting limit evenly across topics, and returns
// at most limit items unique by canonical URL. Any scanner failure fails the whole call.
func (s *StrategySource) Fetch(ctx context.Context, topics []string, limit int) ([]domain.CandidateItem, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}
	if len(topics) == 0 || limit <= 0 {
		return nil, nil
	}

	perTopic := (limit + len(topics) - 1) / len(topics)
	s.debug("fetch candidates", "topics", topics, "limit", limit, "per_topic", perTopic)

	reqs := make([]scanner.Request, len(topics))
	strategies := make([]scanner.Scanner, len(topics))
	for i, topic := range topics {
		site, section, ok := s.siteFor(topic)
		if !ok {
			return nil, fmt.Errorf("no site serves topic %s", topic)
		}
		strategy, err := s.registry.Resolve(site.Scanner)
		if err != nil {
			return nil, fmt.Errorf("site %s: %w", site.Name, err)
		}
		strategies[i] = strategy
		reqs[i] = scanner.Request{
			SiteName: site.Name,
			Topic:    topic,
			URL:      section.URL,
			Limit:    perTopic,
			Options:  site.Options,
		}
	}

	results := make([][]domain.CandidateItem, len(topics))
	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		g.Go(func() error {
			items, err := strategies[i].Scan(gctx, req)
			if err != nil {
				return fmt.Errorf("scan site %s topic %s: %w", req.SiteName, req.Topic, err)
			}
			if len(items) > perTopic {
				items = items[:perTopic]
			}
			for j := range items {
				if items[j].Topic == "" {
					items[j].Topic = req.Topic
				}
				if items[j].SourceName == "" {
					items[j].SourceName = req.SiteName
				}
			}
			results[i] = items
			s.debug("topic produced candidates", "site", req.SiteName, "topic", req.Topic, "count", len(items))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	aggregated := make([]domain.CandidateItem, 0, limit)
	seen := map[string]struct{}{}
	for _, items := range results {
		for _, item := range items {
			key, err := domain.CanonicalURL(item.URL)
			if err != nil {
				s.debug("skip candidate", "url", item.URL, "error", err)
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			item.URL = key
			aggregated = append(aggregated, item)
		}
	}
	if len(aggregated) > limit {
		aggregated = aggregated[:limit]
	}

	s.debug("strategy source done", "total_candidates", len(aggregated))
	return aggregated, nil
}

// siteFor picks the first site listing the topic, falling back to a site with no topic list.
func (s *StrategySource) siteFor(topic string) (config.SiteConfig, config.TopicConfig, bool) {
	var (
		fallback    config.SiteConfig
		hasFallback bool
	)
	for _, site := range s.sites {
		if len(site.Topics) == 0 {
			if !hasFallback {
				fallback, hasFallback = site, true
			}
			continue
		}
		for _, t := range site.Topics {
			if t.Name == topic {
				return site, t, true
			}
		}
	}
	return fallback, config.TopicConfig{Name: topic}, hasFallback
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
