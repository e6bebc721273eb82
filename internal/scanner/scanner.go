package scanner

import (
	"context"
	"fmt"

	"NewsOnboarding/internal/domain"
)

// Request carries all parameters required to fetch candidates for one topic.
type Request struct {
	SiteName string
	Topic    string
	// URL is the topic section endpoint for page-based scanners; API scanners may ignore it.
	URL     string
	Limit   int
	Options map[string]string
}

// Scanner captures a single strategy implementation (NewsAPI, HTML section pages, etc.).
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) ([]domain.CandidateItem, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}
