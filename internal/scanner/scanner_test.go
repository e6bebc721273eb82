package scanner

import (
	"context"
	"testing"

	"NewsOnboarding/internal/domain"
)

type namedScanner string

func (n namedScanner) Name() string { return string(n) }

func (n namedScanner) Scan(context.Context, Request) ([]domain.CandidateItem, error) {
	return nil, nil
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(namedScanner("newsapi"))

	got, err := reg.Resolve("newsapi")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Name() != "newsapi" {
		t.Fatalf("unexpected scanner %s", got.Name())
	}
	if _, err := reg.Resolve("rss"); err == nil {
		t.Fatalf("expected error for unknown scanner")
	}

	var zero Registry
	zero.Register(namedScanner("html"))
	if _, err := zero.Resolve("html"); err != nil {
		t.Fatalf("zero registry should accept registrations: %v", err)
	}
}
