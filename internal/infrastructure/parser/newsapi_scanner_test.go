package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"NewsOnboarding/internal/scanner"
)

func TestNewsAPIBuildURL(t *testing.T) {
	t.Parallel()

	sc := NewNewsAPIScanner(nil, "https://newsapi.org/v2/top-headlines?country=us", "key", nil)
	u, err := sc.buildURL(scanner.Request{Topic: "sports", Limit: 12})
	if err != nil {
		t.Fatalf("buildURL returned error: %v", err)
	}

	for _, want := range []string{"category=sports", "language=en", "pageSize=12", "country=us"} {
		if !strings.Contains(u, want) {
			t.Fatalf("expected %s in %s", want, u)
		}
	}

	u, err = sc.buildURL(scanner.Request{Topic: "health", Options: map[string]string{"language": "de"}})
	if err != nil {
		t.Fatalf("buildURL returned error: %v", err)
	}
	if !strings.Contains(u, "language=de") || strings.Contains(u, "pageSize") {
		t.Fatalf("unexpected url %s", u)
	}
}

func TestNewsAPIScannerScan(t *testing.T) {
	t.Parallel()

	var gotKey, gotCategory string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		gotCategory = r.URL.Query().Get("category")
		_, _ = w.Write([]byte(`{
		  "status": "ok",
		  "articles": [
		    {"title": " Chip output climbs ", "url": "https://wire.example.com/chips",
		     "description": "<p>Fabs <b>expand</b> &amp; hire</p>", "urlToImage": "https://img.example.com/1.jpg",
		     "publishedAt": "2025-11-08T05:30:00Z", "source": {"name": "Wire"}},
		    {"title": "", "url": "https://blog.example.com/untitled", "source": {"name": ""}},
		    {"title": "no link", "url": ""}
		  ]
		}`))
	}))
	defer server.Close()

	sc := NewNewsAPIScanner(server.Client(), server.URL, "secret", nil)
	items, err := sc.Scan(context.Background(), scanner.Request{SiteName: "newsapi", Topic: "technology", Limit: 5})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	if gotKey != "secret" || gotCategory != "technology" {
		t.Fatalf("unexpected request key=%q category=%q", gotKey, gotCategory)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	first := items[0]
	if first.Title != "Chip output climbs" {
		t.Fatalf("unexpected title: %q", first.Title)
	}
	if first.Description != "Fabs expand & hire" {
		t.Fatalf("unexpected description: %q", first.Description)
	}
	if first.Topic != "technology" || first.SourceName != "Wire" {
		t.Fatalf("unexpected topic/source: %s/%s", first.Topic, first.SourceName)
	}
	if !first.PublishedAt.Equal(time.Date(2025, time.November, 8, 5, 30, 0, 0, time.UTC)) {
		t.Fatalf("unexpected published time: %v", first.PublishedAt)
	}

	second := items[1]
	if second.Title != second.URL || second.SourceName != "Unknown" {
		t.Fatalf("defaults not applied: %+v", second)
	}
	if !second.PublishedAt.IsZero() {
		t.Fatalf("missing publishedAt should stay zero, got %v", second.PublishedAt)
	}
}

func TestNewsAPIScannerErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("category") {
		case "denied":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"status":"error","code":"apiKeyInvalid"}`))
		default:
			_, _ = w.Write([]byte(`{"status":"error","code":"rateLimited","message":"slow down"}`))
		}
	}))
	defer server.Close()

	sc := NewNewsAPIScanner(server.Client(), server.URL, "secret", nil)
	if _, err := sc.Scan(context.Background(), scanner.Request{Topic: "denied"}); err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected status error, got %v", err)
	}
	if _, err := sc.Scan(context.Background(), scanner.Request{Topic: "general"}); err == nil || !strings.Contains(err.Error(), "rateLimited") {
		t.Fatalf("expected api error, got %v", err)
	}

	noKey := NewNewsAPIScanner(server.Client(), server.URL, "", nil)
	if _, err := noKey.Scan(context.Background(), scanner.Request{Topic: "general"}); err == nil {
		t.Fatalf("expected missing key error")
	}
	if _, err := sc.Scan(context.Background(), scanner.Request{}); err == nil {
		t.Fatalf("expected missing topic error")
	}
}
