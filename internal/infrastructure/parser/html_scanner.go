package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsOnboarding/internal/domain"
	"NewsOnboarding/internal/scanner"
)

// Default selectors match the common <article> teaser markup of news section pages.
const (
	defaultEntrySelector   = "article"
	defaultLinkSelector    = "a[href]"
	defaultTitleSelector   = "h1, h2, h3"
	defaultSummarySelector = "p"
	defaultImageSelector   = "img[src]"
	defaultTimeSelector    = "time[datetime]"
)

// HTMLScanner extracts teaser entries from a topic section page.
// Selectors can be overridden per site through the entry, link, title, summary, image and time options.
type HTMLScanner struct {
	client *http.Client
	logger *slog.Logger
}

// NewHTMLScanner wires an HTTP client with a conservative default timeout.
func NewHTMLScanner(client *http.Client, logger *slog.Logger) *HTMLScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &HTMLScanner{client: client, logger: logger}
}

// Name identifies the strategy inside the registry.
func (h *HTMLScanner) Name() string {
	return "html"
}

// Scan downloads req.URL and returns up to req.Limit entries tagged with req.Topic.
func (h *HTMLScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.CandidateItem, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("no section url for topic %s on site %s", req.Topic, req.SiteName)
	}

	base, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid section url %s: %w", req.URL, err)
	}

	doc, err := h.fetchDocument(ctx, req.URL)
	if err != nil {
		return nil, fmt.Errorf("topic %s: %w", req.Topic, err)
	}

	sel := selectorsFrom(req.Options)
	var items []domain.CandidateItem
	seen := map[string]struct{}{}

	doc.Find(sel.entry).EachWithBreak(func(_ int, entry *goquery.Selection) bool {
		item, ok := parseEntry(entry, base, sel, req)
		if !ok {
			return true
		}
		if _, dup := seen[item.URL]; dup {
			return true
		}
		seen[item.URL] = struct{}{}
		items = append(items, item)
		return req.Limit <= 0 || len(items) < req.Limit
	})

	if h.logger != nil {
		h.logger.Debug("section scanned", "site", req.SiteName, "topic", req.Topic, "count", len(items))
	}
	return items, nil
}

func (h *HTMLScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "NewsOnboarding/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("section page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

type selectors struct {
	entry, link, title, summary, image, stamp string
}

func selectorsFrom(options map[string]string) selectors {
	pick := func(key, fallback string) string {
		if v := strings.TrimSpace(options[key]); v != "" {
			return v
		}
		return fallback
	}
	return selectors{
		entry:   pick("entry", defaultEntrySelector),
		link:    pick("link", defaultLinkSelector),
		title:   pick("title", defaultTitleSelector),
		summary: pick("summary", defaultSummarySelector),
		image:   pick("image", defaultImageSelector),
		stamp:   pick("time", defaultTimeSelector),
	}
}

func parseEntry(entry *goquery.Selection, base *url.URL, sel selectors, req scanner.Request) (domain.CandidateItem, bool) {
	href, ok := entry.Find(sel.link).First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return domain.CandidateItem{}, false
	}
	link, err := base.Parse(strings.TrimSpace(href))
	if err != nil {
		return domain.CandidateItem{}, false
	}

	title := collapse(entry.Find(sel.title).First().Text())
	if title == "" {
		title = collapse(entry.Find(sel.link).First().Text())
	}
	if title == "" {
		title = link.String()
	}

	item := domain.CandidateItem{
		URL:         link.String(),
		Title:       title,
		Description: collapse(entry.Find(sel.summary).First().Text()),
		SourceName:  req.SiteName,
		Topic:       req.Topic,
	}

	if src, ok := entry.Find(sel.image).First().Attr("src"); ok {
		if img, err := base.Parse(strings.TrimSpace(src)); err == nil {
			item.ImageURL = img.String()
		}
	}

	if stamp, ok := entry.Find(sel.stamp).First().Attr("datetime"); ok {
		if parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(stamp)); err == nil {
			item.PublishedAt = parsed.UTC()
		} else if parsed, err := time.Parse("2006-01-02", strings.TrimSpace(stamp)); err == nil {
			item.PublishedAt = parsed
		}
	}

	return item, true
}

func collapse(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
