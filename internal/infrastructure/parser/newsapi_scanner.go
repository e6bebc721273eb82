package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsOnboarding/internal/domain"
	"NewsOnboarding/internal/scanner"
)

const (
	newsAPIDefaultEndpoint = "https://newsapi.org/v2/top-headlines"
	newsAPIDefaultLanguage = "en"
	unknownSource          = "Unknown"
)

// NewsAPIScanner reads top headlines for a category from a NewsAPI-compatible endpoint.
type NewsAPIScanner struct {
	client   *http.Client
	endpoint string
	apiKey   string
	logger   *slog.Logger
}

// NewNewsAPIScanner wires an HTTP client; endpoint defaults to the public top-headlines API.
func NewNewsAPIScanner(client *http.Client, endpoint, apiKey string, logger *slog.Logger) *NewsAPIScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if endpoint == "" {
		endpoint = newsAPIDefaultEndpoint
	}
	return &NewsAPIScanner{client: client, endpoint: endpoint, apiKey: apiKey, logger: logger}
}

// Name identifies the strategy inside the registry.
func (n *NewsAPIScanner) Name() string {
	return "newsapi"
}

type newsAPIResponse struct {
	Status   string           `json:"status"`
	Code     string           `json:"code"`
	Message  string           `json:"message"`
	Articles []newsAPIArticle `json:"articles"`
}

type newsAPIArticle struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	URLToImage  string `json:"urlToImage"`
	PublishedAt string `json:"publishedAt"`
	Source      struct {
		Name string `json:"name"`
	} `json:"source"`
}

// Scan requests one page of headlines for req.Topic.
func (n *NewsAPIScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.CandidateItem, error) {
	if n.apiKey == "" {
		return nil, fmt.Errorf("news api key missing for site %s", req.SiteName)
	}
	if req.Topic == "" {
		return nil, fmt.Errorf("no topic provided for site %s", req.SiteName)
	}

	pageURL, err := n.buildURL(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("User-Agent", "NewsOnboarding/1.0")
	httpReq.Header.Set("X-Api-Key", n.apiKey)

	resp, err := n.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request headlines: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("news api returned %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var body newsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode headlines: %w", err)
	}
	if body.Status != "" && body.Status != "ok" {
		return nil, fmt.Errorf("news api error %s: %s", body.Code, body.Message)
	}

	items := make([]domain.CandidateItem, 0, len(body.Articles))
	for _, article := range body.Articles {
		if article.URL == "" {
			continue
		}
		items = append(items, toCandidate(article, req.Topic))
	}

	if n.logger != nil {
		n.logger.Debug("headlines fetched", "topic", req.Topic, "count", len(items))
	}
	return items, nil
}

func (n *NewsAPIScanner) buildURL(req scanner.Request) (string, error) {
	parsed, err := url.Parse(n.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid news api endpoint %s: %w", n.endpoint, err)
	}

	language := req.Options["language"]
	if language == "" {
		language = newsAPIDefaultLanguage
	}

	query := parsed.Query()
	query.Set("category", req.Topic)
	query.Set("language", language)
	if req.Limit > 0 {
		query.Set("pageSize", strconv.Itoa(req.Limit))
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func toCandidate(article newsAPIArticle, topic string) domain.CandidateItem {
	item := domain.CandidateItem{
		URL:         article.URL,
		Title:       strings.TrimSpace(article.Title),
		Description: plainText(article.Description),
		ImageURL:    article.URLToImage,
		SourceName:  strings.TrimSpace(article.Source.Name),
		Topic:       topic,
	}
	if item.Title == "" {
		item.Title = article.URL
	}
	if item.SourceName == "" {
		item.SourceName = unknownSource
	}
	if parsed, err := time.Parse(time.RFC3339, article.PublishedAt); err == nil {
		item.PublishedAt = parsed.UTC()
	}
	return item
}

// plainText strips markup some publishers embed in descriptions.
func plainText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.TrimSpace(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
