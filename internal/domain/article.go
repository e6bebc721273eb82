package domain

import "time"

// CandidateItem is a content item eligible for onboarding, unique by its canonical URL.
type CandidateItem struct {
	ID          string
	URL         string
	Title       string
	Description string
	ImageURL    string
	SourceName  string
	Topic       string
	PublishedAt time.Time
}

