package domain

import (
	"fmt"
	"strings"
	"time"
)

// BatchTTL is how long a generated batch stays active.
const BatchTTL = 24 * time.Hour

// DefaultAssignmentCount is the number of items a new user reviews.
const DefaultAssignmentCount = 7

// Batch is a time-boxed shared pool of candidate items.
type Batch struct {
	ID          string
	GeneratedAt time.Time
	ExpiresAt   time.Time
	Items       []CandidateItem
}

// ActiveAt reports whether the batch is unexpired at t.
func (b Batch) ActiveAt(t time.Time) bool {
	return b.ExpiresAt.After(t)
}

// AssignmentStatus enumerates the review lifecycle of an assignment.
type AssignmentStatus string

const (
	StatusPending  AssignmentStatus = "pending"
	StatusAccepted AssignmentStatus = "accepted"
	StatusRejected AssignmentStatus = "rejected"
)

// Terminal reports whether the status is a final decision.
func (s AssignmentStatus) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// ParseDecision maps user input onto a terminal status.
// The legacy LIKED/DISLIKED spellings are accepted as well.
func ParseDecision(value string) (AssignmentStatus, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "accepted", "liked":
		return StatusAccepted, nil
	case "rejected", "disliked":
		return StatusRejected, nil
	default:
		return "", fmt.Errorf("decision %q: %w", value, ErrValidation)
	}
}

// InterestDelta is the score change a decision contributes to its topic.
func InterestDelta(status AssignmentStatus) int {
	switch status {
	case StatusAccepted:
		return 1
	case StatusRejected:
		return -1
	default:
		return 0
	}
}

// Assignment binds one candidate item to one user within one batch.
type Assignment struct {
	ID        string
	UserID    string
	BatchID   string
	ItemID    string
	Topic     string
	Position  int
	Status    AssignmentStatus
	CreatedAt time.Time
	DecidedAt time.Time
	Item      CandidateItem
}

// InterestScore is the running per-user, per-topic total of decisions.
type InterestScore struct {
	UserID string
	Topic  string
	Score  int
}

// OnboardingState is the per-user completion latch.
type OnboardingState struct {
	UserID      string
	Completed   bool
	CompletedAt time.Time
}
