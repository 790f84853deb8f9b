package store

import (
	"context"
	"time"

	"github.com/dshills/tribunal/internal/review"
)

// SessionSummary is one row of the session history.
type SessionSummary struct {
	ID           string
	Repo         string
	Source       string
	Target       string
	Provider     string
	Model        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Rounds       int
	LastDecision review.Decision
}

// Store defines the transcript persistence interface.
type Store interface {
	// SaveRound appends a completed round, creating the session on first use.
	SaveRound(ctx context.Context, st *review.State, r *review.Round) error
	ListSessions(ctx context.Context, limit int) ([]SessionSummary, error)
	// GetSession loads a session by ID or unique ID prefix.
	GetSession(ctx context.Context, id string) (*review.State, error)

	Migrate(ctx context.Context) error
	Close() error
}
