// Package pinned holds saved (prompt, query) pairs a dashboard replays.
package pinned

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("pinned: chart not found")

type Chart struct {
	ID        int64     `json:"id"`
	Prompt    string    `json:"prompt"`
	Query     string    `json:"query"`
	IsPinned  bool      `json:"isPinned"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Store interface {
	HealthCheck(ctx context.Context) error
	Pin(ctx context.Context, prompt, query string) (Chart, error)
	// ListPinned returns charts with IsPinned set, newest first.
	ListPinned(ctx context.Context) ([]Chart, error)
	// FindPinned returns the pinned chart with exactly this prompt and query.
	FindPinned(ctx context.Context, prompt, query string) (Chart, error)
	// GetPinned returns a pinned chart by id.
	GetPinned(ctx context.Context, id int64) (Chart, error)
	// Unpin clears IsPinned. Unknown ids return ErrNotFound.
	Unpin(ctx context.Context, id int64) error
}
