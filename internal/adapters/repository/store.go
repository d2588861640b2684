// Package repository holds the ranked standings used to answer top-N and
// per-user rank queries.
package repository

import (
	"context"

	"github.com/okian/gridpick/internal/domain/model"
	"github.com/okian/gridpick/internal/domain/types"
)

// Entry is a ranked standings row.
type Entry = types.Entry

// Store provides read/write access to the ranking state. Rows are ordered by
// total score descending, then username ascending; equal scores share a rank.
type Store interface {
	// Replace swaps the whole table for rows.
	Replace(ctx context.Context, rows []model.Standing) error

	// Upsert sets one user's row.
	Upsert(ctx context.Context, row model.Standing) error

	// Rank returns the current rank and score for a user.
	// Returns ErrNotFound if the user is unknown.
	Rank(ctx context.Context, username string) (Entry, error)

	// TopN returns the top-N entries in rank order.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of users in the standings.
	Count(ctx context.Context) int
}
