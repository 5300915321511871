// Package scriptcache persists correction scripts keyed by structural
// fingerprint, so files with the same defect shape reuse a script instead
// of asking the model again.
//
// There is at most one script per fingerprint. Saving again replaces the
// script text and appends a cost record; the token cost reported on lookup
// is the sum of those records. A lookup hit increments the use count in the
// same atomic step that reads the snapshot.
package scriptcache

import (
	"context"
	"time"
)

// Script is a cached correction script.
type Script struct {
	ID          string    `json:"id"`
	Fingerprint string    `json:"fingerprint"`
	Text        string    `json:"script"`
	Description string    `json:"description"`
	UseCount    int       `json:"use_count"`
	TokenCost   int       `json:"token_cost"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store is the cache protocol shared by every backend.
type Store interface {
	// Lookup returns the script for fp with its use count already
	// incremented, or nil, nil when there is none.
	Lookup(ctx context.Context, fp string) (*Script, error)

	// Save inserts or replaces the script for fp, records tokenCost as a
	// new cost entry and returns the script id.
	Save(ctx context.Context, fp, text, description string, tokenCost int) (string, error)
}
