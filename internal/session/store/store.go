// Package store provides the authoritative keyed storage for session
// records: a concurrent-safe in-memory implementation and a drop-in
// Postgres-backed implementation behind the same interface.
package store

import (
	"context"
	"errors"
	"time"

	"banking-session-core/internal/session/domain"
)

// ErrNotFound is returned by Get for an unknown session identifier.
var ErrNotFound = errors.New("session not found")

// SweepResult reports what one sweep pass did. Expired holds records the
// sweep transitioned from Active to Expired, so the caller can emit
// their audit events; Removed counts physically deleted records.
type SweepResult struct {
	Expired []*domain.SessionRecord
	Removed int
}

// Store is the session store contract. Implementations must make every
// mutating operation atomically observable by concurrent readers.
// Multi-step read-then-write sequences are the caller's critical section.
type Store interface {
	// Put inserts or overwrites the record by its ID and indexes it under
	// its user.
	Put(ctx context.Context, rec *domain.SessionRecord) error
	// Get returns the record or ErrNotFound.
	Get(ctx context.Context, sessionID string) (*domain.SessionRecord, error)
	// Remove deletes the record from the primary map and the user index.
	// Removing an absent ID is a no-op.
	Remove(ctx context.Context, sessionID string) error
	// ListByUser returns the user's records sorted descending by
	// LastAccessedAt.
	ListByUser(ctx context.Context, userID string) ([]*domain.SessionRecord, error)
	// Sweep transitions Active records past expiry to Expired and removes
	// terminal records idle longer than retention.
	Sweep(ctx context.Context, now time.Time, retention time.Duration) (SweepResult, error)
}
