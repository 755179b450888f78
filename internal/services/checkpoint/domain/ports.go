package domain

import (
	"context"
	"time"
)

// Store persists the single checkpoint record
type Store interface {
	// Get returns the record; a missing record is Initial()
	Get(ctx context.Context) (Checkpoint, error)

	// Set overwrites the record; used by tooling, not by runs
	Set(ctx context.Context, cp Checkpoint) error

	// Acquire atomically claims the lease. acquired=false means another live
	// owner holds it and nothing was written
	Acquire(ctx context.Context, owner string, ttl time.Duration) (cp Checkpoint, acquired bool, err error)

	// Release unlocks without moving the cursor
	Release(ctx context.Context, owner string) error

	// Commit advances the cursor (never backwards) and unlocks
	Commit(ctx context.Context, owner string, cursor time.Time) error
}
