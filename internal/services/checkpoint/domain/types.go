// Package domain holds the checkpoint record and the rules for leasing it
package domain

import (
	"time"

	perr "moviesync/internal/platform/errors"
)

// Epoch is the cursor of a checkpoint that has never been committed
var Epoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// ErrLeaseLost is returned when a release or commit comes from a process that
// no longer owns the lease; the record is left untouched
var ErrLeaseLost = perr.New(perr.ErrorCodeConflict, "checkpoint: lease lost")

// Checkpoint is the durable sync position plus its run lease
type Checkpoint struct {
	// Cursor is the last change timestamp fully synchronized through
	Cursor time.Time
	// Locked is true while a run is in flight or after a run crashed mid-way
	Locked bool
	// Owner identifies the lease holder as host:pid:short-uuid
	Owner string
	// LeaseUntil is when the lease may be reclaimed; zero never expires
	LeaseUntil time.Time
}

// Initial is the record a missing key decodes to
func Initial() Checkpoint { return Checkpoint{Cursor: Epoch} }

// Expired reports whether a held lease has passed its deadline
func (c Checkpoint) Expired(now time.Time) bool {
	return c.Locked && !c.LeaseUntil.IsZero() && !now.Before(c.LeaseUntil)
}

// Claimable reports whether the lease may be taken at now. A held lease is
// refused to every owner, its own holder included, until it expires or is unlocked
func (c Checkpoint) Claimable(now time.Time) bool {
	return !c.Locked || c.Expired(now)
}

// Claim returns the record locked by owner, or ok=false while a live lease is held
func (c Checkpoint) Claim(owner string, ttl time.Duration, now time.Time) (Checkpoint, bool) {
	if !c.Claimable(now) {
		return c, false
	}
	c.Locked = true
	c.Owner = owner
	c.LeaseUntil = time.Time{}
	if ttl > 0 {
		c.LeaseUntil = now.Add(ttl)
	}
	return c, true
}

// Unlock releases the lease held by owner and keeps the cursor.
// Unlocking an unlocked record is a no-op
func (c Checkpoint) Unlock(owner string) (Checkpoint, error) {
	if !c.Locked {
		return c, nil
	}
	if c.Owner != owner {
		return c, ErrLeaseLost
	}
	return Checkpoint{Cursor: c.Cursor}, nil
}

// Advance moves the cursor forward to cursor (never backwards) and releases the lease
func (c Checkpoint) Advance(owner string, cursor time.Time) (Checkpoint, error) {
	if !c.Locked || c.Owner != owner {
		return c, ErrLeaseLost
	}
	next := c.Cursor
	if cursor.After(next) {
		next = cursor
	}
	return Checkpoint{Cursor: next.UTC()}, nil
}
