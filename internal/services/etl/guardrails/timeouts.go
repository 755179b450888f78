// Package guardrails holds the lease handle and time budgets for a sync tick
package guardrails

import (
	"context"
	"time"
)

// Timeouts is the budget bundle for one tick. Zero values mean no extra
// timeout at that level
type Timeouts struct {
	// Extract caps the snapshot transaction that detects and projects changes
	Extract time.Duration

	// Load caps index creation and the bulk request
	Load time.Duration

	// Redrive caps one redrive pass
	Redrive time.Duration
}

// ForExtract returns a sub context for extraction bounded by Extract and any remaining parent budget
func ForExtract(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Extract)
}

// ForLoad returns a sub context for loading bounded by Load and any remaining parent budget
func ForLoad(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Load)
}

// ForRedrive returns a sub context for a redrive pass bounded by Redrive and any remaining parent budget
func ForRedrive(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Redrive)
}

// Remaining returns the time until the deadline on ctx or zero when none is set or already expired
func Remaining(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		d := time.Until(dl)
		if d > 0 {
			return d
		}
	}
	return 0
}

// withChildTimeout chooses the tighter of d and any parent remainder.
// Never extends the parent deadline
func withChildTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	if rem := Remaining(parent); rem > 0 && rem < d {
		return context.WithTimeout(parent, rem)
	}
	return context.WithTimeout(parent, d)
}
