// Package domain describes dead letters: documents the search index rejected
// that are waiting to be retried
package domain

import (
	"context"
	"strings"
	"time"
)

// Letter references one rejected document
type Letter struct {
	Index      string    `json:"index"`
	ID         string    `json:"id"`
	DetectedAt time.Time `json:"detected_at"`
	Attempts   int       `json:"attempts"`
	Reason     string    `json:"reason,omitempty"`
}

// Key is the queue member for l
func (l Letter) Key() string { return l.Index + "/" + l.ID }

// ParseKey splits a queue member into index and id
func ParseKey(key string) (index, id string, ok bool) {
	index, id, ok = strings.Cut(key, "/")
	if !ok || index == "" || id == "" {
		return "", "", false
	}
	return index, id, true
}

// Queue stores dead letters ordered by detection time. Pushing a letter that
// is already queued keeps the original detection time and attempts
type Queue interface {
	Push(ctx context.Context, letters ...Letter) error
	// Due returns up to limit letters, oldest first
	Due(ctx context.Context, limit int) ([]Letter, error)
	Ack(ctx context.Context, letters ...Letter) error
	// Fail records another failed attempt and returns the new attempt count
	Fail(ctx context.Context, l Letter, reason string) (int, error)
	Len(ctx context.Context) (int64, error)
	Purge(ctx context.Context) (int64, error)
}
