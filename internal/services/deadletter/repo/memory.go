// Package repo holds the dead-letter queue backends
package repo

import (
	"context"
	"sort"
	"sync"

	"moviesync/internal/services/deadletter/domain"
)

// Memory is an in-process queue for dry runs and tests
type Memory struct {
	mu sync.Mutex
	m  map[string]domain.Letter
}

// NewMemory returns an empty queue
func NewMemory() *Memory { return &Memory{m: map[string]domain.Letter{}} }

// Push adds letters not yet queued
func (q *Memory) Push(_ context.Context, letters ...domain.Letter) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, l := range letters {
		if _, ok := q.m[l.Key()]; ok {
			continue
		}
		l.DetectedAt = l.DetectedAt.UTC()
		q.m[l.Key()] = l
	}
	return nil
}

// Due returns up to limit letters, oldest first
func (q *Memory) Due(_ context.Context, limit int) ([]domain.Letter, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.Letter, 0, len(q.m))
	for _, l := range q.m {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DetectedAt.Equal(out[j].DetectedAt) {
			return out[i].DetectedAt.Before(out[j].DetectedAt)
		}
		return out[i].Key() < out[j].Key()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Ack removes letters
func (q *Memory) Ack(_ context.Context, letters ...domain.Letter) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, l := range letters {
		delete(q.m, l.Key())
	}
	return nil
}

// Fail bumps the attempt count of a queued letter
func (q *Memory) Fail(_ context.Context, l domain.Letter, reason string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	cur, ok := q.m[l.Key()]
	if !ok {
		return l.Attempts + 1, nil
	}
	cur.Attempts++
	cur.Reason = reason
	q.m[l.Key()] = cur
	return cur.Attempts, nil
}

// Len returns the number of queued letters
func (q *Memory) Len(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.m)), nil
}

// Purge drops every letter and returns how many there were
func (q *Memory) Purge(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := int64(len(q.m))
	q.m = map[string]domain.Letter{}
	return n, nil
}

var _ domain.Queue = (*Memory)(nil)
