// Package repo holds the checkpoint store backends
package repo

import (
	"context"
	"sync"
	"time"

	"moviesync/internal/services/checkpoint/domain"
)

// Clock returns the current time; swapped in tests
type Clock func() time.Time

// Memory keeps the checkpoint in process. Used for dry runs and tests
type Memory struct {
	mu  sync.Mutex
	cp  *domain.Checkpoint
	now Clock
}

// NewMemory returns an empty in-process store
func NewMemory(now Clock) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{now: now}
}

func (m *Memory) load() domain.Checkpoint {
	if m.cp == nil {
		return domain.Initial()
	}
	return *m.cp
}

func (m *Memory) store(cp domain.Checkpoint) { m.cp = &cp }

// Get returns the record
func (m *Memory) Get(context.Context) (domain.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(), nil
}

// Set overwrites the record
func (m *Memory) Set(_ context.Context, cp domain.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp.Cursor = cp.Cursor.UTC()
	m.store(cp)
	return nil
}

// Acquire claims the lease under the store mutex
func (m *Memory) Acquire(_ context.Context, owner string, ttl time.Duration) (domain.Checkpoint, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.load().Claim(owner, ttl, m.now())
	if ok {
		m.store(cp)
	}
	return cp, ok, nil
}

// Release unlocks the lease held by owner
func (m *Memory) Release(_ context.Context, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, err := m.load().Unlock(owner)
	if err != nil {
		return err
	}
	if m.cp != nil {
		m.store(cp)
	}
	return nil
}

// Commit advances the cursor and unlocks
func (m *Memory) Commit(_ context.Context, owner string, cursor time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, err := m.load().Advance(owner, cursor)
	if err != nil {
		return err
	}
	m.store(cp)
	return nil
}

var _ domain.Store = (*Memory)(nil)
