package guardrails

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	perr "moviesync/internal/platform/errors"
	cpdom "moviesync/internal/services/checkpoint/domain"

	"github.com/google/uuid"
)

// ErrLeaseHeld signals another owner holds a live checkpoint lease
var ErrLeaseHeld = perr.New(perr.ErrorCodeConflict, "etl: checkpoint lease already held")

// ErrLeaseLost signals the lease moved to another owner before we finished
var ErrLeaseLost = cpdom.ErrLeaseLost

// NewOwner returns a lease owner id of the form host:pid:short-uuid
func NewOwner() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s:%d:%s", host, os.Getpid(), uuid.NewString()[:8])
}

// Lease is a held checkpoint lease. Release and Commit end it; after either
// has succeeded further calls are no-ops
type Lease struct {
	store cpdom.Store
	owner string
	cp    cpdom.Checkpoint

	mu   sync.Mutex
	done bool
}

// Acquire claims the checkpoint for owner. A live lease held by someone else
// returns ErrLeaseHeld along with the current record
func Acquire(ctx context.Context, st cpdom.Store, owner string, ttl time.Duration) (*Lease, cpdom.Checkpoint, error) {
	cp, ok, err := st.Acquire(ctx, owner, ttl)
	if err != nil {
		return nil, cp, err
	}
	if !ok {
		return nil, cp, ErrLeaseHeld
	}
	return &Lease{store: st, owner: owner, cp: cp}, cp, nil
}

// Owner returns the lease holder id
func (l *Lease) Owner() string { return l.owner }

// Checkpoint returns the record as it was when the lease was taken
func (l *Lease) Checkpoint() cpdom.Checkpoint { return l.cp }

// Release unlocks the checkpoint keeping its cursor
func (l *Lease) Release(ctx context.Context) error {
	return l.end(func() error { return l.store.Release(ctx, l.owner) })
}

// Commit advances the cursor to next and unlocks
func (l *Lease) Commit(ctx context.Context, next time.Time) error {
	return l.end(func() error { return l.store.Commit(ctx, l.owner, next) })
}

// Done reports whether the lease was released or committed
func (l *Lease) Done() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}

func (l *Lease) end(fn func() error) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		return nil
	}
	if err := fn(); err != nil {
		return err
	}
	l.done = true
	return nil
}
