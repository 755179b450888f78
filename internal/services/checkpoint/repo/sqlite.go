package repo

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	perr "moviesync/internal/platform/errors"
	"moviesync/internal/services/checkpoint/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS etl_checkpoint (
	name        TEXT PRIMARY KEY,
	cursor      TEXT NOT NULL,
	locked      INTEGER NOT NULL DEFAULT 0,
	owner       TEXT NOT NULL DEFAULT '',
	lease_until INTEGER NOT NULL DEFAULT 0
)`

// SQLite keeps the checkpoint as one row of etl_checkpoint. Every lease
// transition is a single conditional UPDATE so concurrent processes sharing
// the file cannot both win
type SQLite struct {
	db   *sql.DB
	name string
	now  Clock

	mu    sync.Mutex
	ready bool
}

// NewSQLite binds the store to the row called name
func NewSQLite(db *sql.DB, name string, now Clock) *SQLite {
	if db == nil {
		panic("checkpoint.SQLite requires a non nil *sql.DB")
	}
	if now == nil {
		now = time.Now
	}
	return &SQLite{db: db, name: name, now: now}
}

// ensure creates the table once per process
func (s *SQLite) ensure(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return perr.Wrap(err, perr.ErrorCodeState, "checkpoint: create etl_checkpoint")
	}
	s.ready = true
	return nil
}

// Get returns the record
func (s *SQLite) Get(ctx context.Context) (domain.Checkpoint, error) {
	if err := s.ensure(ctx); err != nil {
		return domain.Checkpoint{}, err
	}
	var (
		cursor, owner string
		locked, lease int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT cursor, locked, owner, lease_until FROM etl_checkpoint WHERE name = ?`, s.name,
	).Scan(&cursor, &locked, &owner, &lease)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Initial(), nil
	}
	if err != nil {
		return domain.Checkpoint{}, perr.Wrap(err, perr.ErrorCodeState, "checkpoint: read")
	}
	cp := domain.Checkpoint{Locked: locked != 0, Owner: owner}
	if cp.Cursor, err = domain.ParseCursor(cursor); err != nil {
		return domain.Checkpoint{}, err
	}
	if lease > 0 {
		cp.LeaseUntil = time.UnixMilli(lease).UTC()
	}
	return cp, nil
}

// Set overwrites the record
func (s *SQLite) Set(ctx context.Context, cp domain.Checkpoint) error {
	if err := s.ensure(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO etl_checkpoint (name, cursor, locked, owner, lease_until)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			cursor = excluded.cursor,
			locked = excluded.locked,
			owner = excluded.owner,
			lease_until = excluded.lease_until`,
		s.name, domain.FormatCursor(cp.Cursor), boolInt(cp.Locked), cp.Owner, millis(cp.LeaseUntil),
	)
	return perr.WrapIf(err, perr.ErrorCodeState, "checkpoint: write")
}

// Acquire seeds the row when missing, then claims it with one guarded UPDATE
func (s *SQLite) Acquire(ctx context.Context, owner string, ttl time.Duration) (domain.Checkpoint, bool, error) {
	if err := s.ensure(ctx); err != nil {
		return domain.Checkpoint{}, false, err
	}
	now := s.now()
	var until time.Time
	if ttl > 0 {
		until = now.Add(ttl)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO etl_checkpoint (name, cursor) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`,
		s.name, domain.FormatCursor(domain.Epoch),
	); err != nil {
		return domain.Checkpoint{}, false, perr.Wrap(err, perr.ErrorCodeState, "checkpoint: seed")
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE etl_checkpoint
		   SET locked = 1, owner = ?, lease_until = ?
		 WHERE name = ?
		   AND (locked = 0 OR (lease_until > 0 AND lease_until <= ?))`,
		owner, millis(until), s.name, now.UnixMilli(),
	)
	if err != nil {
		return domain.Checkpoint{}, false, perr.Wrap(err, perr.ErrorCodeState, "checkpoint: acquire")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Checkpoint{}, false, perr.Wrap(err, perr.ErrorCodeState, "checkpoint: acquire")
	}
	cp, err := s.Get(ctx)
	return cp, n == 1, err
}

// Release unlocks the lease held by owner
func (s *SQLite) Release(ctx context.Context, owner string) error {
	if err := s.ensure(ctx); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE etl_checkpoint
		   SET locked = 0, owner = '', lease_until = 0
		 WHERE name = ? AND locked = 1 AND owner = ?`,
		s.name, owner,
	)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeState, "checkpoint: release")
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	cp, err := s.Get(ctx)
	if err != nil {
		return err
	}
	_, err = cp.Unlock(owner)
	return err
}

// Commit advances the cursor (never backwards) and unlocks
func (s *SQLite) Commit(ctx context.Context, owner string, cursor time.Time) error {
	if err := s.ensure(ctx); err != nil {
		return err
	}
	// every write goes through FormatCursor, so stored cursors order as strings
	c := domain.FormatCursor(cursor)
	res, err := s.db.ExecContext(ctx, `
		UPDATE etl_checkpoint
		   SET cursor = CASE WHEN cursor < ? THEN ? ELSE cursor END,
		       locked = 0, owner = '', lease_until = 0
		 WHERE name = ? AND locked = 1 AND owner = ?`,
		c, c, s.name, owner,
	)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeState, "checkpoint: commit")
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return domain.ErrLeaseLost
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

var _ domain.Store = (*SQLite)(nil)
