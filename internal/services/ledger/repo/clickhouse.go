// Package repo holds run ledger backends
package repo

import (
	"context"
	"sync"

	perr "moviesync/internal/platform/errors"
	"moviesync/internal/platform/store"
	"moviesync/internal/services/ledger/domain"
)

// Table is the ledger table name
const Table = "etl_runs"

const createTable = `
CREATE TABLE IF NOT EXISTS etl_runs (
	run_id      String,
	owner       LowCardinality(String),
	started_at  DateTime64(3, 'UTC'),
	finished_at DateTime64(3, 'UTC'),
	outcome     LowCardinality(String),
	cursor_from DateTime64(6, 'UTC'),
	cursor_to   DateTime64(6, 'UTC'),
	films       UInt32,
	genres      UInt32,
	persons     UInt32,
	succeeded   UInt32,
	failed      UInt32,
	redriven    UInt32,
	duration_ms UInt64,
	error       String
) ENGINE = MergeTree
PARTITION BY toYYYYMM(started_at)
ORDER BY (started_at, run_id)
`

// ClickHouse writes one row per run into etl_runs
type ClickHouse struct {
	ch store.Clickhouse

	mu    sync.Mutex
	ready bool
}

// NewClickHouse returns a recorder over ch; the table is created on first write
func NewClickHouse(ch store.Clickhouse) *ClickHouse {
	if ch == nil {
		panic("ledger: nil clickhouse")
	}
	return &ClickHouse{ch: ch}
}

// Record appends r
func (c *ClickHouse) Record(ctx context.Context, r domain.Run) error {
	if err := c.ensure(ctx); err != nil {
		return err
	}
	if err := c.ch.Insert(ctx, Table, [][]any{row(r)}); err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "ledger: insert run")
	}
	return nil
}

func (c *ClickHouse) ensure(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready {
		return nil
	}
	if err := c.ch.Exec(ctx, createTable); err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "ledger: create table")
	}
	c.ready = true
	return nil
}

// row orders r to match the etl_runs columns
func row(r domain.Run) []any {
	ms := r.Duration().Milliseconds()
	if ms < 0 {
		ms = 0
	}
	return []any{
		r.RunID,
		r.Owner,
		r.StartedAt.UTC(),
		r.FinishedAt.UTC(),
		r.Outcome,
		r.CursorFrom.UTC(),
		r.CursorTo.UTC(),
		uint32(r.Films),
		uint32(r.Genres),
		uint32(r.Persons),
		uint32(r.Succeeded),
		uint32(r.Failed),
		uint32(r.Redriven),
		uint64(ms),
		r.Error,
	}
}

var _ domain.Recorder = (*ClickHouse)(nil)
