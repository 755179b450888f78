// Package store owns the connections the sync pipeline talks to.
// Everything is opened once in main, passed down explicitly and closed on exit
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"moviesync/internal/platform/logger"
	"moviesync/internal/platform/store/es"

	"github.com/redis/go-redis/v9"
)

// Store is the facade for the configured backends
// zero value is safe but does nothing
type Store struct {
	// Log is the logger used by subclients
	Log logger.Logger

	// PG is the source database seam, nil when disabled
	PG TxRunner

	// ES is the search index client, nil when disabled
	ES *es.Client

	// RDS holds the checkpoint and dead letters in production, nil when disabled
	RDS redis.UniversalClient

	// Lite is the single-node checkpoint database, nil when disabled
	Lite *sql.DB

	// CH is the run ledger seam, nil when disabled
	CH Clickhouse
}

// Row exposes the minimal scan contract a single row needs
type Row interface {
	Scan(dest ...any) error
}

// Rows exposes the minimal iteration and scan for a result set
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// CommandTag is a tiny interface to inspect command results
type CommandTag interface {
	String() string
	RowsAffected() int64
}

// RowQuerier is the read and write surface repos use for sql
type RowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// TxOptions selects isolation and access mode for a transaction
type TxOptions struct {
	// Isolation is a postgres isolation level name, e.g. "repeatable read"; empty uses the server default
	Isolation string
	ReadOnly  bool
}

// Snapshot is a read-only repeatable-read transaction: every query sees the same data
var Snapshot = TxOptions{Isolation: "repeatable read", ReadOnly: true}

// TxRunner wraps transaction execution around a function
type TxRunner interface {
	RowQuerier
	Tx(ctx context.Context, fn func(q RowQuerier) error) error
	TxWith(ctx context.Context, opts TxOptions, fn func(q RowQuerier) error) error
}

// Clickhouse is the seam for columnar writes
type Clickhouse interface {
	Exec(ctx context.Context, sql string, args ...any) error
	Insert(ctx context.Context, table string, rows [][]any) error
	Ping(ctx context.Context) error
	Close() error
}

// Pinger is any seam that can report readiness
type Pinger interface{ Ping(context.Context) error }

// Open constructs a Store with the requested backends
// backends not enabled in cfg remain nil on the Store. On failure every
// backend opened so far is closed again
func Open(ctx context.Context, cfg Config, opts ...Option) (s *Store, err error) {
	s = &Store{}
	for _, o := range opts {
		if err := o(s); err != nil {
			return nil, err
		}
	}
	s.Log = s.Log.With().Logger()

	defer func() {
		if err != nil {
			_ = s.Close(context.Background())
			s = nil
		}
	}()

	if cfg.PG.Enabled {
		if s.PG, err = openPG(ctx, cfg, s); err != nil {
			return s, err
		}
	}
	if cfg.ES.Enabled {
		if s.ES, err = openES(ctx, cfg, s); err != nil {
			return s, err
		}
	}
	if cfg.RDS.Enabled {
		if s.RDS, err = openRDS(ctx, cfg, s); err != nil {
			return s, err
		}
	}
	if cfg.Lite.Enabled {
		if s.Lite, err = openLite(ctx, cfg, s); err != nil {
			return s, err
		}
	}
	if cfg.CH.Enabled {
		if s.CH, err = openCH(ctx, cfg, s); err != nil {
			return s, err
		}
	}
	return s, nil
}

// Guard pings every configured backend and joins the failures
func (s *Store) Guard(ctx context.Context) error {
	if s == nil {
		return errors.New("nil store")
	}
	var errs []error
	check := func(name string, p any) {
		if pp, ok := p.(Pinger); ok {
			if err := pp.Ping(ctx); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
		}
	}
	if s.PG != nil {
		check("pg", s.PG)
	}
	if s.ES != nil {
		check("es", s.ES)
	}
	if s.RDS != nil {
		if err := s.RDS.Ping(ctx).Err(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if s.Lite != nil {
		if err := s.Lite.PingContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("sqlite: %w", err))
		}
	}
	if s.CH != nil {
		check("clickhouse", s.CH)
	}
	return errors.Join(errs...)
}

// Close closes all initialized backends; nil backends are ignored
func (s *Store) Close(_ context.Context) error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.CH != nil {
		errs = append(errs, s.CH.Close())
	}
	if s.Lite != nil {
		errs = append(errs, s.Lite.Close())
	}
	if s.RDS != nil {
		errs = append(errs, s.RDS.Close())
	}
	if s.ES != nil {
		errs = append(errs, s.ES.Close())
	}
	if c, ok := s.PG.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
