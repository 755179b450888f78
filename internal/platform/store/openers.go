package store

import (
	"context"
	"database/sql"
	"time"

	perr "moviesync/internal/platform/errors"
	"moviesync/internal/platform/retry"
	chx "moviesync/internal/platform/store/ch"
	"moviesync/internal/platform/store/es"
	"moviesync/internal/platform/store/lite"
	"moviesync/internal/platform/store/pg"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 3 * time.Second

// pingWithTimeout bounds each individual probe attempt
func pingWithTimeout(ping func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		toCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		return ping(toCtx)
	}
}

// openPG opens pg and wraps it with our sql adapter once the pool answers a ping
func openPG(ctx context.Context, cfg Config, s *Store) (TxRunner, error) {
	var tracer pg.QueryTracer
	if cfg.PG.LogSQL {
		tracer = pg.Tracer(s.Log)
	}

	p, err := pg.Open(ctx, pg.Config{
		URL:      cfg.PG.URL,
		MaxConns: cfg.PG.MaxConns,
		SlowMs:   cfg.PG.SlowQueryMs,
		AppName:  cfg.AppName,
	}, tracer, nil)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "pg config")
	}

	// ping the pool directly so boot retries do not flood the sql trace
	if err := retry.Probe(ctx, "pg", cfg.PG.MaxElapsed, pingWithTimeout(p.Pool.Ping)); err != nil {
		p.Close()
		return nil, err
	}
	return newPGAdapter(p), nil
}

func openES(ctx context.Context, cfg Config, s *Store) (*es.Client, error) {
	c, err := es.Open(es.Config{
		Addresses: cfg.ES.URLs,
		Username:  cfg.ES.Username,
		Password:  cfg.ES.Password,
	})
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "es config")
	}
	if err := retry.Probe(ctx, "es", cfg.ES.MaxElapsed, pingWithTimeout(c.Ping)); err != nil {
		return nil, err
	}
	s.Log.Debug().Strs("urls", cfg.ES.URLs).Msg("es ready")
	return c, nil
}

func openRDS(ctx context.Context, cfg Config, s *Store) (redis.UniversalClient, error) {
	c := redis.NewClient(&redis.Options{
		Addr:       cfg.RDS.Addr,
		Password:   cfg.RDS.Password,
		DB:         cfg.RDS.DB,
		ClientName: cfg.AppName,
	})
	ping := func(ctx context.Context) error { return c.Ping(ctx).Err() }
	if err := retry.Probe(ctx, "redis", time.Minute, pingWithTimeout(ping)); err != nil {
		_ = c.Close()
		return nil, err
	}
	s.Log.Debug().Str("addr", cfg.RDS.Addr).Int("db", cfg.RDS.DB).Msg("redis ready")
	return c, nil
}

func openLite(ctx context.Context, cfg Config, _ *Store) (*sql.DB, error) {
	db, err := lite.Open(ctx, cfg.Lite.Path)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeState, "sqlite %s", cfg.Lite.Path)
	}
	return db, nil
}

func openCH(ctx context.Context, cfg Config, _ *Store) (Clickhouse, error) {
	c, err := chx.Open(ctx, chx.Config{URL: cfg.CH.URL, Role: cfg.CH.Role})
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "clickhouse open")
	}
	return c, nil
}
