// Package extract discovers changed films since the checkpoint and assembles
// their projections inside one snapshot transaction
package extract

import (
	"context"
	"errors"
	"time"

	"moviesync/internal/modkit/repokit"
	perr "moviesync/internal/platform/errors"
	"moviesync/internal/platform/logger"
	"moviesync/internal/platform/retry"
	"moviesync/internal/platform/store"
	cpdom "moviesync/internal/services/checkpoint/domain"
	"moviesync/internal/services/etl/domain"
	"moviesync/internal/services/etl/guardrails"
)

// Config holds extraction settings
type Config struct {
	// Limit is the nominal number of distinct films per batch
	Limit int
	// LeaseTTL bounds how long a crashed run keeps the checkpoint; 0 never expires
	LeaseTTL time.Duration
	// SourceMaxElapsed is the ceiling for the source availability probe
	SourceMaxElapsed time.Duration
	Timeouts         guardrails.Timeouts
}

// Extractor turns the checkpoint cursor into a Batch
type Extractor struct {
	DB     repokit.TxRunner
	Binder repokit.Binder[domain.SourceRepo]
	CP     cpdom.Store
	Cfg    Config
}

// New constructs an Extractor
func New(db repokit.TxRunner, binder repokit.Binder[domain.SourceRepo], cp cpdom.Store, cfg Config) *Extractor {
	if db == nil {
		panic("extract.Extractor requires a non nil TxRunner")
	}
	if binder == nil {
		panic("extract.Extractor requires a non nil SourceRepo binder")
	}
	if cp == nil {
		panic("extract.Extractor requires a checkpoint store")
	}
	return &Extractor{DB: db, Binder: binder, CP: cp, Cfg: cfg}
}

// Extract probes the source, takes the checkpoint lease for owner and reads
// the next batch. On success the lease stays held for the loader to commit.
// ErrLeaseHeld and domain.ErrNoChanges are the two idle outcomes; in both
// the returned batch carries only the current cursor
func (e *Extractor) Extract(ctx context.Context, owner string) (domain.Batch, *guardrails.Lease, error) {
	log := logger.C(ctx)

	if err := retry.Probe(ctx, "source", e.Cfg.SourceMaxElapsed, e.ping); err != nil {
		return domain.Batch{}, nil, err
	}

	lease, cp, err := guardrails.Acquire(ctx, e.CP, owner, e.Cfg.LeaseTTL)
	if errors.Is(err, guardrails.ErrLeaseHeld) {
		ev := log.Info()
		if cp.LeaseUntil.IsZero() {
			// no deadline means only an operator can clear it
			ev = log.Error().Bool("liveness_fault", true)
		}
		ev.Str("holder", cp.Owner).Time("lease_until", cp.LeaseUntil).Msg("checkpoint lease held elsewhere, skipping tick")
		return domain.Batch{Cursor: cp.Cursor}, nil, err
	}
	if err != nil {
		return domain.Batch{}, nil, err
	}

	batch, err := e.read(ctx, cp.Cursor)
	if err != nil {
		if rerr := lease.Release(ctx); rerr != nil {
			log.Error().Err(rerr).Msg("release after failed extract")
		}
		return domain.Batch{Cursor: cp.Cursor}, nil, err
	}
	if len(batch.Records) == 0 {
		if err := lease.Release(ctx); err != nil {
			return batch, nil, err
		}
		log.Debug().Time("cursor", cp.Cursor).Msg("no changes since cursor")
		return batch, nil, domain.ErrNoChanges
	}

	log.Info().
		Time("cursor", cp.Cursor).
		Time("next_cursor", batch.NextCursor).
		Int("records", len(batch.Records)).
		Int("films", len(batch.Films)).
		Int("genres", len(batch.Genres)).
		Int("person_roles", len(batch.Persons)).
		Msg("extracted batch")
	return batch, lease, nil
}

func (e *Extractor) read(ctx context.Context, cursor time.Time) (domain.Batch, error) {
	ctx, cancel := guardrails.ForExtract(ctx, e.Cfg.Timeouts)
	defer cancel()

	b := domain.Batch{Cursor: cursor}
	err := repokit.BindSnapshot(ctx, e.DB, e.Binder, func(repo domain.SourceRepo) error {
		recs, err := repo.DetectChanges(ctx, cursor, e.Cfg.Limit)
		if err != nil {
			return err
		}
		b.Records, b.NextCursor = Cutoff(domain.MergeRecords(recs), e.Cfg.Limit)
		if len(b.Records) == 0 {
			return nil
		}

		if b.Films, err = repo.Films(ctx, b.FilmIDs()); err != nil {
			return err
		}
		if b.Genres, err = repo.GenresOfFilms(ctx, b.FilmIDsFor(domain.ReasonGenre)); err != nil {
			return err
		}
		b.Persons, err = repo.PersonRolesOfFilms(ctx, b.FilmIDsFor(domain.ReasonPerson))
		return err
	})
	if err != nil {
		if _, ok := perr.As(err); !ok {
			err = perr.Wrap(err, perr.ErrorCodeDB, "extract")
		}
		return domain.Batch{}, err
	}
	stampFilms(&b)
	return b, nil
}

// stampFilms sets each film row's ChangedAt to its latest record in the batch
func stampFilms(b *domain.Batch) {
	latest := make(map[string]time.Time, len(b.Records))
	for _, r := range b.Records {
		if r.ChangedAt.After(latest[r.FilmID]) {
			latest[r.FilmID] = r.ChangedAt
		}
	}
	for i := range b.Films {
		b.Films[i].ChangedAt = latest[b.Films[i].ID]
	}
}

func (e *Extractor) ping(ctx context.Context) error {
	if p, ok := e.DB.(store.Pinger); ok {
		return p.Ping(ctx)
	}
	_, err := store.Scalar[int](ctx, e.DB, `SELECT 1`)
	return err
}
