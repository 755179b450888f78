package extract

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"moviesync/internal/modkit/repokit"
	"moviesync/internal/platform/store"
	"moviesync/internal/services/etl/domain"
)

// fakeDB runs transactions inline and counts them
type fakeDB struct {
	pingErr error
	txs     atomic.Int32
	opts    []store.TxOptions
}

func (f *fakeDB) Ping(context.Context) error { return f.pingErr }

func (f *fakeDB) Exec(context.Context, string, ...any) (store.CommandTag, error) {
	return nil, errors.New("unexpected exec")
}

func (f *fakeDB) Query(context.Context, string, ...any) (store.Rows, error) {
	return nil, errors.New("unexpected query")
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) store.Row { return nil }

func (f *fakeDB) Tx(ctx context.Context, fn func(store.RowQuerier) error) error {
	return f.TxWith(ctx, store.TxOptions{}, fn)
}

func (f *fakeDB) TxWith(_ context.Context, o store.TxOptions, fn func(store.RowQuerier) error) error {
	f.txs.Add(1)
	f.opts = append(f.opts, o)
	return fn(f)
}

// fakeSource answers from canned data and records what it was asked
type fakeSource struct {
	records []domain.ChangeRecord
	films   map[string]domain.FilmRow
	genres  []domain.GenreRow
	persons []domain.PersonRoleRow
	err     error

	since       []time.Time
	genreFilms  []string
	personFilms []string
}

func (f *fakeSource) binder() repokit.Binder[domain.SourceRepo] {
	return repokit.BindFunc[domain.SourceRepo](func(repokit.Queryer) domain.SourceRepo { return f })
}

func (f *fakeSource) DetectChanges(_ context.Context, since time.Time, _ int) ([]domain.ChangeRecord, error) {
	f.since = append(f.since, since)
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.ChangeRecord
	for _, r := range f.records {
		if r.ChangedAt.After(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeSource) Films(_ context.Context, ids []string) ([]domain.FilmRow, error) {
	var out []domain.FilmRow
	for _, id := range ids {
		if row, ok := f.films[id]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeSource) GenresOfFilms(_ context.Context, ids []string) ([]domain.GenreRow, error) {
	f.genreFilms = ids
	if len(ids) == 0 {
		return nil, nil
	}
	return f.genres, nil
}

func (f *fakeSource) PersonRolesOfFilms(_ context.Context, ids []string) ([]domain.PersonRoleRow, error) {
	f.personFilms = ids
	if len(ids) == 0 {
		return nil, nil
	}
	return f.persons, nil
}

func (f *fakeSource) Genres(context.Context, []string) ([]domain.GenreRow, error) { return nil, nil }

func (f *fakeSource) PersonRoles(context.Context, []string) ([]domain.PersonRoleRow, error) {
	return nil, nil
}
