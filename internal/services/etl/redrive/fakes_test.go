package redrive

import (
	"context"
	"errors"
	"time"

	"moviesync/internal/modkit/repokit"
	"moviesync/internal/platform/store"
	"moviesync/internal/services/etl/domain"
)

type fakeDB struct{ txs int }

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

func (f *fakeDB) TxWith(_ context.Context, _ store.TxOptions, fn func(store.RowQuerier) error) error {
	f.txs++
	return fn(f)
}

// fakeSource serves projections by id
type fakeSource struct {
	films   map[string]domain.FilmRow
	genres  map[string]domain.GenreRow
	persons map[string][]domain.PersonRoleRow
	err     error
}

func (f *fakeSource) binder() repokit.Binder[domain.SourceRepo] {
	return repokit.BindFunc[domain.SourceRepo](func(repokit.Queryer) domain.SourceRepo { return f })
}

func (f *fakeSource) DetectChanges(context.Context, time.Time, int) ([]domain.ChangeRecord, error) {
	panic("redrive must not detect changes")
}

func (f *fakeSource) GenresOfFilms(context.Context, []string) ([]domain.GenreRow, error) {
	panic("redrive reads genres by id")
}

func (f *fakeSource) PersonRolesOfFilms(context.Context, []string) ([]domain.PersonRoleRow, error) {
	panic("redrive reads persons by id")
}

func (f *fakeSource) Films(_ context.Context, ids []string) ([]domain.FilmRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.FilmRow
	for _, id := range ids {
		if r, ok := f.films[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeSource) Genres(_ context.Context, ids []string) ([]domain.GenreRow, error) {
	var out []domain.GenreRow
	for _, id := range ids {
		if r, ok := f.genres[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeSource) PersonRoles(_ context.Context, ids []string) ([]domain.PersonRoleRow, error) {
	var out []domain.PersonRoleRow
	for _, id := range ids {
		out = append(out, f.persons[id]...)
	}
	return out, nil
}

// fakeOut refuses the ids in reject
type fakeOut struct {
	reject map[string]string
	err    error
	sent   []domain.Document
}

func (f *fakeOut) Deliver(_ context.Context, docs []domain.Document) (int, []domain.Rejection, error) {
	if f.err != nil {
		return 0, nil, f.err
	}
	f.sent = append(f.sent, docs...)
	var out []domain.Rejection
	for _, d := range docs {
		if reason, ok := f.reject[d.DocumentID()]; ok {
			out = append(out, domain.Rejection{Index: d.IndexName(), ID: d.DocumentID(), Reason: reason})
		}
	}
	return len(docs) - len(out), out, nil
}
