package extract

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	perr "moviesync/internal/platform/errors"
	"moviesync/internal/platform/store"
	cpdom "moviesync/internal/services/checkpoint/domain"
	cprepo "moviesync/internal/services/checkpoint/repo"
	"moviesync/internal/services/etl/domain"
	"moviesync/internal/services/etl/guardrails"
)

func fixture() *fakeSource {
	return &fakeSource{
		records: []domain.ChangeRecord{
			{FilmID: "A", Reasons: domain.ReasonFilm, ChangedAt: T},
			{FilmID: "B", Reasons: domain.ReasonGenre, ChangedAt: T},
			{FilmID: "B", Reasons: domain.ReasonPerson, ChangedAt: T},
			{FilmID: "C", Reasons: domain.ReasonPerson, ChangedAt: T.Add(time.Second)},
		},
		films: map[string]domain.FilmRow{
			"A": {ID: "A", Title: "Alpha"},
			"B": {ID: "B", Title: "Beta"},
			"C": {ID: "C", Title: "Gamma"},
		},
		genres:  []domain.GenreRow{{ID: "g1", Name: "Drama"}},
		persons: []domain.PersonRoleRow{{PersonID: "p1", FullName: "Ann", Role: "actor"}},
	}
}

func newExtractor(db *fakeDB, src *fakeSource, cp cpdom.Store, limit int) *Extractor {
	return New(db, src.binder(), cp, Config{Limit: limit, LeaseTTL: time.Minute, SourceMaxElapsed: time.Millisecond})
}

func TestExtract_BatchHoldsLeaseUntilCommit(t *testing.T) {
	ctx := context.Background()
	db, src, cp := &fakeDB{}, fixture(), cprepo.NewMemory(nil)
	x := newExtractor(db, src, cp, 1)

	b, lease, err := x.Extract(ctx, "me")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !reflect.DeepEqual(b.FilmIDs(), []string{"A", "B"}) || !b.NextCursor.Equal(T) {
		t.Fatalf("unexpected batch %v next %v", b.FilmIDs(), b.NextCursor)
	}
	if b.Records[1].Reasons != domain.ReasonGenre|domain.ReasonPerson {
		t.Fatalf("reasons not merged: %v", b.Records[1].Reasons)
	}
	if !reflect.DeepEqual(src.genreFilms, []string{"B"}) || !reflect.DeepEqual(src.personFilms, []string{"B"}) {
		t.Fatalf("projections not restricted by reason: %v %v", src.genreFilms, src.personFilms)
	}
	for _, f := range b.Films {
		if !f.ChangedAt.Equal(T) {
			t.Fatalf("film %s ChangedAt = %v", f.ID, f.ChangedAt)
		}
	}
	if db.opts[0] != store.Snapshot {
		t.Fatalf("extraction should run in a snapshot, got %+v", db.opts[0])
	}

	rec, _ := cp.Get(ctx)
	if !rec.Locked || rec.Owner != "me" || lease == nil || lease.Owner() != "me" {
		t.Fatalf("lease should stay held: %+v", rec)
	}
}

func TestExtract_Idempotent(t *testing.T) {
	ctx := context.Background()
	db, src, cp := &fakeDB{}, fixture(), cprepo.NewMemory(nil)
	x := newExtractor(db, src, cp, 2)

	first, lease, err := x.Extract(ctx, "me")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	_ = lease.Release(ctx)
	second, lease, err := x.Extract(ctx, "me")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	_ = lease.Release(ctx)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("batches differ:\n%+v\n%+v", first, second)
	}
}

func TestExtract_ContendedIsIdleWithoutSourceQuery(t *testing.T) {
	ctx := context.Background()
	db, src, cp := &fakeDB{}, fixture(), cprepo.NewMemory(nil)
	if _, ok, _ := cp.Acquire(ctx, "other", time.Hour); !ok {
		t.Fatalf("seed lease")
	}

	b, lease, err := newExtractor(db, src, cp, 10).Extract(ctx, "me")
	if !errors.Is(err, guardrails.ErrLeaseHeld) || lease != nil {
		t.Fatalf("Extract = %v, %v", lease, err)
	}
	if db.txs.Load() != 0 || len(src.since) != 0 {
		t.Fatalf("source was queried while contended")
	}
	if !b.Cursor.Equal(cpdom.Epoch) {
		t.Fatalf("cursor = %v", b.Cursor)
	}
	rec, _ := cp.Get(ctx)
	if rec.Owner != "other" {
		t.Fatalf("record changed: %+v", rec)
	}
}

func TestExtract_NoChangesReleasesLease(t *testing.T) {
	ctx := context.Background()
	db, src, cp := &fakeDB{}, fixture(), cprepo.NewMemory(nil)
	cursor := T.Add(time.Hour)
	_ = cp.Set(ctx, cpdom.Checkpoint{Cursor: cursor})

	_, lease, err := newExtractor(db, src, cp, 10).Extract(ctx, "me")
	if !errors.Is(err, domain.ErrNoChanges) || lease != nil {
		t.Fatalf("Extract = %v, %v", lease, err)
	}
	rec, _ := cp.Get(ctx)
	if rec.Locked || !rec.Cursor.Equal(cursor) {
		t.Fatalf("idle tick changed the record: %+v", rec)
	}
	if !src.since[0].Equal(cursor) {
		t.Fatalf("detected from %v, want %v", src.since[0], cursor)
	}
}

func TestExtract_ErrorReleasesLease(t *testing.T) {
	ctx := context.Background()
	db, src, cp := &fakeDB{}, fixture(), cprepo.NewMemory(nil)
	src.err = perr.Newf(perr.ErrorCodeDB, "boom")

	_, lease, err := newExtractor(db, src, cp, 10).Extract(ctx, "me")
	if !perr.IsCode(err, perr.ErrorCodeDB) || lease != nil {
		t.Fatalf("Extract = %v, %v", lease, err)
	}
	if rec, _ := cp.Get(ctx); rec.Locked {
		t.Fatalf("lease left held after error: %+v", rec)
	}
}

func TestExtract_SourceDownTouchesNothing(t *testing.T) {
	ctx := context.Background()
	db, src, cp := &fakeDB{pingErr: errors.New("connection refused")}, fixture(), cprepo.NewMemory(nil)

	_, _, err := newExtractor(db, src, cp, 10).Extract(ctx, "me")
	if !perr.IsCode(err, perr.ErrorCodeUnavailable) {
		t.Fatalf("Extract err = %v", err)
	}
	rec, _ := cp.Get(ctx)
	if rec != cpdom.Initial() {
		t.Fatalf("record changed: %+v", rec)
	}
}

func TestNew_PanicsOnMissingDeps(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	New(nil, nil, nil, Config{})
}
