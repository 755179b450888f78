package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
)

// fakeTx satisfies TxRunner; ping/close behaviour is opt-in
type fakeTx struct {
	pingErr  error
	closed   bool
	closeErr error
}

func (f *fakeTx) Exec(context.Context, string, ...any) (CommandTag, error) { return nil, nil }
func (f *fakeTx) Query(context.Context, string, ...any) (Rows, error)      { return nil, nil }
func (f *fakeTx) QueryRow(context.Context, string, ...any) Row             { return nil }
func (f *fakeTx) Tx(ctx context.Context, fn func(RowQuerier) error) error  { return fn(f) }
func (f *fakeTx) TxWith(ctx context.Context, _ TxOptions, fn func(RowQuerier) error) error {
	return fn(f)
}
func (f *fakeTx) Ping(context.Context) error { return f.pingErr }
func (f *fakeTx) Close() error               { f.closed = true; return f.closeErr }

type fakeCH struct {
	pingErr error
	closed  bool
}

func (f *fakeCH) Exec(context.Context, string, ...any) error     { return nil }
func (f *fakeCH) Insert(context.Context, string, [][]any) error  { return nil }
func (f *fakeCH) Ping(context.Context) error                     { return f.pingErr }
func (f *fakeCH) Close() error                                   { f.closed = true; return nil }

func TestGuard(t *testing.T) {
	t.Parallel()

	var nilStore *Store
	if err := nilStore.Guard(context.Background()); err == nil {
		t.Fatalf("nil store should fail")
	}
	if err := (&Store{}).Guard(context.Background()); err != nil {
		t.Fatalf("empty store: %v", err)
	}

	ok := &Store{PG: &fakeTx{}, CH: &fakeCH{}}
	if err := ok.Guard(context.Background()); err != nil {
		t.Fatalf("healthy store: %v", err)
	}

	bad := &Store{PG: &fakeTx{pingErr: errors.New("pg down")}, CH: &fakeCH{pingErr: errors.New("ch down")}}
	err := bad.Guard(context.Background())
	if err == nil {
		t.Fatalf("expected joined error")
	}
	for _, want := range []string{"pg: pg down", "clickhouse: ch down"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("Guard error %q missing %q", err, want)
		}
	}
}

func TestClose(t *testing.T) {
	t.Parallel()

	var nilStore *Store
	if err := nilStore.Close(context.Background()); err != nil {
		t.Fatalf("nil Close: %v", err)
	}

	pg := &fakeTx{closeErr: errors.New("boom")}
	ch := &fakeCH{}
	s := &Store{PG: pg, CH: ch}
	err := s.Close(context.Background())
	if !pg.closed || !ch.closed {
		t.Fatalf("backends not closed: pg=%v ch=%v", pg.closed, ch.closed)
	}
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("Close error = %v", err)
	}
}

func TestPgxTxOptions(t *testing.T) {
	t.Parallel()

	got := pgxTxOptions(Snapshot)
	if got.IsoLevel != pgx.RepeatableRead || got.AccessMode != pgx.ReadOnly {
		t.Fatalf("Snapshot mapped to %+v", got)
	}
	if d := pgxTxOptions(TxOptions{}); d.IsoLevel != "" || d.AccessMode != "" {
		t.Fatalf("zero options mapped to %+v", d)
	}
	if s := pgxTxOptions(TxOptions{Isolation: " Serializable "}); s.IsoLevel != pgx.Serializable {
		t.Fatalf("isolation not normalised: %+v", s)
	}
}

type sliceRows struct {
	vals []int
	i    int
	err  error
}

func (r *sliceRows) Next() bool { r.i++; return r.i <= len(r.vals) }
func (r *sliceRows) Scan(dst ...any) error {
	*(dst[0].(*int)) = r.vals[r.i-1]
	return nil
}
func (r *sliceRows) Err() error { return r.err }
func (r *sliceRows) Close()     {}

type rowsQuerier struct {
	fakeTx
	rows *sliceRows
}

func (q rowsQuerier) Query(context.Context, string, ...any) (Rows, error) { return q.rows, nil }

func scanInt(r Row) (int, error) {
	var v int
	return v, r.Scan(&v)
}

func TestManyAndOne(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	got, err := Many(ctx, &rowsQuerier{rows: &sliceRows{vals: []int{1, 2, 3}}}, scanInt, "q")
	if err != nil || len(got) != 3 || got[2] != 3 {
		t.Fatalf("Many = %v, %v", got, err)
	}

	if _, err := One(ctx, &rowsQuerier{rows: &sliceRows{}}, scanInt, "q"); err == nil {
		t.Fatalf("One on empty should be not found")
	}
	if v, err := One(ctx, &rowsQuerier{rows: &sliceRows{vals: []int{7}}}, scanInt, "q"); err != nil || v != 7 {
		t.Fatalf("One = %d, %v", v, err)
	}
	if _, err := One(ctx, &rowsQuerier{rows: &sliceRows{vals: []int{1, 2}}}, scanInt, "q"); err == nil {
		t.Fatalf("One on two rows should fail")
	}
}
