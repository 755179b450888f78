package repo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"moviesync/internal/services/checkpoint/domain"
)

// fakeClock is a settable Clock shared by a store under test
type fakeClock struct{ ms atomic.Int64 }

func newFakeClock(t time.Time) *fakeClock {
	c := &fakeClock{}
	c.ms.Store(t.UnixMilli())
	return c
}

func (c *fakeClock) Now() time.Time          { return time.UnixMilli(c.ms.Load()).UTC() }
func (c *fakeClock) Advance(d time.Duration) { c.ms.Add(d.Milliseconds()) }

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// runStoreContract exercises the lease rules every backend must honor
func runStoreContract(t *testing.T, newStore func(t *testing.T, now Clock) domain.Store) {
	ctx := context.Background()

	t.Run("missing record is initial", func(t *testing.T) {
		s := newStore(t, newFakeClock(base).Now)
		cp, err := s.Get(ctx)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !cp.Cursor.Equal(domain.Epoch) || cp.Locked {
			t.Fatalf("expected initial record, got %+v", cp)
		}
	})

	t.Run("acquire then contend", func(t *testing.T) {
		s := newStore(t, newFakeClock(base).Now)
		cp, ok, err := s.Acquire(ctx, "a", time.Minute)
		if err != nil || !ok {
			t.Fatalf("first acquire: ok=%v err=%v", ok, err)
		}
		if !cp.Locked || cp.Owner != "a" || !cp.Cursor.Equal(domain.Epoch) {
			t.Fatalf("unexpected record after acquire %+v", cp)
		}
		cp, ok, err = s.Acquire(ctx, "b", time.Minute)
		if err != nil || ok {
			t.Fatalf("contended acquire: ok=%v err=%v", ok, err)
		}
		if cp.Owner != "a" {
			t.Fatalf("contended acquire must not change the owner, got %q", cp.Owner)
		}
	})

	t.Run("expired lease is reclaimable, live one is not", func(t *testing.T) {
		clk := newFakeClock(base)
		s := newStore(t, clk.Now)
		if _, ok, _ := s.Acquire(ctx, "a", time.Minute); !ok {
			t.Fatal("acquire a")
		}
		clk.Advance(59 * time.Second)
		if _, ok, _ := s.Acquire(ctx, "b", time.Minute); ok {
			t.Fatal("live lease was reclaimed")
		}
		clk.Advance(2 * time.Second)
		cp, ok, err := s.Acquire(ctx, "b", time.Minute)
		if err != nil || !ok || cp.Owner != "b" {
			t.Fatalf("expired lease not reclaimed: %+v ok=%v err=%v", cp, ok, err)
		}
		if err := s.Commit(ctx, "a", base.Add(time.Hour)); !errors.Is(err, domain.ErrLeaseLost) {
			t.Fatalf("stale owner commit: want ErrLeaseLost, got %v", err)
		}
	})

	t.Run("held lease refuses its own owner", func(t *testing.T) {
		clk := newFakeClock(base)
		s := newStore(t, clk.Now)
		if _, ok, _ := s.Acquire(ctx, "a", time.Minute); !ok {
			t.Fatal("acquire a")
		}
		cp, ok, err := s.Acquire(ctx, "a", time.Minute)
		if err != nil || ok {
			t.Fatalf("second acquire by holder: ok=%v err=%v", ok, err)
		}
		if !cp.Locked || cp.Owner != "a" || !cp.LeaseUntil.Equal(base.Add(time.Minute)) {
			t.Fatalf("refused acquire must leave the lease untouched, got %+v", cp)
		}
		clk.Advance(time.Minute)
		if _, ok, _ := s.Acquire(ctx, "a", time.Minute); !ok {
			t.Fatal("holder should reclaim an expired lease")
		}
	})

	t.Run("zero ttl never expires", func(t *testing.T) {
		clk := newFakeClock(base)
		s := newStore(t, clk.Now)
		if _, ok, _ := s.Acquire(ctx, "a", 0); !ok {
			t.Fatal("acquire a")
		}
		clk.Advance(1000 * time.Hour)
		if _, ok, _ := s.Acquire(ctx, "b", time.Minute); ok {
			t.Fatal("strict lease was reclaimed")
		}
	})

	t.Run("commit advances and unlocks, never backwards", func(t *testing.T) {
		s := newStore(t, newFakeClock(base).Now)
		t1 := time.Date(2024, 2, 1, 10, 0, 0, 123456000, time.UTC)

		_, _, _ = s.Acquire(ctx, "a", time.Minute)
		if err := s.Commit(ctx, "a", t1); err != nil {
			t.Fatalf("commit: %v", err)
		}
		cp, _ := s.Get(ctx)
		if !cp.Cursor.Equal(t1) || cp.Locked || cp.Owner != "" {
			t.Fatalf("unexpected record after commit %+v", cp)
		}

		_, _, _ = s.Acquire(ctx, "a", time.Minute)
		if err := s.Commit(ctx, "a", t1.Add(-time.Hour)); err != nil {
			t.Fatalf("commit older: %v", err)
		}
		cp, _ = s.Get(ctx)
		if !cp.Cursor.Equal(t1) {
			t.Fatalf("cursor moved backwards to %v", cp.Cursor)
		}
	})

	t.Run("release keeps cursor and rejects non owners", func(t *testing.T) {
		s := newStore(t, newFakeClock(base).Now)
		t1 := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
		if err := s.Set(ctx, domain.Checkpoint{Cursor: t1}); err != nil {
			t.Fatalf("Set: %v", err)
		}
		_, _, _ = s.Acquire(ctx, "a", time.Minute)

		if err := s.Release(ctx, "b"); !errors.Is(err, domain.ErrLeaseLost) {
			t.Fatalf("non-owner release: want ErrLeaseLost, got %v", err)
		}
		if cp, _ := s.Get(ctx); cp.Owner != "a" || !cp.Locked {
			t.Fatalf("non-owner release must leave the record untouched, got %+v", cp)
		}
		if err := s.Release(ctx, "a"); err != nil {
			t.Fatalf("release: %v", err)
		}
		cp, _ := s.Get(ctx)
		if cp.Locked || !cp.Cursor.Equal(t1) {
			t.Fatalf("unexpected record after release %+v", cp)
		}
		if err := s.Release(ctx, "a"); err != nil {
			t.Fatalf("second release should be a no-op, got %v", err)
		}
	})

	t.Run("commit without lease is lost", func(t *testing.T) {
		s := newStore(t, newFakeClock(base).Now)
		if err := s.Commit(ctx, "a", base); !errors.Is(err, domain.ErrLeaseLost) {
			t.Fatalf("want ErrLeaseLost, got %v", err)
		}
	})

	t.Run("set round trips every field", func(t *testing.T) {
		s := newStore(t, newFakeClock(base).Now)
		want := domain.Checkpoint{
			Cursor:     time.Date(2023, 7, 8, 9, 10, 11, 120000000, time.UTC),
			Locked:     true,
			Owner:      "h:1:deadbeef",
			LeaseUntil: base.Add(time.Minute),
		}
		if err := s.Set(ctx, want); err != nil {
			t.Fatalf("Set: %v", err)
		}
		got, err := s.Get(ctx)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !got.Cursor.Equal(want.Cursor) || got.Locked != want.Locked || got.Owner != want.Owner || !got.LeaseUntil.Equal(want.LeaseUntil) {
			t.Fatalf("got %+v want %+v", got, want)
		}
	})

	t.Run("only one of many concurrent acquirers wins", func(t *testing.T) {
		s := newStore(t, newFakeClock(base).Now)
		var wins atomic.Int32
		var wg sync.WaitGroup
		for _, owner := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
			wg.Add(1)
			go func(o string) {
				defer wg.Done()
				if _, ok, err := s.Acquire(ctx, o, time.Minute); err == nil && ok {
					wins.Add(1)
				}
			}(owner)
		}
		wg.Wait()
		if wins.Load() != 1 {
			t.Fatalf("expected exactly one winner, got %d", wins.Load())
		}
	})
}
