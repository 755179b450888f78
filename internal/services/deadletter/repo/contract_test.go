package repo

import (
	"context"
	"testing"
	"time"

	"moviesync/internal/services/deadletter/domain"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func letter(id string, at time.Duration) domain.Letter {
	return domain.Letter{Index: "movies", ID: id, DetectedAt: t0.Add(at)}
}

func runQueueContract(t *testing.T, newQueue func(t *testing.T) domain.Queue) {
	t.Helper()
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		q := newQueue(t)
		due, err := q.Due(ctx, 10)
		if err != nil || len(due) != 0 {
			t.Fatalf("Due on empty queue = %v, %v", due, err)
		}
		if n, err := q.Len(ctx); err != nil || n != 0 {
			t.Fatalf("Len = %d, %v", n, err)
		}
	})

	t.Run("oldest first with limit", func(t *testing.T) {
		q := newQueue(t)
		if err := q.Push(ctx, letter("c", 2*time.Second), letter("a", 0), letter("b", time.Second)); err != nil {
			t.Fatalf("Push: %v", err)
		}
		due, err := q.Due(ctx, 2)
		if err != nil {
			t.Fatalf("Due: %v", err)
		}
		if len(due) != 2 || due[0].ID != "a" || due[1].ID != "b" {
			t.Fatalf("unexpected order %+v", due)
		}
		if !due[0].DetectedAt.Equal(t0) {
			t.Fatalf("detected at %v, want %v", due[0].DetectedAt, t0)
		}
	})

	t.Run("push keeps first detection", func(t *testing.T) {
		q := newQueue(t)
		_ = q.Push(ctx, letter("a", 0))
		_ = q.Push(ctx, letter("a", time.Hour))
		due, _ := q.Due(ctx, 0)
		if len(due) != 1 || !due[0].DetectedAt.Equal(t0) {
			t.Fatalf("expected single letter at t0, got %+v", due)
		}
	})

	t.Run("fail counts attempts", func(t *testing.T) {
		q := newQueue(t)
		l := letter("a", 0)
		_ = q.Push(ctx, l)
		for want := 1; want <= 3; want++ {
			n, err := q.Fail(ctx, l, "mapper_parsing_exception")
			if err != nil || n != want {
				t.Fatalf("Fail #%d = %d, %v", want, n, err)
			}
		}
		due, _ := q.Due(ctx, 1)
		if due[0].Attempts != 3 || due[0].Reason != "mapper_parsing_exception" {
			t.Fatalf("unexpected meta %+v", due[0])
		}
	})

	t.Run("ack and purge", func(t *testing.T) {
		q := newQueue(t)
		a, b, c := letter("a", 0), letter("b", 1), letter("c", 2)
		_ = q.Push(ctx, a, b, c)
		if err := q.Ack(ctx, a); err != nil {
			t.Fatalf("Ack: %v", err)
		}
		if n, _ := q.Len(ctx); n != 2 {
			t.Fatalf("Len after ack = %d", n)
		}
		n, err := q.Purge(ctx)
		if err != nil || n != 2 {
			t.Fatalf("Purge = %d, %v", n, err)
		}
		if n, _ := q.Len(ctx); n != 0 {
			t.Fatalf("Len after purge = %d", n)
		}
	})

	t.Run("indices are separate members", func(t *testing.T) {
		q := newQueue(t)
		g := domain.Letter{Index: "genres", ID: "a", DetectedAt: t0}
		_ = q.Push(ctx, letter("a", 0), g)
		if n, _ := q.Len(ctx); n != 2 {
			t.Fatalf("Len = %d, want 2", n)
		}
	})
}
