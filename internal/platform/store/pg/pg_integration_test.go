//go:build integration_pg

package pg

import (
	"context"
	"testing"
	"time"

	"moviesync/internal/platform/testkit/containers"

	"github.com/jackc/pgx/v5/pgxpool"
)

func TestOpen_AppNameAndPoolMutator_Integration(t *testing.T) {
	dsn := containers.Postgres(t)

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	p, err := Open(ctx, Config{URL: dsn, MaxConns: 2, AppName: "moviesync-it"}, nil, func(pc *pgxpool.Config) {
		pc.MinConns = 1
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(p.Close)

	if got := p.Pool.Config().MaxConns; got != 2 {
		t.Fatalf("MaxConns = %d, want 2", got)
	}

	var app string
	if err := p.Pool.QueryRow(ctx, `select current_setting('application_name')`).Scan(&app); err != nil {
		t.Fatalf("application_name: %v", err)
	}
	if app != "moviesync-it" {
		t.Fatalf("application_name = %q", app)
	}
}
