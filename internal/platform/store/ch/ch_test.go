package ch

import (
	"context"
	"testing"
)

func TestBuildClientInfo(t *testing.T) {
	info := BuildClientInfo(" moviesync-etl ", "v1.2.3")
	if len(info.Products) != 5 {
		t.Fatalf("products = %d, want 5", len(info.Products))
	}
	if p := info.Products[0]; p.Name != "moviesync" || p.Version != "v1.2.3" {
		t.Fatalf("product[0] = %+v", p)
	}
	if p := info.Products[1]; p.Name != "role" || p.Version != "moviesync-etl" {
		t.Fatalf("role not trimmed: %+v", p)
	}
	if BuildClientInfo("x", "").Products[0].Version == "" {
		t.Fatalf("empty tag should fall back to module version")
	}
}

func TestOpen_BadDSN(t *testing.T) {
	if _, err := Open(context.Background(), Config{URL: "://nope"}); err == nil {
		t.Fatalf("expected dsn error")
	}
}

func TestNilClient(t *testing.T) {
	var c *CH
	if err := c.Ping(context.Background()); err == nil {
		t.Fatalf("nil Ping should fail")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("nil Close: %v", err)
	}
}
