package modkit

import (
	"testing"

	"moviesync/internal/platform/config"
	"moviesync/internal/platform/logger"
	"moviesync/internal/platform/store"
	"moviesync/internal/platform/store/es"
)

func TestFromStore_NilStoreLeavesBackendsNil(t *testing.T) {
	t.Parallel()

	d := FromStore(logger.Logger{}, config.New(), nil)
	if d.PG != nil || d.ES != nil || d.RDS != nil || d.Lite != nil || d.CH != nil {
		t.Fatalf("expected nil backends, got %+v", d)
	}
}

func TestFromStore_CopiesBackends(t *testing.T) {
	t.Parallel()

	cl, err := es.Open(es.Config{Addresses: []string{"http://127.0.0.1:9200"}})
	if err != nil {
		t.Fatalf("es.Open: %v", err)
	}
	st := &store.Store{ES: cl}

	d := FromStore(logger.Logger{}, config.New().Prefix("X_"), st)
	if d.ES != cl {
		t.Fatal("expected ES client to be copied")
	}
	if d.PG != nil || d.RDS != nil {
		t.Fatal("disabled backends should stay nil")
	}
}
