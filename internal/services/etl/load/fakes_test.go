package load

import (
	"context"
	"sync"

	"moviesync/internal/services/etl/domain"
)

// fakeSink refuses ids listed in reject and records every call
type fakeSink struct {
	mu       sync.Mutex
	pingErr  error
	indexErr error
	reject   map[string]string
	existing map[string]bool

	created []string
	indexed []domain.Document
	calls   int
}

func (f *fakeSink) Ping(context.Context) error { return f.pingErr }

func (f *fakeSink) EnsureIndex(_ context.Context, name string, body []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existing == nil {
		f.existing = map[string]bool{}
	}
	if f.existing[name] {
		return false, nil
	}
	if len(body) == 0 {
		panic("empty index body for " + name)
	}
	f.existing[name] = true
	f.created = append(f.created, name)
	return true, nil
}

func (f *fakeSink) Index(_ context.Context, docs []domain.Document) ([]domain.Rejection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.indexErr != nil {
		return nil, f.indexErr
	}
	var out []domain.Rejection
	for _, d := range docs {
		if reason, ok := f.reject[d.DocumentID()]; ok {
			out = append(out, domain.Rejection{Index: d.IndexName(), ID: d.DocumentID(), Reason: reason})
			continue
		}
		f.indexed = append(f.indexed, d)
	}
	return out, nil
}
