package cli

import (
	"context"
	"sync"

	"moviesync/internal/core/version"
	"moviesync/internal/modkit"
	"moviesync/internal/modkit/module"
	"moviesync/internal/platform/config"
	"moviesync/internal/platform/logger"
	"moviesync/internal/platform/store"
	cpdom "moviesync/internal/services/checkpoint/domain"
	cpmod "moviesync/internal/services/checkpoint/module"
	dlqdom "moviesync/internal/services/deadletter/domain"
	dlqmod "moviesync/internal/services/deadletter/module"
)

// Indexer is the index surface the indices commands need
type Indexer interface {
	EnsureIndex(ctx context.Context, name string, body []byte) (created bool, err error)
	Count(ctx context.Context, index string) (int64, error)
}

// Backends resolves the durable state a command operates on
type Backends interface {
	Checkpoint(ctx context.Context) (cpdom.Store, error)
	DeadLetters(ctx context.Context) (dlqdom.Queue, error)
	Indices(ctx context.Context) (Indexer, error)
	// Ping opens every configured backend and pings them all
	Ping(ctx context.Context) error
	Close() error
}

// envBackends opens only what a command asks for, configured the same way
// as the daemon so both act on the same records
type envBackends struct {
	mu  sync.Mutex
	cfg config.Conf
	st  []*store.Store
}

// EnvBackends returns Backends read from the process environment
func EnvBackends() Backends { return &envBackends{cfg: config.New()} }

func (b *envBackends) openStore(ctx context.Context, enable func(*store.Config)) (*store.Store, error) {
	cfg := store.ConfigFromEnv(version.Service + "-ctl")
	enable(&cfg)
	st, err := store.Open(ctx, cfg, store.WithLogger(*logger.Get()))
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.st = append(b.st, st)
	b.mu.Unlock()
	return st, nil
}

func (b *envBackends) open(ctx context.Context, enable func(*store.Config)) (modkit.Deps, error) {
	st, err := b.openStore(ctx, enable)
	if err != nil {
		return modkit.Deps{}, err
	}
	return modkit.FromStore(*logger.Get(), b.cfg, st), nil
}

func (b *envBackends) Checkpoint(ctx context.Context) (cpdom.Store, error) {
	opts := cpmod.FromConfig(b.cfg)
	deps, err := b.open(ctx, func(c *store.Config) {
		c.RDS.Enabled = opts.Backend == cpmod.BackendRedis
		c.Lite.Enabled = opts.Backend == cpmod.BackendSQLite
	})
	if err != nil {
		return nil, err
	}
	return module.MustPortsOf[cpmod.Ports](cpmod.New(deps)).Store, nil
}

func (b *envBackends) DeadLetters(ctx context.Context) (dlqdom.Queue, error) {
	opts := dlqmod.FromConfig(b.cfg)
	deps, err := b.open(ctx, func(c *store.Config) { c.RDS.Enabled = opts.Backend == dlqmod.BackendRedis })
	if err != nil {
		return nil, err
	}
	return module.MustPortsOf[dlqmod.Ports](dlqmod.New(deps)).Queue, nil
}

func (b *envBackends) Indices(ctx context.Context) (Indexer, error) {
	deps, err := b.open(ctx, func(c *store.Config) { c.ES.Enabled = true })
	if err != nil {
		return nil, err
	}
	return deps.ES, nil
}

func (b *envBackends) Ping(ctx context.Context) error {
	cp := cpmod.FromConfig(b.cfg)
	dlq := dlqmod.FromConfig(b.cfg)
	st, err := b.openStore(ctx, func(c *store.Config) {
		c.PG.Enabled = c.PG.URL != ""
		c.ES.Enabled = true
		c.RDS.Enabled = cp.Backend == cpmod.BackendRedis || dlq.Backend == dlqmod.BackendRedis
		c.Lite.Enabled = cp.Backend == cpmod.BackendSQLite
	})
	if err != nil {
		return err
	}
	return st.Guard(ctx)
}

func (b *envBackends) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var first error
	for _, st := range b.st {
		if err := st.Close(context.Background()); err != nil && first == nil {
			first = err
		}
	}
	b.st = nil
	return first
}
