// Package module wires extract, load, redrive and the sync loop into the
// etl module and mounts its ops routes
package module

import (
	"context"
	"time"

	"moviesync/internal/modkit"
	phttp "moviesync/internal/platform/net/http"
	"moviesync/internal/platform/store"
	"moviesync/internal/services/etl/domain"
	"moviesync/internal/services/etl/extract"
	"moviesync/internal/services/etl/guardrails"
	etlhttp "moviesync/internal/services/etl/http"
	"moviesync/internal/services/etl/load"
	"moviesync/internal/services/etl/redrive"
	"moviesync/internal/services/etl/repo"
	"moviesync/internal/services/etl/service"
)

// Ports exposed by the etl module
type Ports struct {
	Runner *service.Service
	Loader *load.Loader
}

// Module implements module.Module
type Module struct {
	deps    modkit.Deps
	opts    Options
	ports   Ports
	cp      domain.Ports
	started time.Time
}

// New builds the sync loop. Cross module collaborators arrive through
// modkit.WithPorts(domain.Ports); deps must carry PG and ES
func New(deps modkit.Deps, overrides Options, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("etl")}, opts...)...)

	ports, ok := modkit.PortsAs[domain.Ports](b)
	if !ok {
		panic("etl module: expected WithPorts(etl/domain.Ports)")
	}
	if ports.Checkpoint == nil {
		panic("etl module: Ports missing Checkpoint")
	}
	if deps.PG == nil || deps.ES == nil {
		panic("etl module: deps must carry PG and ES")
	}

	o := FromConfig(deps.Cfg).merge(overrides)
	if err := o.Validate(); err != nil {
		panic(err)
	}
	if !o.DLQEnabled {
		ports.DeadLetters = nil
	}

	timeouts := guardrails.Timeouts{Extract: o.ExtractTimeout, Load: o.LoadTimeout, Redrive: o.RedriveTimeout}
	source := repo.NewPG()

	ex := extract.New(deps.PG, source, ports.Checkpoint, extract.Config{
		Limit:            o.Limit,
		LeaseTTL:         o.LeaseTTL,
		SourceMaxElapsed: o.SourceMaxElapsed,
		Timeouts:         timeouts,
	})
	ld := load.New(load.NewESSink(deps.ES), ports.DeadLetters, load.Config{
		SinkMaxElapsed: o.SinkMaxElapsed,
		Timeouts:       timeouts,
	})

	var rd service.Redriver
	if ports.DeadLetters != nil {
		rd = redrive.New(deps.PG, source, ld, ports.DeadLetters, redrive.Config{
			Batch:       o.DLQBatch,
			MaxAttempts: o.DLQMaxAttempts,
			Timeouts:    timeouts,
		})
	}

	svc := service.New(ex, ld, rd, ports.Ledger, service.Config{Interval: o.Interval, Owner: o.Owner})

	deps.Log.Info().
		Int("limit", o.Limit).
		Dur("interval", o.Interval).
		Dur("lease_ttl", o.LeaseTTL).
		Bool("dlq", rd != nil).
		Str("owner", svc.Cfg.Owner).
		Msg("etl module ready")

	return &Module{
		deps:    deps,
		opts:    o,
		ports:   Ports{Runner: svc, Loader: ld},
		cp:      ports,
		started: time.Now(),
	}
}

// Name returns the module name
func (m *Module) Name() string { return "etl" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Options returns the effective options
func (m *Module) Options() Options { return m.opts }

// MountRoutes mounts /healthz, /readyz, /status and /version
func (m *Module) MountRoutes(r phttp.Router) {
	etlhttp.Register(r, etlhttp.Deps{
		StartedAt:   m.started,
		Status:      m.ports.Runner.Status,
		Checkpoint:  m.cp.Checkpoint,
		DeadLetters: m.cp.DeadLetters,
		Checks:      checks(m.deps),
	})
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// checks lists the backends /readyz pings; absent ones are left out
func checks(d modkit.Deps) map[string]etlhttp.Pinger {
	out := map[string]etlhttp.Pinger{}
	if p, ok := d.PG.(store.Pinger); ok {
		out["pg"] = p
	}
	if d.ES != nil {
		out["es"] = d.ES
	}
	if d.RDS != nil {
		out["redis"] = pingFunc(func(ctx context.Context) error { return d.RDS.Ping(ctx).Err() })
	}
	if d.Lite != nil {
		out["sqlite"] = pingFunc(d.Lite.PingContext)
	}
	if d.CH != nil {
		out["clickhouse"] = d.CH
	}
	return out
}
