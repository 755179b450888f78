// Package module wires the checkpoint store as a modkit module
package module

import (
	"fmt"

	"moviesync/internal/modkit"
	phttp "moviesync/internal/platform/net/http"
	cpdom "moviesync/internal/services/checkpoint/domain"
	cprepo "moviesync/internal/services/checkpoint/repo"
)

// Ports exported by the checkpoint module
type Ports struct {
	Store cpdom.Store
}

// Module implements module.Module for the checkpoint store
type Module struct {
	deps  modkit.Deps
	opts  Options
	ports Ports
}

// New picks the backend named by CORE_ETL_CHECKPOINT_BACKEND. The matching
// connection must be present on deps
func New(deps modkit.Deps) *Module {
	opts := FromConfig(deps.Cfg)

	var st cpdom.Store
	switch opts.Backend {
	case BackendSQLite:
		if deps.Lite == nil {
			panic("checkpoint: sqlite backend requires deps.Lite")
		}
		st = cprepo.NewSQLite(deps.Lite, opts.Key, nil)
	case BackendMemory:
		st = cprepo.NewMemory(nil)
	default:
		if deps.RDS == nil {
			panic("checkpoint: redis backend requires deps.RDS")
		}
		st = cprepo.NewRedis(deps.RDS, opts.Key, nil)
	}

	deps.Log.Debug().Str("backend", opts.Backend).Str("key", opts.Key).Msg("checkpoint store ready")

	return &Module{deps: deps, opts: opts, ports: Ports{Store: st}}
}

// Name returns the module name
func (m *Module) Name() string { return "checkpoint" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Describe names the backend and record for status output
func (m *Module) Describe() string { return fmt.Sprintf("%s:%s", m.opts.Backend, m.opts.Key) }

// MountRoutes is a no-op: the checkpoint is reported through the etl status route
func (m *Module) MountRoutes(_ phttp.Router) {}
