// Package module wires the dead-letter queue as a modkit module
package module

import (
	"moviesync/internal/modkit"
	phttp "moviesync/internal/platform/net/http"
	dlqdom "moviesync/internal/services/deadletter/domain"
	dlqrepo "moviesync/internal/services/deadletter/repo"
)

// Ports exported by the dead-letter module
type Ports struct {
	Queue dlqdom.Queue
}

// Module implements module.Module for the dead-letter queue
type Module struct {
	ports Ports
}

// New builds the queue named by CORE_ETL_DLQ_BACKEND
func New(deps modkit.Deps) *Module {
	opts := FromConfig(deps.Cfg)

	var q dlqdom.Queue
	switch opts.Backend {
	case BackendMemory:
		q = dlqrepo.NewMemory()
	default:
		if deps.RDS == nil {
			panic("deadletter: redis backend requires deps.RDS")
		}
		q = dlqrepo.NewRedis(deps.RDS, opts.Key)
	}
	deps.Log.Debug().Str("backend", opts.Backend).Str("key", opts.Key).Msg("dead-letter queue ready")

	return &Module{ports: Ports{Queue: q}}
}

// Name returns the module name
func (m *Module) Name() string { return "deadletter" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// MountRoutes is a no-op
func (m *Module) MountRoutes(_ phttp.Router) {}
