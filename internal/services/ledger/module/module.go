// Package module wires the run ledger as a modkit module
package module

import (
	"moviesync/internal/modkit"
	phttp "moviesync/internal/platform/net/http"
	ledgerdom "moviesync/internal/services/ledger/domain"
	ledgerrepo "moviesync/internal/services/ledger/repo"
)

// Ports exported by the ledger module
type Ports struct {
	Recorder ledgerdom.Recorder
}

// Module implements module.Module for the run ledger
type Module struct {
	ports Ports
}

// New records into clickhouse when deps.CH is set, otherwise discards
func New(deps modkit.Deps) *Module {
	var rec ledgerdom.Recorder = ledgerrepo.Nop{}
	if deps.CH != nil {
		rec = ledgerrepo.NewClickHouse(deps.CH)
		deps.Log.Debug().Str("table", ledgerrepo.Table).Msg("run ledger enabled")
	}
	return &Module{ports: Ports{Recorder: rec}}
}

// Name returns the module name
func (m *Module) Name() string { return "ledger" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// MountRoutes is a no-op
func (m *Module) MountRoutes(_ phttp.Router) {}
