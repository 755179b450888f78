package repo

import (
	"context"

	"moviesync/internal/services/ledger/domain"
)

// Nop discards runs; used when no ledger is configured
type Nop struct{}

// Record does nothing
func (Nop) Record(context.Context, domain.Run) error { return nil }

var _ domain.Recorder = Nop{}
