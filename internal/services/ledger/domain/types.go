// Package domain describes the run ledger: one audit row per sync tick
package domain

import (
	"context"
	"time"
)

// tick outcomes
const (
	OutcomeSynced    = "synced"
	OutcomeIdle      = "idle"
	OutcomeContended = "contended"
	OutcomeFailed    = "failed"
)

// Run summarizes one tick
type Run struct {
	RunID      string    `json:"run_id"`
	Owner      string    `json:"owner"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Outcome    string    `json:"outcome"`
	CursorFrom time.Time `json:"cursor_from"`
	CursorTo   time.Time `json:"cursor_to"`
	Films      int       `json:"films"`
	Genres     int       `json:"genres"`
	Persons    int       `json:"persons"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Redriven   int       `json:"redriven"`
	Error      string    `json:"error,omitempty"`
}

// Duration is the wall time of the run
func (r Run) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Recorder appends runs to the ledger
type Recorder interface {
	Record(ctx context.Context, r Run) error
}
