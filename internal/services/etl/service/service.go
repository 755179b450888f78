// Package service runs the sync loop: extract, transform, load, then redrive
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"moviesync/internal/platform/logger"
	"moviesync/internal/services/etl/domain"
	"moviesync/internal/services/etl/guardrails"
	"moviesync/internal/services/etl/transform"
	ledgerdom "moviesync/internal/services/ledger/domain"

	"github.com/google/uuid"
)

// Extractor reads the next batch under the checkpoint lease
type Extractor interface {
	Extract(ctx context.Context, owner string) (domain.Batch, *guardrails.Lease, error)
}

// Loader indexes a batch and commits its cursor through the lease
type Loader interface {
	Load(ctx context.Context, lease *guardrails.Lease, docs domain.Documents, next time.Time) (domain.LoadResult, error)
}

// Redriver retries dead letters
type Redriver interface {
	Redrive(ctx context.Context) (domain.RedriveResult, error)
}

// loop states
const (
	StateIdle    = "idle"
	StateRunning = "running"
)

// Config controls the loop
type Config struct {
	Interval time.Duration
	// Owner identifies this process on the checkpoint lease
	Owner string
}

// Status is the in-memory view of the loop served by the ops server
type Status struct {
	State        string         `json:"state"`
	Owner        string         `json:"owner"`
	Interval     string         `json:"interval"`
	Ticks        int64          `json:"ticks"`
	LastSyncedAt *time.Time     `json:"last_synced_at,omitempty"`
	Last         *ledgerdom.Run `json:"last,omitempty"`
}

// Service drives ticks sequentially; one batch is in flight at a time
type Service struct {
	Extract  Extractor
	Load     Loader
	Redrive  Redriver // nil disables redrive
	Ledger   ledgerdom.Recorder
	Cfg      Config
	Now      func() time.Time
	tickLock sync.Mutex

	mu     sync.RWMutex
	status Status
}

// New constructs the loop. A nil ledger records nothing
func New(ex Extractor, ld Loader, rd Redriver, ledger ledgerdom.Recorder, cfg Config) *Service {
	if ex == nil || ld == nil {
		panic("etl service requires an extractor and a loader")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Owner == "" {
		cfg.Owner = guardrails.NewOwner()
	}
	return &Service{
		Extract: ex,
		Load:    ld,
		Redrive: rd,
		Ledger:  ledger,
		Cfg:     cfg,
		Now:     time.Now,
		status:  Status{State: StateIdle, Owner: cfg.Owner, Interval: cfg.Interval.String()},
	}
}

// Run ticks immediately and then every Cfg.Interval until ctx is done.
// Cancellation is honored between ticks only
func (s *Service) Run(ctx context.Context) error {
	log := logger.Named("etl")
	log.Info().Str("owner", s.Cfg.Owner).Dur("interval", s.Cfg.Interval).Msg("sync loop started")

	ticker := time.NewTicker(s.Cfg.Interval)
	defer ticker.Stop()
	for ctx.Err() == nil {
		_, _ = s.RunOnce(ctx)
		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}
	log.Info().Msg("sync loop stopped")
	return nil
}

// RunOnce executes a single tick and records it. A contended or idle tick
// is not an error. The tick ignores cancellation of ctx once started
func (s *Service) RunOnce(ctx context.Context) (ledgerdom.Run, error) {
	s.tickLock.Lock()
	defer s.tickLock.Unlock()

	runID := uuid.NewString()
	ctx = logger.WithRun(context.WithoutCancel(ctx), runID, s.Cfg.Owner)
	log := logger.C(ctx)

	run := ledgerdom.Run{RunID: runID, Owner: s.Cfg.Owner, StartedAt: s.Now().UTC()}
	s.begin()

	err := s.sync(ctx, &run)
	if run.Outcome == ledgerdom.OutcomeSynced || run.Outcome == ledgerdom.OutcomeIdle {
		s.redrive(ctx, &run)
	}

	run.FinishedAt = s.Now().UTC()
	if err != nil {
		run.Error = err.Error()
		log.Error().Err(err).Dur("took", run.Duration()).Msg("tick failed")
	} else {
		log.Info().
			Str("outcome", run.Outcome).
			Int("succeeded", run.Succeeded).
			Int("failed", run.Failed).
			Int("redriven", run.Redriven).
			Dur("took", run.Duration()).
			Msg("tick finished")
	}

	if s.Ledger != nil {
		if lerr := s.Ledger.Record(ctx, run); lerr != nil {
			log.Warn().Err(lerr).Msg("run ledger write failed")
		}
	}
	s.end(run)
	return run, err
}

// sync runs extract, transform and load. On any failure after extract the
// lease is released so the checkpoint is left as the tick found it
func (s *Service) sync(ctx context.Context, run *ledgerdom.Run) error {
	batch, lease, err := s.Extract.Extract(ctx, s.Cfg.Owner)
	run.CursorFrom, run.CursorTo = batch.Cursor, batch.Cursor
	switch {
	case errors.Is(err, guardrails.ErrLeaseHeld):
		run.Outcome = ledgerdom.OutcomeContended
		return nil
	case errors.Is(err, domain.ErrNoChanges):
		run.Outcome = ledgerdom.OutcomeIdle
		return nil
	case err != nil:
		run.Outcome = ledgerdom.OutcomeFailed
		return err
	}

	docs, next := transform.Transform(batch)
	run.Films, run.Genres, run.Persons = len(docs.Films), len(docs.Genres), len(docs.Persons)

	res, err := s.Load.Load(ctx, lease, docs, next)
	run.Succeeded, run.Failed = res.SuccessCount, len(res.FailedIDs)
	if err != nil {
		run.Outcome = ledgerdom.OutcomeFailed
		if !lease.Done() {
			if rerr := lease.Release(ctx); rerr != nil {
				logger.C(ctx).Error().Err(rerr).Msg("release after failed load")
			}
		}
		return err
	}
	run.Outcome = ledgerdom.OutcomeSynced
	run.CursorTo = next
	return nil
}

// redrive failures are logged; they never fail the tick
func (s *Service) redrive(ctx context.Context, run *ledgerdom.Run) {
	if s.Redrive == nil {
		return
	}
	res, err := s.Redrive.Redrive(ctx)
	run.Redriven = res.Redriven
	if err != nil {
		logger.C(ctx).Warn().Err(err).Msg("redrive failed")
	}
}

// Status returns a snapshot of the loop state
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.status
	if st.Last != nil {
		last := *st.Last
		st.Last = &last
	}
	return st
}

func (s *Service) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.State = StateRunning
}

func (s *Service) end(run ledgerdom.Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.State = StateIdle
	s.status.Ticks++
	s.status.Last = &run
	if run.Outcome == ledgerdom.OutcomeSynced || run.Outcome == ledgerdom.OutcomeIdle {
		at := run.FinishedAt
		s.status.LastSyncedAt = &at
	}
}
