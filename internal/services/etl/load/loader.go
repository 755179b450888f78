// Package load delivers documents to the search index and commits the
// checkpoint once the bulk request has returned
package load

import (
	"context"
	"time"

	"moviesync/internal/platform/logger"
	"moviesync/internal/platform/retry"
	"moviesync/internal/platform/validate"
	dlqdom "moviesync/internal/services/deadletter/domain"
	"moviesync/internal/services/etl/domain"
	"moviesync/internal/services/etl/guardrails"
)

// Config holds loader settings
type Config struct {
	// SinkMaxElapsed is the ceiling for the sink availability probe
	SinkMaxElapsed time.Duration
	Timeouts       guardrails.Timeouts
}

// Loader writes documents and advances the checkpoint
type Loader struct {
	Sink domain.Sink
	// DLQ receives rejected documents; nil drops them after logging
	DLQ dlqdom.Queue
	Cfg Config
	Now func() time.Time

	defs map[string][]byte
}

// New constructs a Loader with the embedded index definitions
func New(sink domain.Sink, dlq dlqdom.Queue, cfg Config) *Loader {
	if sink == nil {
		panic("load.Loader requires a sink")
	}
	return &Loader{Sink: sink, DLQ: dlq, Cfg: cfg, Now: time.Now, defs: MustDefinitions()}
}

// EnsureIndices creates every destination index that does not exist yet
func (l *Loader) EnsureIndices(ctx context.Context) error {
	for _, name := range domain.Indices {
		created, err := l.Sink.EnsureIndex(ctx, name, l.defs[name])
		if err != nil {
			return err
		}
		if created {
			logger.C(ctx).Info().Str("index", name).Msg("created index")
		}
	}
	return nil
}

// Deliver probes the sink, ensures the indices and bulk-indexes every valid
// document. Documents failing validation are rejected without being sent
func (l *Loader) Deliver(ctx context.Context, docs []domain.Document) (indexed int, rejected []domain.Rejection, err error) {
	if err := retry.Probe(ctx, "sink", l.Cfg.SinkMaxElapsed, l.Sink.Ping); err != nil {
		return 0, nil, err
	}
	if err := l.EnsureIndices(ctx); err != nil {
		return 0, nil, err
	}

	valid := make([]domain.Document, 0, len(docs))
	for _, d := range docs {
		if verr := validate.Struct(d); verr != nil {
			rejected = append(rejected, domain.Rejection{Index: d.IndexName(), ID: d.DocumentID(), Reason: verr.Error()})
			continue
		}
		valid = append(valid, d)
	}
	if len(valid) == 0 {
		return 0, rejected, nil
	}

	refused, err := l.Sink.Index(ctx, valid)
	if err != nil {
		return 0, nil, err
	}
	return len(valid) - len(refused), append(rejected, refused...), nil
}

// Load delivers one batch, dead-letters whatever was rejected and commits
// next through lease. Rejections never hold the cursor back
func (l *Loader) Load(ctx context.Context, lease *guardrails.Lease, docs domain.Documents, next time.Time) (domain.LoadResult, error) {
	ctx, cancel := guardrails.ForLoad(ctx, l.Cfg.Timeouts)
	defer cancel()
	log := logger.C(ctx)

	indexed, refused, err := l.Deliver(ctx, docs.All())
	if err != nil {
		return domain.LoadResult{}, err
	}
	rejected := make([]domain.Rejection, 0, len(docs.Rejected)+len(refused))
	rejected = append(append(rejected, docs.Rejected...), refused...)

	res := domain.LoadResult{SuccessCount: indexed, FailedIDs: make([]string, 0, len(rejected)), Rejected: rejected}
	for _, r := range rejected {
		res.FailedIDs = append(res.FailedIDs, r.ID)
		log.Warn().Str("index", r.Index).Str("id", r.ID).Str("reason", r.Reason).Msg("document rejected")
	}

	if err := l.deadLetter(ctx, rejected); err != nil {
		return res, err
	}
	if err := lease.Commit(ctx, next); err != nil {
		return res, err
	}

	log.Info().
		Int("indexed", res.SuccessCount).
		Int("rejected", len(res.FailedIDs)).
		Time("cursor", next).
		Msg("batch loaded")
	return res, nil
}

func (l *Loader) deadLetter(ctx context.Context, rejected []domain.Rejection) error {
	if len(rejected) == 0 {
		return nil
	}
	if l.DLQ == nil {
		logger.C(ctx).Error().Int("count", len(rejected)).Msg("dead-letter queue disabled, rejected documents dropped")
		return nil
	}
	now := l.Now().UTC()
	letters := make([]dlqdom.Letter, 0, len(rejected))
	for _, r := range rejected {
		letters = append(letters, dlqdom.Letter{Index: r.Index, ID: r.ID, DetectedAt: now, Reason: r.Reason})
	}
	return l.DLQ.Push(ctx, letters...)
}
