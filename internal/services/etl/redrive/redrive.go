// Package redrive retries dead-lettered documents by re-reading them from the
// source by id
package redrive

import (
	"context"
	"sort"

	"moviesync/internal/modkit/repokit"
	perr "moviesync/internal/platform/errors"
	"moviesync/internal/platform/logger"
	dlqdom "moviesync/internal/services/deadletter/domain"
	"moviesync/internal/services/etl/domain"
	"moviesync/internal/services/etl/guardrails"
	"moviesync/internal/services/etl/transform"
)

// Deliverer indexes documents and reports the ones refused
type Deliverer interface {
	Deliver(ctx context.Context, docs []domain.Document) (indexed int, rejected []domain.Rejection, err error)
}

// Config holds redrive settings
type Config struct {
	// Batch is the number of due letters taken per pass
	Batch int
	// MaxAttempts drops a letter once it has failed this many times
	MaxAttempts int
	Timeouts    guardrails.Timeouts
}

// Redriver drains due dead letters back into the index. It never reads or
// writes the checkpoint
type Redriver struct {
	DB     repokit.TxRunner
	Binder repokit.Binder[domain.SourceRepo]
	Out    Deliverer
	DLQ    dlqdom.Queue
	Cfg    Config
}

// New constructs a Redriver
func New(db repokit.TxRunner, binder repokit.Binder[domain.SourceRepo], out Deliverer, dlq dlqdom.Queue, cfg Config) *Redriver {
	if db == nil || binder == nil {
		panic("redrive.Redriver requires a source")
	}
	if out == nil {
		panic("redrive.Redriver requires a deliverer")
	}
	if dlq == nil {
		panic("redrive.Redriver requires a dead-letter queue")
	}
	return &Redriver{DB: db, Binder: binder, Out: out, DLQ: dlq, Cfg: cfg}
}

// Redrive takes up to Cfg.Batch due letters, re-projects and re-indexes
// them. Letters whose entity is gone are acknowledged. A sink or source
// failure leaves every letter queued with its attempt count unchanged
func (r *Redriver) Redrive(ctx context.Context) (domain.RedriveResult, error) {
	var res domain.RedriveResult
	ctx, cancel := guardrails.ForRedrive(ctx, r.Cfg.Timeouts)
	defer cancel()
	log := logger.C(ctx)

	due, err := r.DLQ.Due(ctx, r.Cfg.Batch)
	if err != nil || len(due) == 0 {
		return res, err
	}

	byIndex := make(map[string][]string, len(domain.Indices))
	var unknown []dlqdom.Letter
	for _, l := range due {
		switch l.Index {
		case domain.IndexMovies, domain.IndexGenre, domain.IndexPerson:
			byIndex[l.Index] = append(byIndex[l.Index], l.ID)
		default:
			unknown = append(unknown, l)
		}
	}
	if len(unknown) > 0 {
		if err := r.DLQ.Ack(ctx, unknown...); err != nil {
			return res, err
		}
		for _, l := range unknown {
			log.Error().Str("index", l.Index).Str("id", l.ID).Msg("dead letter for unknown index dropped")
		}
		res.Dropped += len(unknown)
	}

	docs, err := r.project(ctx, byIndex)
	if err != nil {
		return res, err
	}

	found := make(map[string]bool, len(docs.Films)+len(docs.Genres)+len(docs.Persons)+len(docs.Rejected))
	all := docs.All()
	for _, d := range all {
		found[key(d.IndexName(), d.DocumentID())] = true
	}
	for _, rj := range docs.Rejected {
		found[key(rj.Index, rj.ID)] = true
	}

	var gone []dlqdom.Letter
	for _, l := range due {
		if _, ok := byIndex[l.Index]; ok && !found[l.Key()] {
			gone = append(gone, l)
		}
	}
	if len(gone) > 0 {
		if err := r.DLQ.Ack(ctx, gone...); err != nil {
			return res, err
		}
		res.Gone = len(gone)
		log.Info().Int("count", len(gone)).Msg("dead letters for deleted entities acknowledged")
	}

	refused := make(map[string]string, len(docs.Rejected))
	for _, rj := range docs.Rejected {
		refused[key(rj.Index, rj.ID)] = rj.Reason
	}
	if len(all) > 0 {
		_, rejected, err := r.Out.Deliver(ctx, all)
		if err != nil {
			return res, err
		}
		for _, rj := range rejected {
			refused[key(rj.Index, rj.ID)] = rj.Reason
		}
	}

	var ok []dlqdom.Letter
	for _, l := range due {
		if !found[l.Key()] {
			continue
		}
		reason, failed := refused[l.Key()]
		if !failed {
			ok = append(ok, l)
			continue
		}
		if err := r.retry(ctx, l, reason, &res); err != nil {
			return res, err
		}
	}
	if len(ok) > 0 {
		if err := r.DLQ.Ack(ctx, ok...); err != nil {
			return res, err
		}
		res.Redriven = len(ok)
	}

	log.Info().
		Int("due", len(due)).
		Int("redriven", res.Redriven).
		Int("failed", res.Failed).
		Int("dropped", res.Dropped).
		Int("gone", res.Gone).
		Msg("dead letters redriven")
	return res, nil
}

// retry records one more failed attempt and drops the letter at the ceiling
func (r *Redriver) retry(ctx context.Context, l dlqdom.Letter, reason string, res *domain.RedriveResult) error {
	attempts, err := r.DLQ.Fail(ctx, l, reason)
	if err != nil {
		return err
	}
	if r.Cfg.MaxAttempts <= 0 || attempts < r.Cfg.MaxAttempts {
		res.Failed++
		return nil
	}
	if err := r.DLQ.Ack(ctx, l); err != nil {
		return err
	}
	res.Dropped++
	logger.C(ctx).Error().
		Str("index", l.Index).
		Str("id", l.ID).
		Int("attempts", attempts).
		Str("reason", reason).
		Time("detected_at", l.DetectedAt).
		Msg("dead letter exceeded max attempts, dropped")
	return nil
}

// project reads the current state of every referenced entity in one snapshot
func (r *Redriver) project(ctx context.Context, byIndex map[string][]string) (domain.Documents, error) {
	var docs domain.Documents
	err := repokit.BindSnapshot(ctx, r.DB, r.Binder, func(repo domain.SourceRepo) error {
		if ids := sorted(byIndex[domain.IndexMovies]); len(ids) > 0 {
			rows, err := repo.Films(ctx, ids)
			if err != nil {
				return err
			}
			docs.Films, docs.Rejected = transform.Films(rows)
		}
		if ids := sorted(byIndex[domain.IndexGenre]); len(ids) > 0 {
			rows, err := repo.Genres(ctx, ids)
			if err != nil {
				return err
			}
			docs.Genres = transform.Genres(rows)
		}
		if ids := sorted(byIndex[domain.IndexPerson]); len(ids) > 0 {
			rows, err := repo.PersonRoles(ctx, ids)
			if err != nil {
				return err
			}
			docs.Persons = transform.Persons(rows)
		}
		return nil
	})
	if err != nil {
		if _, ok := perr.As(err); !ok {
			err = perr.Wrap(err, perr.ErrorCodeDB, "redrive")
		}
		return domain.Documents{}, err
	}
	return docs, nil
}

func key(index, id string) string { return dlqdom.Letter{Index: index, ID: id}.Key() }

func sorted(ids []string) []string {
	sort.Strings(ids)
	return ids
}
