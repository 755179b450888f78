// Package retry wraps cenkalti/backoff with the ceilings used for dependency probes
package retry

import (
	"context"
	"errors"
	"time"

	perr "moviesync/internal/platform/errors"
	"moviesync/internal/platform/logger"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds an exponential backoff loop
type Policy struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	// MaxElapsed is the hard wall-clock ceiling; zero means DefaultMaxElapsed
	MaxElapsed time.Duration
}

// DefaultMaxElapsed is used when a Policy has no ceiling
const DefaultMaxElapsed = time.Minute

// Default returns the probe policy with the given ceiling
func Default(maxElapsed time.Duration) Policy {
	return Policy{
		Initial:    200 * time.Millisecond,
		Max:        5 * time.Second,
		Multiplier: 2,
		MaxElapsed: maxElapsed,
	}
}

// newBackOff is a seam so tests can run without sleeping
var newBackOff = func(p Policy) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.Initial > 0 {
		b.InitialInterval = p.Initial
	}
	if p.Max > 0 {
		b.MaxInterval = p.Max
	}
	if p.Multiplier > 1 {
		b.Multiplier = p.Multiplier
	}
	b.MaxElapsedTime = p.MaxElapsed
	if b.MaxElapsedTime <= 0 {
		b.MaxElapsedTime = DefaultMaxElapsed
	}
	b.Reset()
	return b
}

// Permanent marks err as not worth retrying; Do returns it immediately
func Permanent(err error) error { return backoff.Permanent(err) }

// Do runs fn until it succeeds, returns a Permanent error, ctx ends, or the
// policy ceiling elapses. The final failure is wrapped as ErrorCodeUnavailable
// so callers can tell "dependency down" apart from bad data
func Do(ctx context.Context, name string, p Policy, fn func(context.Context) error) error {
	log := logger.C(ctx).With().Str("probe", name).Logger()
	attempts := 0
	permanent := false
	op := func() error {
		attempts++
		err := fn(ctx)
		var pe *backoff.PermanentError
		if errors.As(err, &pe) {
			permanent = true
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Int("attempt", attempts).Dur("retry_in", wait).Msg("dependency not ready")
	}

	err := backoff.RetryNotify(op, backoff.WithContext(newBackOff(p), ctx), notify)
	if err == nil {
		if attempts > 1 {
			log.Info().Int("attempts", attempts).Msg("dependency ready")
		}
		return nil
	}
	if ctx.Err() != nil {
		return perr.Wrapf(ctx.Err(), perr.ErrorCodeUnavailable, "%s: gave up", name)
	}
	if permanent {
		return err
	}
	return perr.Wrapf(err, perr.ErrorCodeUnavailable, "%s: unavailable after %d attempts", name, attempts)
}

// Probe pings a dependency with the default policy bounded by maxElapsed
func Probe(ctx context.Context, name string, maxElapsed time.Duration, ping func(context.Context) error) error {
	return Do(ctx, name, Default(maxElapsed), ping)
}
