package module

import (
	"time"

	"moviesync/internal/platform/config"
	"moviesync/internal/platform/validate"
)

// Options for the etl module. As overrides, zero fields mean unset; StrictLease
// forces LeaseTTL to 0 since a zero LeaseTTL override cannot express it
type Options struct {
	Limit            int           `json:"limit" validate:"min=1"`
	Interval         time.Duration `json:"interval" validate:"gt=0"`
	LeaseTTL         time.Duration `json:"lease_ttl" validate:"gte=0"`
	Owner            string        `json:"owner"`
	SourceMaxElapsed time.Duration `json:"source_max_elapsed" validate:"gt=0"`
	SinkMaxElapsed   time.Duration `json:"sink_max_elapsed" validate:"gt=0"`
	ExtractTimeout   time.Duration `json:"extract_timeout" validate:"gte=0"`
	LoadTimeout      time.Duration `json:"load_timeout" validate:"gte=0"`
	RedriveTimeout   time.Duration `json:"redrive_timeout" validate:"gte=0"`
	DLQEnabled       bool          `json:"dlq_enabled"`
	DLQBatch         int           `json:"dlq_batch" validate:"min=1"`
	DLQMaxAttempts   int           `json:"dlq_max_attempts" validate:"min=1"`
	StrictLease      bool          `json:"strict_lease"`
}

// FromConfig reads the CORE_ETL_ variables
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("CORE_ETL_")
	return Options{
		Limit:            c.MayInt("LIMIT", 100),
		Interval:         c.MayDuration("INTERVAL", 30*time.Second),
		LeaseTTL:         c.MayDuration("LEASE_TTL", 10*time.Minute),
		Owner:            c.MayString("OWNER", ""),
		SourceMaxElapsed: c.MayDuration("SOURCE_MAX_ELAPSED", time.Minute),
		SinkMaxElapsed:   c.MayDuration("SINK_MAX_ELAPSED", time.Minute),
		ExtractTimeout:   c.MayDuration("EXTRACT_TIMEOUT", 2*time.Minute),
		LoadTimeout:      c.MayDuration("LOAD_TIMEOUT", 0),
		RedriveTimeout:   c.MayDuration("REDRIVE_TIMEOUT", time.Minute),
		DLQEnabled:       c.MayBool("DLQ_ENABLED", true),
		DLQBatch:         c.MayInt("DLQ_BATCH", 100),
		DLQMaxAttempts:   c.MayInt("DLQ_MAX_ATTEMPTS", 5),
	}
}

// Validate reports the first out of range option
func (o Options) Validate() error { return validate.Struct(o) }

// merge applies the non-zero fields of overrides
func (o Options) merge(overrides Options) Options {
	if overrides.Limit != 0 {
		o.Limit = overrides.Limit
	}
	if overrides.Interval != 0 {
		o.Interval = overrides.Interval
	}
	if overrides.LeaseTTL != 0 {
		o.LeaseTTL = overrides.LeaseTTL
	}
	if overrides.StrictLease {
		o.LeaseTTL = 0
	}
	if overrides.Owner != "" {
		o.Owner = overrides.Owner
	}
	return o
}
