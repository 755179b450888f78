package module

import (
	"moviesync/internal/platform/config"
	"moviesync/internal/services/checkpoint/repo"
)

// checkpoint backends
const (
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Options for the checkpoint module
type Options struct {
	Backend string
	Key     string
}

// FromConfig fills options from environment
// CORE_ETL_CHECKPOINT_BACKEND (default redis) is one of redis, sqlite, memory
// CORE_ETL_CHECKPOINT_KEY (default postgresql_films) names the record
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("CORE_ETL_CHECKPOINT_")
	return Options{
		Backend: c.MayEnum("BACKEND", BackendRedis, BackendRedis, BackendSQLite, BackendMemory),
		Key:     c.MayString("KEY", repo.DefaultKey),
	}
}
