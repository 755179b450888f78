package module

import (
	"moviesync/internal/platform/config"
	"moviesync/internal/services/deadletter/repo"
)

// queue backends
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Options for the dead-letter module
type Options struct {
	Backend string
	Key     string
}

// FromConfig reads CORE_ETL_DLQ_BACKEND (redis or memory, default redis)
// and CORE_ETL_DLQ_KEY (default moviesync:dlq)
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("CORE_ETL_DLQ_")
	return Options{
		Backend: c.MayEnum("BACKEND", BackendRedis, BackendRedis, BackendMemory),
		Key:     c.MayString("KEY", repo.DefaultKey),
	}
}
