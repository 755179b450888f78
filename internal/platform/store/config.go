package store

import (
	"time"

	"moviesync/internal/platform/config"
)

// Config aggregates per backend configuration
type Config struct {
	AppName string

	PG   PGConfig
	ES   ESConfig
	RDS  RedisConfig
	Lite SQLiteConfig
	CH   CHConfig
}

// PGConfig configures postgres connectivity and tracing
type PGConfig struct {
	Enabled     bool
	URL         string
	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int

	// MaxElapsed bounds the ping-on-open backoff
	MaxElapsed time.Duration
}

// ESConfig configures the search index
type ESConfig struct {
	Enabled    bool
	URLs       []string
	Username   string
	Password   string
	MaxElapsed time.Duration
}

// RedisConfig configures redis connectivity
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// SQLiteConfig configures the embedded checkpoint database
type SQLiteConfig struct {
	Enabled bool
	Path    string
}

// CHConfig configures clickhouse connectivity
type CHConfig struct {
	Enabled bool
	URL     string
	Role    string
}

// ConfigFromEnv reads the SERVICE_* connection variables. Callers flip the
// Enabled flags for the backends they actually need
func ConfigFromEnv(app string) Config {
	c := config.New().Prefix("SERVICE_")
	pg := c.Prefix("PGSQL_")
	el := c.Prefix("ELASTIC_")
	rd := c.Prefix("REDIS_")
	ch := c.Prefix("CLICKHOUSE_")

	return Config{
		AppName: app,
		PG: PGConfig{
			URL:         pg.MayString("DBURL", ""),
			MaxConns:    int32(pg.MayInt("MAX_CONNS", 4)),
			LogSQL:      pg.MayBool("LOG_SQL", false),
			SlowQueryMs: pg.MayInt("SLOW_MS", 500),
			MaxElapsed:  pg.MayDuration("CONNECT_MAX_ELAPSED", time.Minute),
		},
		ES: ESConfig{
			URLs:       el.MayCSV("URLS", []string{"http://localhost:9200"}),
			Username:   el.MayString("USERNAME", ""),
			Password:   el.MayString("PASSWORD", ""),
			MaxElapsed: el.MayDuration("CONNECT_MAX_ELAPSED", time.Minute),
		},
		RDS: RedisConfig{
			Addr:     rd.MayString("ADDR", "localhost:6379"),
			Password: rd.MayString("PASSWORD", ""),
			DB:       rd.MayInt("DB", 0),
		},
		Lite: SQLiteConfig{
			Path: c.Prefix("SQLITE_").MayString("PATH", "moviesync.db"),
		},
		CH: CHConfig{
			Enabled: ch.Has("DBURL"),
			URL:     ch.MayString("DBURL", ""),
			Role:    app,
		},
	}
}
