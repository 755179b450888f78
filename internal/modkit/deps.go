// Package modkit provides module wiring and core deps
package modkit

import (
	"database/sql"

	"moviesync/internal/modkit/repokit"
	"moviesync/internal/platform/config"
	"moviesync/internal/platform/logger"
	"moviesync/internal/platform/store"
	"moviesync/internal/platform/store/es"

	"github.com/redis/go-redis/v9"
)

// Deps holds core dependencies passed to modules
// this is wiring only and does not introduce new abstractions
type Deps struct {
	Log  logger.Logger
	Cfg  config.Conf
	PG   repokit.TxRunner
	ES   *es.Client
	RDS  redis.UniversalClient
	Lite *sql.DB
	CH   store.Clickhouse
}

// FromStore copies the opened backends of st into Deps
func FromStore(l logger.Logger, cfg config.Conf, st *store.Store) Deps {
	d := Deps{Log: l, Cfg: cfg}
	if st == nil {
		return d
	}
	d.PG, d.ES, d.RDS, d.Lite, d.CH = st.PG, st.ES, st.RDS, st.Lite, st.CH
	return d
}
