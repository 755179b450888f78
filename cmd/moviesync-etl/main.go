// Command moviesync-etl keeps the search indices in step with the film
// catalogue by polling Postgres and bulk-indexing into Elasticsearch
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"moviesync/internal/core/version"
	"moviesync/internal/modkit"
	"moviesync/internal/modkit/module"
	"moviesync/internal/platform/config"
	"moviesync/internal/platform/logger"
	phttp "moviesync/internal/platform/net/http"
	"moviesync/internal/platform/net/middleware"
	"moviesync/internal/platform/store"

	cpmod "moviesync/internal/services/checkpoint/module"
	dlqmod "moviesync/internal/services/deadletter/module"
	etldom "moviesync/internal/services/etl/domain"
	etlmod "moviesync/internal/services/etl/module"
	ledgermod "moviesync/internal/services/ledger/module"

	"github.com/go-chi/chi/v5"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		envFile = flag.String("env", ".env", "dotenv file seeding the environment; missing is fine")
		once    = flag.Bool("once", false, "run a single tick and exit")
		showVer = flag.Bool("version", false, "print the build and exit")
	)
	flag.Parse()

	if *showVer {
		fmt.Println(version.Info())
		return 0
	}
	if err := config.LoadDotenv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", *envFile, err)
		return 2
	}

	opts := logger.FromEnv()
	if opts.Service == "" {
		opts.Service = version.Service
	}
	logger.Init(opts)
	l := logger.Get()
	root := config.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// open only the backends the configured modules need
	cpOpts := cpmod.FromConfig(root)
	dlqOpts := dlqmod.FromConfig(root)
	etlOpts := etlmod.FromConfig(root)

	cfg := store.ConfigFromEnv(version.Service)
	if cfg.PG.URL == "" {
		l.Error().Msg("SERVICE_PGSQL_DBURL is required")
		return 2
	}
	cfg.PG.Enabled = true
	cfg.ES.Enabled = true
	cfg.RDS.Enabled = cpOpts.Backend == cpmod.BackendRedis ||
		(etlOpts.DLQEnabled && dlqOpts.Backend == dlqmod.BackendRedis)
	cfg.Lite.Enabled = cpOpts.Backend == cpmod.BackendSQLite

	st, err := store.Open(ctx, cfg, store.WithLogger(*l))
	if err != nil {
		l.Error().Err(err).Msg("store.Open failed")
		return 1
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	deps := modkit.FromStore(*l, root, st)

	// collaborators first, then the loop that consumes their ports
	cp := cpmod.New(deps)
	lg := ledgermod.New(deps)
	ports := etldom.Ports{
		Checkpoint: module.MustPortsOf[cpmod.Ports](cp).Store,
		Ledger:     module.MustPortsOf[ledgermod.Ports](lg).Recorder,
	}
	if etlOpts.DLQEnabled {
		dq := dlqmod.New(deps)
		ports.DeadLetters = module.MustPortsOf[dlqmod.Ports](dq).Queue
	}
	em := etlmod.New(deps, etlmod.Options{}, modkit.WithPorts(ports))
	runner := module.MustPortsOf[etlmod.Ports](em).Runner
	l.Info().
		Str("checkpoint", cp.Describe()).
		Bool("dlq", ports.DeadLetters != nil).
		Dur("interval", em.Options().Interval).
		Msg("sync loop ready")

	if *once {
		r, err := runner.RunOnce(ctx)
		if err != nil {
			return 1
		}
		l.Info().Str("run_id", r.RunID).Str("outcome", r.Outcome).Msg("single tick done")
		return 0
	}

	ops := root.Prefix("OPS_")
	srv := phttp.NewServer(ops, func(m *chi.Mux) {
		m.Use(middleware.Defaults()...)
		m.Use(middleware.CORS(middleware.CORSOptions{
			AllowedOrigins: ops.MayCSV("CORS_ORIGINS", []string{"*"}),
		}))
		m.Use(middleware.AccessLogZerolog(middleware.AccessLogOptions{
			Slow: ops.MayDuration("SLOW", 0),
			Skip: []string{"/healthz", "/readyz"},
		}))
	})
	em.MountRoutes(srv.Router())
	phttp.MountProfiler(srv.Router(), "/debug", ops.MayBool("PROFILER", false))

	// a dead ops server takes the loop down with it
	srvErr := make(chan error, 1)
	go func() {
		err := srv.Run(ctx)
		if err != nil {
			l.Error().Err(err).Msg("ops server stopped")
			stop()
		}
		srvErr <- err
	}()

	_ = runner.Run(ctx)
	stop()

	if err := <-srvErr; err != nil {
		return 1
	}
	return 0
}
