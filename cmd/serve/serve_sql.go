package serve

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"golang.org/x/sync/errgroup"

	"github.com/vesfx/vesrates/cmd/env"
	"github.com/vesfx/vesrates/ingest"
	"github.com/vesfx/vesrates/server"
	sqlstore "github.com/vesfx/vesrates/storage/sql"
)

type serveSQLCfg struct {
	rootCfg *serveCfg
}

// newServeSQLCmd creates the serve sql command
func newServeSQLCmd(rootCfg *serveCfg) *ffcli.Command {
	cfg := &serveSQLCfg{
		rootCfg: rootCfg,
	}

	fs := flag.NewFlagSet("sql", flag.ExitOnError)
	cfg.rootCfg.registerFlags(fs)

	return &ffcli.Command{
		Name:       "sql",
		ShortUsage: "serve sql [flags]",
		LongHelp:   "Serves the vesrates backend, using an SQL datastore",
		FlagSet:    fs,
		Exec:       cfg.exec,
		Options: []ff.Option{
			// Allow using ENV variables
			ff.WithEnvVars(),
			ff.WithEnvVarPrefix(env.Prefix),
		},
	}
}

// exec executes the server serve command
func (c *serveSQLCfg) exec(ctx context.Context, _ []string) error {
	// Read the server configuration, if any
	if err := c.rootCfg.loadConfig(); err != nil {
		return fmt.Errorf("unable to read server config, %w", err)
	}

	cfg := c.rootCfg.config

	// Create a new logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// Load .env
	if err := godotenv.Load(); err != nil {
		logger.Warn("unable to load .env file")
	}

	// DB
	dsn := os.Getenv(env.Prefix + env.DBURLSuffix)
	if dsn == "" {
		return fmt.Errorf("missing %s", env.Prefix+env.DBURLSuffix)
	}

	// Open DB connection pool
	pool, err := sqlstore.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("unable to open DB connection: %w", err)
	}

	defer pool.Close()

	// Check DB reachability
	pingCtx, cancelPing := context.WithTimeout(ctx, time.Second*5)
	defer cancelPing()

	if err = pool.Ping(pingCtx); err != nil {
		return fmt.Errorf("unable to reach DB (ping): %w", err)
	}

	logger.Info("DB ping success")

	// Create an SQL store
	store := sqlstore.NewStorage(pool)

	// Register the reference data
	if err = seedReferenceData(ctx, store); err != nil {
		return fmt.Errorf("unable to seed reference data: %w", err)
	}

	// Build the rate sources
	sources := buildSources(cfg)

	// Create the write path
	refresher := ingest.NewRefresher(
		store,
		ingest.WithRefresherLogger(logger),
		ingest.WithChangeThreshold(cfg.Policy.SignificantChangePct),
	)

	// Create the ingestion service
	orchestrator := ingest.New(refresher, ingest.WithLogger(logger))
	for _, source := range sources.byExchange {
		if err = orchestrator.Register(source); err != nil {
			return fmt.Errorf("unable to register source: %w", err)
		}
	}

	// Create the retention sweeper
	sweeper := ingest.NewSweeper(
		store,
		ingest.WithSweeperLogger(logger),
		ingest.WithHistoryRetention(time.Duration(cfg.Policy.HistoryRetentionDays)*24*time.Hour),
		ingest.WithAPILogRetention(time.Duration(cfg.Policy.APILogRetentionDays)*24*time.Hour),
	)

	// Create the server instance
	s, err := server.New(
		store,
		server.WithLogger(logger),
		server.WithConfig(cfg),
		server.WithScraper(sources.scraper),
		server.WithP2PClient(sources.p2p),
		server.WithRefresher(refresher),
		server.WithSources(sources.byExchange),
	)
	if err != nil {
		return fmt.Errorf("unable to create server, %w", err)
	}

	runCtx, cancelFn := signal.NotifyContext(
		ctx,
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)

	defer cancelFn()

	group, gCtx := errgroup.WithContext(runCtx)

	// Start the HTTP server
	group.Go(func() error {
		return s.Serve(gCtx)
	})

	// Start the ingestion service
	group.Go(func() error {
		return orchestrator.Start(gCtx)
	})

	// Start the retention sweeper
	group.Go(func() error {
		return sweeper.Start(gCtx)
	})

	return group.Wait()
}
