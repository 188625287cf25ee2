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
	"github.com/vesfx/vesrates/storage/memory"
)

type serveMemoryCfg struct {
	rootCfg *serveCfg
}

// newServeMemoryCmd creates the serve memory command.
func newServeMemoryCmd(rootCfg *serveCfg) *ffcli.Command {
	cfg := &serveMemoryCfg{
		rootCfg: rootCfg,
	}

	fs := flag.NewFlagSet("memory", flag.ExitOnError)
	cfg.rootCfg.registerFlags(fs)

	return &ffcli.Command{
		Name:       "memory",
		ShortUsage: "serve memory [flags]",
		LongHelp:   "Serves the vesrates backend, using an in-memory datastore",
		FlagSet:    fs,
		Exec:       cfg.exec,
		Options: []ff.Option{
			ff.WithEnvVars(),
			ff.WithEnvVarPrefix(env.Prefix),
		},
	}
}

func (c *serveMemoryCfg) exec(ctx context.Context, _ []string) error {
	// Read the server configuration, if any
	if err := c.rootCfg.loadConfig(); err != nil {
		return fmt.Errorf("unable to read server config, %w", err)
	}

	cfg := c.rootCfg.config

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// Load .env
	if err := godotenv.Load(); err != nil {
		logger.Warn("unable to load .env file")
	}

	// Create an in-memory store
	store := memory.NewStorage()

	// Register the reference data
	if err := seedReferenceData(ctx, store); err != nil {
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
		if err := orchestrator.Register(source); err != nil {
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

	group.Go(func() error {
		return s.Serve(gCtx)
	})

	group.Go(func() error {
		return orchestrator.Start(gCtx)
	})

	group.Go(func() error {
		return sweeper.Start(gCtx)
	})

	return group.Wait()
}
