package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/treeindex/internal/mcp"
	"github.com/dshills/treeindex/internal/metrics"
	"github.com/dshills/treeindex/internal/scheduler"
	"github.com/dshills/treeindex/internal/storage"
)

var serveMCP bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler until interrupted",
	Long: `Register every configured project with the cron scheduler and keep their
index documents in sync until SIGINT or SIGTERM.

With --mcp the process also speaks the Model Context Protocol on stdin and
stdout, exposing list_projects, sync_project and sync_status. The process
exits when the MCP client disconnects.

When metrics.listen is set, /metrics and /healthz are served on that address.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveMCP, "mcp", false, "Serve MCP tools over stdio")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	logger.Info("treeindex starting",
		append([]any{slog.String("version", version), slog.String("sqlite", storage.BuildMode)}, cfg.Summary()...)...)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	idx, err := newIndexer(client, cfg, logger)
	if err != nil {
		return err
	}

	if err := client.Health(ctx); err != nil {
		logger.Warn("meilisearch not reachable at startup, runs will retry", slog.String("error", err.Error()))
	}
	// Provisioning failures never block the scheduler; every run checks again
	if err := idx.Provision(ctx); err != nil {
		logger.Warn("index provisioning incomplete", slog.String("error", err.Error()))
	}

	history, err := storage.NewSQLiteStorage(cfg.State.DBPath)
	if err != nil {
		return fmt.Errorf("open run history: %w", err)
	}
	defer func() {
		if err := history.Close(); err != nil {
			logger.Warn("failed to close run history", slog.String("error", err.Error()))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts, err := cfg.SchedulerOptions()
	if err != nil {
		return err
	}
	opts.History = history
	opts.Recorder = metrics.New(reg)
	opts.Logger = logger

	sched, err := scheduler.New(cfg.ProjectList(), idx, opts)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sched.Run(gctx)
	})

	if cfg.Metrics.Listen != "" {
		srv := metrics.NewServer(cfg.Metrics.Listen, metrics.NewRouter(reg, client, logger), logger)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	if serveMCP {
		srv := mcp.NewServer(sched, history, logger)
		g.Go(func() error {
			// The client closing stdin ends the whole process
			defer stop()
			return srv.Serve(gctx, os.Stdin, os.Stdout)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("treeindex stopped")
	return nil
}
