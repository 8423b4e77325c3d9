package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/treeindex/internal/indexer"
	"github.com/dshills/treeindex/internal/scheduler"
	"github.com/dshills/treeindex/internal/search"
	"github.com/dshills/treeindex/internal/storage"
	"github.com/dshills/treeindex/pkg/types"
)

var runDryRun bool

var runCmd = &cobra.Command{
	Use:   "run <project-id>",
	Short: "Sync one project now and exit",
	Long: `Walk one project's tree and synchronize it into the index immediately,
then print the run statistics. The run is recorded in the run history.

With --dry-run the documents are written to an in-memory index instead of
Meilisearch, which shows what a sync would send without touching the server.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Sync into an in-memory index instead of Meilisearch")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		backend search.Backend
		mem     *search.Memory
	)
	if runDryRun {
		mem = search.NewMemory()
		backend = mem
	} else {
		if backend, err = newClient(cfg); err != nil {
			return err
		}
	}

	idx, err := newIndexer(backend, cfg, logger)
	if err != nil {
		return err
	}

	opts, err := cfg.SchedulerOptions()
	if err != nil {
		return err
	}
	opts.Logger = logger
	if !runDryRun {
		history, err := storage.NewSQLiteStorage(cfg.State.DBPath)
		if err != nil {
			return fmt.Errorf("open run history: %w", err)
		}
		defer history.Close()
		opts.History = history
	}

	sched, err := scheduler.New(cfg.ProjectList(), idx, opts)
	if err != nil {
		return err
	}

	stats, runErr := sched.Trigger(ctx, args[0], storage.SourceManual)
	if errors.Is(runErr, scheduler.ErrUnknownProject) {
		return fmt.Errorf("%w (configured: %s)", runErr, projectIDs(sched.Projects()))
	}

	out := cmd.OutOrStdout()
	if stats != nil {
		printStatistics(out, stats)
	}
	if mem != nil {
		fmt.Fprintf(out, "dry run: %d documents in the in-memory index\n", mem.Count(idx.IndexName()))
	}

	if runErr != nil {
		logger.Error("sync did not complete cleanly", slog.String("error", runErr.Error()))
		return runErr
	}
	return nil
}

func printStatistics(w io.Writer, stats *indexer.Statistics) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "project\t%s\n", stats.ProjectID)
	fmt.Fprintf(tw, "records\t%d\n", stats.Records)
	fmt.Fprintf(tw, "skipped\t%d\n", stats.Skipped)
	fmt.Fprintf(tw, "batches\t%d (%d failed)\n", stats.Batches, stats.FailedBatches)
	fmt.Fprintf(tw, "deletion pass\t%s\n", okString(stats.DeletionOK))
	fmt.Fprintf(tw, "duration\t%s\n", stats.Duration.Round(time.Millisecond))
	_ = tw.Flush()

	for _, msg := range stats.ErrorMessages {
		fmt.Fprintf(w, "  error: %s\n", msg)
	}
}

func okString(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}

func projectIDs(projects []types.Project) string {
	ids := make([]string, 0, len(projects))
	for _, p := range projects {
		ids = append(ids, p.ID)
	}
	return strings.Join(ids, ", ")
}
