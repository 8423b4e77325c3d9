// Command treeindex keeps a search index in sync with directory trees on
// cron schedules.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/treeindex/internal/config"
	"github.com/dshills/treeindex/internal/indexer"
	"github.com/dshills/treeindex/internal/search"
	"github.com/dshills/treeindex/internal/walker"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "treeindex",
	Short: "Sync directory trees into a Meilisearch index on a schedule",
	Long: `treeindex walks configured directory trees and mirrors every file and
folder into a Meilisearch index, one document per entry. Each project is
re-scanned on its cron schedule; entries not seen in the latest scan are
removed from the index.

The configuration file is read from --config, $TREEINDEX_CONFIG or
./config.toml, in that order.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd, runCmd, provisionCmd, checkCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and builds the process logger. Logs
// always go to stderr; stdout carries command output and MCP traffic.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := cfg.SetupLogger(os.Stderr, logLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("--log-level: %w", err)
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newClient(cfg *config.Config) (*search.Client, error) {
	client, err := search.NewClient(cfg.ClientConfig())
	if err != nil {
		return nil, fmt.Errorf("meilisearch client: %w", err)
	}
	return client, nil
}

func newIndexer(backend search.Backend, cfg *config.Config, logger *slog.Logger) (*indexer.Indexer, error) {
	cache, err := walker.NewIgnoreCache(walker.DefaultIgnoreCacheSize)
	if err != nil {
		return nil, fmt.Errorf("ignore cache: %w", err)
	}
	return indexer.New(backend, cfg.IndexerConfig(), cache, logger), nil
}
