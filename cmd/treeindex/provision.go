package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/treeindex/internal/indexer"
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Create the index and apply its settings",
	Long: `Create the configured index if it does not exist, add the filterable and
sortable attributes the sync relies on, and set the non-separator tokens.
Existing attributes are kept. serve and run do this automatically; this
command reports the outcome of each step.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := newClient(cfg)
		if err != nil {
			return err
		}
		idx, err := newIndexer(client, cfg, logger)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if err := client.Health(ctx); err != nil {
			return fmt.Errorf("meilisearch at %s: %w", cfg.Meilisearch.URL, err)
		}
		if err := idx.Provision(ctx); err != nil {
			return fmt.Errorf("provision %s: %w", idx.IndexName(), err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "index %q ready (primary key %q)\n", idx.IndexName(), indexer.PrimaryKey)
		fmt.Fprintf(out, "filterable: %s\n", strings.Join(indexer.FilterableAttributes, ", "))
		fmt.Fprintf(out, "sortable:   %s\n", strings.Join(indexer.SortableAttributes, ", "))
		return nil
	},
}
