package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/treeindex/internal/scheduler"
)

var (
	checkPing  bool
	checkFires int
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and show upcoming runs",
	Long: `Load and validate the configuration, including every cron expression,
and print the next fire times of each project. With --ping the Meilisearch
server is contacted as well.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		loc, err := cfg.Location()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "config %s ok, guard %s, timezone %s\n", cfg.Path, cfg.Scheduler.Guard, loc)

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "PROJECT\tROOT\tSCHEDULE\tNEXT RUNS")
		now := time.Now().In(loc)
		for _, p := range cfg.ProjectList() {
			sched, err := scheduler.ParseSchedule(p.Schedule)
			if err != nil {
				return fmt.Errorf("project %q: %w", p.ID, err)
			}
			next := now
			for i := 0; i < checkFires; i++ {
				next = sched.Next(next)
				if i == 0 {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Root, p.Schedule, next.Format(time.RFC3339))
				} else {
					fmt.Fprintf(tw, "\t\t\t%s\n", next.Format(time.RFC3339))
				}
			}
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		if checkPing {
			client, err := newClient(cfg)
			if err != nil {
				return err
			}
			if err := client.Health(cmd.Context()); err != nil {
				return fmt.Errorf("meilisearch at %s: %w", cfg.Meilisearch.URL, err)
			}
			fmt.Fprintf(out, "meilisearch at %s is available\n", cfg.Meilisearch.URL)
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().BoolVar(&checkPing, "ping", false, "Also check that Meilisearch is reachable")
	checkCmd.Flags().IntVarP(&checkFires, "next", "n", 3, "Number of upcoming fire times to print per project")
}
