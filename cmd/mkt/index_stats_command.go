package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"marketplace/internal/queue"
	"marketplace/internal/stats"
	"marketplace/internal/store"
)

func newIndexStatsCommand(ctx *commandContext) *cobra.Command {
	var addonsFlag string
	var dateFlag string
	var fixup bool

	cmd := &cobra.Command{
		Use:   "index-stats",
		Short: "Queue stats indexing tasks",
		Long: `Queue index_stats tasks for the running daemon to execute.

Without --addons or --date every stats table is indexed in five day steps
from its newest row back to its oldest. --date accepts YYYY-MM-DD or an
inclusive YYYY-MM-DD:YYYY-MM-DD range.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addons, err := stats.ParseAddons(addonsFlag)
			if err != nil {
				return err
			}
			from, to, err := stats.ParseDates(dateFlag)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			return ctx.withStores(func(st *store.Store, q *queue.Store) error {
				planner := stats.NewPlanner(cfg, st, q, logger)
				res, err := planner.Plan(cmd.Context(), stats.Options{Addons: addons, From: from, To: to, Fixup: fixup})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %d tasks covering %d rows\n", res.Tasks, res.Rows)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&addonsFlag, "addons", "", "Comma separated addon ids to index")
	cmd.Flags().StringVar(&dateFlag, "date", "", "Day (YYYY-MM-DD) or inclusive range (start:end) to index")
	cmd.Flags().BoolVar(&fixup, "fixup", false, "Also re-queue rows missing from the index")
	return cmd
}
