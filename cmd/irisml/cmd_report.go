package main

import (
	"github.com/spf13/cobra"

	"irisml/internal/report"
)

func (a *app) reportCmd() *cobra.Command {
	var (
		limit      int
		experiment string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a Markdown table of the most recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if experiment == "" {
				experiment = a.cfg.Tracking.Experiment
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			rows, err := report.Build(cmd.Context(), store, experiment, limit)
			if err != nil {
				return err
			}
			return report.Render(cmd.OutOrStdout(), experiment, rows)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", report.DefaultLimit, "number of most recent runs")
	cmd.Flags().StringVar(&experiment, "experiment", "", "experiment name (default: from config)")
	return cmd
}
