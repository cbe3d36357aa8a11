package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"irisml/internal/config"
	"irisml/internal/pipeline"
	"irisml/internal/plan"
	"irisml/internal/registry"
)

func (a *app) trainCmd() *cobra.Command {
	var (
		planPath string
		levels   []float64
		holdout  float64
		seed     uint64
	)
	cmd := &cobra.Command{
		Use:   "train [data_path]",
		Short: "Train the model grid and register every resulting model",
		Long: `Trains one decision tree per poisoning level and parameter set, logging
params and metrics to the tracking database and registering each model.

Either pass a CSV path (the default two-model grid, clean data only unless
--poison-levels is set) or an experiment plan with --plan.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var f plan.File
			switch {
			case planPath != "" && len(args) > 0:
				return errors.New("pass either a data path or --plan, not both")
			case planPath != "":
				var err error
				if f, err = config.LoadPlan(planPath); err != nil {
					return err
				}
			case len(args) == 1:
				f = config.DefaultPlan(args[0])
				f.Experiment = a.cfg.Tracking.Experiment
				f.ModelName = a.cfg.Model.Name
				f.Sinks = []string{"stdout"}
			default:
				return errors.New("a data path or --plan is required")
			}
			if cmd.Flags().Changed("poison-levels") {
				f.PoisonLevels = levels
			}
			if cmd.Flags().Changed("holdout") {
				f.Dataset.HoldoutFraction = holdout
			}
			if cmd.Flags().Changed("seed") {
				f.Seed = seed
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			r, err := pipeline.Build(f, store, registry.New(store), pipeline.Options{Stdout: cmd.OutOrStdout()})
			if err != nil {
				return err
			}
			defer r.Close()

			results, err := r.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Training and logging complete: %d runs in experiment %q.\n", len(results), f.Experiment)
			return nil
		},
	}
	cmd.Flags().StringVar(&planPath, "plan", "", "experiment plan YAML")
	cmd.Flags().Float64SliceVar(&levels, "poison-levels", nil, "poisoning fractions to sweep, e.g. 0,0.05,0.1,0.2")
	cmd.Flags().Float64Var(&holdout, "holdout", 0, "fraction of rows held out clean for validation")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "seed for the holdout split and poisoning")
	return cmd
}
