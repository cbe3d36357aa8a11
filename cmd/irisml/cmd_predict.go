package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"irisml/internal/predict"
	"irisml/internal/registry"
)

func (a *app) predictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict [--] <sepal_length> <sepal_width> <petal_length> <petal_width>",
		Short: "Classify one flower with the latest registered model",
		Long: `Classify one flower with the latest registered model.

Measurements starting with "-" are read as flags unless they follow "--".`,
		Example: "  irisml predict 5.1 3.5 1.4 0.2\n  irisml predict -- -1 3.5 1.4 0.2",
		Args:    cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			features, err := predict.FormatFeatures(args)
			if err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			loaded, err := registry.New(store).LoadLatest(cmd.Context(), a.cfg.Model.Name)
			if err != nil {
				return err
			}
			label, err := predict.MakePrediction(loaded.Tree, features)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Prediction: %s\n", label)
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w (put -- before negative measurements: irisml predict -- -1 3.5 1.4 0.2)", err)
	})
	return cmd
}
