package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"irisml/internal/dataset"
)

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <data_path>",
		Short: "Check a CSV has the Iris columns in order and no missing values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := dataset.Load(args[0], "")
			if err != nil {
				return err
			}
			if err := dataset.Validate(ds, dataset.IrisColumns); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %s has %d rows\n", args[0], ds.Len())
			return nil
		},
	}
}
