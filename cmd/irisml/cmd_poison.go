package main

import (
	"fmt"
	"math/rand/v2"

	"github.com/spf13/cobra"

	"irisml/internal/dataset"
	"irisml/internal/poison"
)

func (a *app) poisonCmd() *cobra.Command {
	var (
		fraction float64
		seed     uint64
		label    string
	)
	cmd := &cobra.Command{
		Use:   "poison <in.csv> <out.csv>",
		Short: "Write a copy of a dataset with a fraction of feature cells randomised",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := dataset.Load(args[0], label)
			if err != nil {
				return err
			}
			var src rand.Source
			if cmd.Flags().Changed("seed") {
				src = rand.NewPCG(seed, 0)
			}
			p := poison.New(src)
			plan, err := p.Plan(ds.Features, fraction)
			if err != nil {
				return err
			}
			out := &dataset.Dataset{Features: ds.Features, Labels: ds.Labels, LabelColumn: ds.LabelColumn}
			if fraction > 0 {
				out.Features = poison.Apply(ds.Features, plan)
			}
			if err := dataset.Save(args[1], out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Poisoned %d cells (%.1f%%) of %s -> %s\n", len(plan), fraction*100, args[0], args[1])
			return nil
		},
	}
	cmd.Flags().Float64Var(&fraction, "fraction", 0, "fraction of cells to corrupt, in [0,1]")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (default: unseeded)")
	cmd.Flags().StringVar(&label, "label", "", "label column (default: last column)")
	return cmd
}
