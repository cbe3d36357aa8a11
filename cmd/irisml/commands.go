package main

import (
	"github.com/spf13/cobra"

	"irisml/internal/config"
	"irisml/internal/logging"
	"irisml/internal/tracking"
)

// app holds what every subcommand shares once flags are parsed.
type app struct {
	configPath string
	logLevel   string
	logJSON    bool

	cfg config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "irisml",
		Short: "Train, poison, track and serve Iris decision-tree models",
		Long: `irisml trains decision trees on the Iris dataset, optionally poisoning a
fraction of the training cells, records every run in an embedded tracking
database and serves the latest registered model over HTTP and gRPC.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "irisml.yml", "service configuration file (missing file = defaults)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "debug|info|warn|error (overrides config)")
	root.PersistentFlags().BoolVar(&a.logJSON, "log-json", false, "emit JSON logs")

	root.AddCommand(
		a.serveCmd(),
		a.trainCmd(),
		a.poisonCmd(),
		a.predictCmd(),
		a.reportCmd(),
		a.validateCmd(),
		a.healthCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	opts := logging.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON, Output: cmd.ErrOrStderr()}
	if cmd.Flags().Changed("log-level") {
		opts.Level = a.logLevel
	}
	if cmd.Flags().Changed("log-json") {
		opts.JSON = a.logJSON
	}
	if opts.Level != "" || opts.JSON {
		logging.Configure(opts)
	}
	return nil
}

func (a *app) openStore() (*tracking.Store, error) {
	return tracking.Open(a.cfg.Tracking.DBPath)
}
