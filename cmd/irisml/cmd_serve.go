package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"irisml/internal/engine"
)

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the latest registered model over HTTP and gRPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	e, err := engine.Bootstrap(ctx, a.cfg)
	if err != nil {
		return err
	}
	return e.Run(ctx)
}
