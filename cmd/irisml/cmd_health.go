package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"irisml/internal/transport"
)

func (a *app) healthCmd() *cobra.Command {
	var (
		addr    string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Query the gRPC health endpoint of a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				if a.cfg.GRPC.Port == 0 {
					return fmt.Errorf("grpc is disabled in config; pass --addr")
				}
				addr = fmt.Sprintf("localhost:%d", a.cfg.GRPC.Port)
			}
			cc, err := transport.Dial(addr)
			if err != nil {
				return err
			}
			defer cc.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			st, err := transport.Check(ctx, cc, transport.ServiceName)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", transport.ServiceName, st)
			if st != healthpb.HealthCheckResponse_SERVING {
				return fmt.Errorf("%s is %s", transport.ServiceName, st)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "host:port of the gRPC server (default: localhost:<grpc.port>)")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "request timeout")
	return cmd
}
