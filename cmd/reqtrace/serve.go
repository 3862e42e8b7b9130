package main

import (
	"context"
	"fmt"

	reqhttp "github.com/fyrsmithlabs/reqtrace/internal/http"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the request receiver",
		Long: `Run the receiver that accepts POST /api/requests, answers 201 with the
trace id taken from the traceparent header, and exposes /health and /metrics.
Stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, root, "stdout")
			if err != nil {
				return err
			}
			defer a.Close()

			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			return runServe(ctx, a)
		},
	}

	cmd.Flags().IntVar(&port, "port", 9090, "listen port (overrides server.port)")
	return cmd
}

// runServe blocks until ctx is cancelled or the server fails.
func runServe(ctx context.Context, a *app) error {
	sc := a.cfg.Server
	srv, err := reqhttp.NewServer(a.logger, &reqhttp.Config{
		Host:      sc.Host,
		Port:      sc.Port,
		RateLimit: sc.RateLimit,
		RateBurst: sc.RateBurst,
	}, reqhttp.WithMeter(a.tel.Meter("github.com/fyrsmithlabs/reqtrace/internal/http")))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	a.logger.Info(ctx, "receiver ready",
		zap.String("health_endpoint", fmt.Sprintf("http://%s/health", srv.Addr())),
		zap.String("metrics_endpoint", "/metrics"))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), sc.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return <-errCh
}
