package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xef5000/UltimateLogger/internal/httpapi"
)

const shutdownGracePeriod = 30 * time.Second

func newServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the log engine and its HTTP API until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, configPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", defaultConfigPath, "Path to the YAML configuration file")

	return cmd
}

func serve(ctx context.Context, configPath string) error {
	a, err := bootstrap(ctx, configPath, os.Stderr)
	if err != nil {
		return err
	}

	if err := a.engine.Start(ctx); err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()

		_ = a.close(shutdownCtx)

		return err
	}

	apiOptions := []httpapi.Option{httpapi.WithLogger(a.logger)}
	if a.telemetry.Enabled() {
		apiOptions = append(apiOptions, httpapi.WithTracing())
	}
	server := httpapi.New(a.engine, apiOptions...)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Start(a.cfg.HTTP.Listen)
	}()

	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}

	// the signal context is done here, shutdown gets its own deadline
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()

	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil && err == nil {
		err = shutdownErr
	}

	if closeErr := a.close(shutdownCtx); closeErr != nil && err == nil {
		err = closeErr
	}

	return err
}
