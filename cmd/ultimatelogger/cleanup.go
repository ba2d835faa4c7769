package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newCleanupCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "delete expired, unarchived logs once and print how many were removed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context(), configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			deleted, cleanupErr := a.engine.CleanupExpired(cmd.Context())
			closeErr := a.close(context.WithoutCancel(cmd.Context()))

			if cleanupErr != nil {
				return cleanupErr
			}

			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired logs\n", deleted)

			return closeErr
		},
	}

	cmd.Flags().StringVar(&configPath, "config", defaultConfigPath, "Path to the YAML configuration file")

	return cmd
}
