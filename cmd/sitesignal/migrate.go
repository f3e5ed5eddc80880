package main

import (
	"fmt"

	"sitesignal/packages/config"
	"sitesignal/packages/db"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database migrations to DATABASE_URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			setupLogger(cfg.LogLevel)
			if err := cfg.RequireDatabase(); err != nil {
				return err
			}
			if err := db.Migrate(cmd.Context(), cfg.DatabaseURL); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
