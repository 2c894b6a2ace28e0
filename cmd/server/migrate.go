package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"credentials/internal/platform/config"
	"credentials/internal/platform/logger"
	"credentials/internal/platform/postgres"
)

func migrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(
		migrateSub("up", "Apply all pending migrations", func(dsn string, c *cobra.Command) error {
			return postgres.MigrateUp(dsn, loggerFor(c))
		}),
		migrateSub("down", "Roll back the last migration", func(dsn string, c *cobra.Command) error {
			return postgres.MigrateDown(dsn, loggerFor(c))
		}),
		migrateSub("version", "Print the applied migration version", func(dsn string, c *cobra.Command) error {
			version, dirty, err := postgres.MigrationVersion(dsn, loggerFor(c))
			if err != nil {
				return err
			}
			fmt.Fprintf(c.OutOrStdout(), "version %d dirty=%t\n", version, dirty)
			return nil
		}),
	)
	return cmd
}

func migrateSub(use, short string, run func(dsn string, c *cobra.Command) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required for migrations")
			}
			return run(cfg.DatabaseURL, c)
		},
	}
}

func loggerFor(c *cobra.Command) *slog.Logger {
	return logger.NewWithWriter(c.ErrOrStderr(), "info", false)
}
