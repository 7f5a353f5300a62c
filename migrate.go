package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/peroxia-tech/peroxia-engine/pkg/database"
	"github.com/peroxia-tech/peroxia-engine/pkg/retry"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			// Wait for Postgres the same way serve does.
			db, err := retry.DoWithResult(cmd.Context(), retry.StartupConfig(), func() (*database.DB, error) {
				return database.NewConnection(cmd.Context(), database.ConfigFrom(&cfg.Database))
			})
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			db.Close()

			sqlDB, err := database.OpenSQL(cfg.Database.ConnectionString())
			if err != nil {
				return err
			}
			return database.RunMigrations(sqlDB, logger)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			sqlDB, err := database.OpenSQL(cfg.Database.ConnectionString())
			if err != nil {
				return err
			}
			defer func() {
				if err := sqlDB.Close(); err != nil {
					logger.Debug("Failed to close sql connection", zap.Error(err))
				}
			}()

			version, dirty, err := database.MigrationVersion(sqlDB)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
			return err
		},
	})
	return cmd
}
