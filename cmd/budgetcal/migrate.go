package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"budgetcal/internal/config"
	"budgetcal/internal/storage"
)

func migrateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations and print the schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				dialect storage.Dialect
				dsn     string
			)
			switch g.cfg.DataBackend {
			case config.BackendSQLite:
				dialect, dsn = storage.SQLite, g.cfg.SQLiteDBPath
			case config.BackendPostgres:
				dialect, dsn = storage.Postgres, g.cfg.DatabaseURL
			default:
				return fmt.Errorf("backend %q has no schema", g.cfg.DataBackend)
			}

			if err := storage.RunMigrations(dialect, dsn); err != nil {
				return err
			}
			version, dirty, err := storage.MigrationVersion(dialect, dsn)
			if err != nil {
				return err
			}
			g.logger.Info("Migrations applied", "dialect", dialect, "version", version, "dirty", dirty)
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema at version %d\n", dialect, version)
			return nil
		},
	}
}
