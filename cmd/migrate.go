package cmd

import (
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/ledger-console/db"
	"github.com/frahmantamala/ledger-console/internal"
	"github.com/frahmantamala/ledger-console/internal/session/sqlite"
)

var (
	migrateCmd = &cobra.Command{
		RunE:  runMigration,
		Use:   "migrate",
		Short: "to run the session database migrations embedded under db/migrations",
	}
	migrateRollback bool
)

func init() {
	migrateCmd.Flags().BoolVarP(&migrateRollback, "rollback", "r", false, "to rollback the latest version of sql migration")
}

func runMigration(cmd *cobra.Command, _ []string) error {
	if appConfig.Session.Backend != internal.SessionBackendSQLite {
		return fmt.Errorf("migrate only applies to the sqlite session backend, configured backend is %q", appConfig.Session.Backend)
	}

	gdb, err := sqlite.Open(appConfig.Session.Path)
	if err != nil {
		return err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("goose: failed to open DB: %w", err)
	}
	defer sqlDB.Close()

	goose.SetBaseFS(db.Migrations)
	goose.SetTableName("schema_migrations")
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("goose: %w", err)
	}

	direction := "up"
	if migrateRollback {
		direction = "down"
	}
	if err := goose.RunContext(cmd.Context(), direction, sqlDB, "migrations"); err != nil {
		return fmt.Errorf("goose %s: %w", direction, err)
	}
	return nil
}
