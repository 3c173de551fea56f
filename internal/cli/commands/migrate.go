package commands

import (
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dbkit/pkg/core"
)

// NewMigrateCmd builds the migrate command group. Migrations are plain
// goose SQL files in the configured migrations directory and run
// outside the single-statement sanitizer, so DDL is allowed here.
func NewMigrateCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run schema migrations",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "migrations directory (default from config)")

	cmd.AddCommand(
		newMigrateSubCmd("up", "Apply all pending migrations", &dir, goose.Up),
		newMigrateSubCmd("down", "Roll back the most recent migration", &dir, goose.Down),
		newMigrateSubCmd("status", "Print the migration status", &dir, goose.Status),
	)

	return cmd
}

func newMigrateSubCmd(use, short string, dir *string, run func(*sql.DB, string, ...goose.OptionsFunc) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := NewCommandContext(cmd)

			profile, _ := cmd.Flags().GetString("conn")
			mgr, err := cc.OpenManager(cmd.Context(), profile)
			if err != nil {
				return err
			}
			defer mgr.Dispose()

			if err := goose.SetDialect(gooseDialect(mgr.Vendor())); err != nil {
				return fmt.Errorf("failed to set dialect: %w", err)
			}

			db, err := mgr.DB()
			if err != nil {
				return err
			}

			migrationsDir := *dir
			if migrationsDir == "" {
				migrationsDir = cc.Cfg.MigrationsDir
			}
			if migrationsDir == "" {
				migrationsDir = "migrations"
			}

			if err := run(db, migrationsDir); err != nil {
				return fmt.Errorf("migration %s failed: %w", use, err)
			}
			return nil
		},
	}
}

func gooseDialect(vendor core.Vendor) string {
	switch vendor {
	case core.MySQL:
		return "mysql"
	case core.SQLite:
		return "sqlite"
	default:
		return "postgres"
	}
}
