package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turtacn/NoticeFlow/internal/config"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/database/postgres"
)

func newMigrateCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect the database schema",
		Long: `Manage the PostgreSQL schema with golang-migrate.

Migrations are compiled into the binary. --source (or database.migration_path)
points at a directory of migration files instead.`,
	}
	cmd.PersistentFlags().StringVar(&source, "source", "", "migration source URL, e.g. file://./migrations")

	migrator := func(cmd *cobra.Command) (*postgres.Migrator, error) {
		cliCtx, err := GetCLIContext(cmd)
		if err != nil {
			return nil, err
		}
		return postgres.NewMigrator(cliCtx.Config.Database.DSN(), migrationSource(source, cliCtx.Config.Database), cliCtx.Logger), nil
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := migrator(cmd)
			if err != nil {
				return err
			}
			state, err := m.Up()
			if err != nil {
				return err
			}
			return PrintResult(cmd, migrationResult(state))
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 1 {
				return fmt.Errorf("--steps must be >= 1, got %d", steps)
			}
			m, err := migrator(cmd)
			if err != nil {
				return err
			}
			state, err := m.Down(steps)
			if err != nil {
				return err
			}
			return PrintResult(cmd, migrationResult(state))
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	status := &cobra.Command{
		Use:   "status",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := migrator(cmd)
			if err != nil {
				return err
			}
			state, err := m.Status()
			if err != nil {
				return err
			}
			return PrintResult(cmd, migrationResult(state))
		},
	}

	cmd.AddCommand(up, down, status)
	return cmd
}

// migrationSource prefers the flag, then the configured directory. Empty
// selects the embedded migrations.
func migrationSource(flag string, db config.DatabaseConfig) string {
	if flag != "" {
		return flag
	}
	if db.MigrationPath != "" {
		return "file://" + db.MigrationPath
	}
	return ""
}

type migrationResult postgres.MigrationState

func (r migrationResult) String() string {
	if r.Dirty {
		return fmt.Sprintf("schema version %d (dirty)", r.Version)
	}
	return fmt.Sprintf("schema version %d", r.Version)
}

func (r migrationResult) TableHeaders() []string { return []string{"VERSION", "DIRTY"} }

func (r migrationResult) TableRows() [][]string {
	return [][]string{{fmt.Sprint(r.Version), fmt.Sprint(r.Dirty)}}
}
