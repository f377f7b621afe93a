package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sakif/snippethub/internal/repository/sqlstore"
)

func (a *app) migrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(db *sqlstore.DB) error {
				if err := db.Migrate(a.logger); err != nil {
					return err
				}
				return a.printVersion(db)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(db *sqlstore.DB) error {
				if err := db.MigrateDown(a.logger); err != nil {
					return err
				}
				return a.printVersion(db)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, a.printVersion)
		},
	})

	return cmd
}

// withStore connects without migrating, runs fn and closes the pool.
func (a *app) withStore(cmd *cobra.Command, fn func(db *sqlstore.DB) error) error {
	db, err := sqlstore.Connect(cmd.Context(), a.cfg.Database.Driver, a.cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

func (a *app) printVersion(db *sqlstore.DB) error {
	v, err := db.SchemaVersion(a.logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s schema at version %d\n", db.Driver(), v)
	return nil
}
