package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/banshee-data/behaviour.report/internal/db"
)

var migrateDBPath string

func init() {
	migrateCmd.PersistentFlags().StringVar(&migrateDBPath, "db", "behaviour.db", "SQLite database path")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd, migrateForceCmd)
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the results database schema",
	Long: `Migrate applies or rolls back the schema migrations embedded in the
binary.

Examples:
  # Apply all pending migrations
  behaviour migrate up --db behaviour.db

  # Roll back the most recent migration
  behaviour migrate down --db behaviour.db

  # Clear a dirty state after fixing a failed migration by hand
  behaviour migrate force 1 --db behaviour.db`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrateDB(cmd, func(d *db.DB) error { return d.MigrateUp() })
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrateDB(cmd, func(d *db.DB) error { return d.MigrateDown() })
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := db.OpenDB(migrateDBPath)
		if err != nil {
			return err
		}
		defer d.Close()
		v, dirty, err := d.MigrateVersion()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "version %d", v)
		if dirty {
			fmt.Fprint(cmd.OutOrStdout(), " (dirty)")
		}
		fmt.Fprintln(cmd.OutOrStdout())
		return nil
	},
}

var migrateForceCmd = &cobra.Command{
	Use:   "force VERSION",
	Short: "Set the schema version without running migrations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		return withMigrateDB(cmd, func(d *db.DB) error { return d.MigrateForce(v) })
	},
}

// withMigrateDB opens the database without migrating it, runs fn and
// prints the resulting version.
func withMigrateDB(cmd *cobra.Command, fn func(*db.DB) error) error {
	d, err := db.OpenDB(migrateDBPath)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := fn(d); err != nil {
		return err
	}
	v, dirty, err := d.MigrateVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d (dirty: %t)\n", v, dirty)
	return nil
}
