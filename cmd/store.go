package cmd

import (
	"fmt"

	"github.com/huangsam/exprora/internal/contract"
	"github.com/huangsam/exprora/internal/datastore"
	"github.com/spf13/cobra"
)

// storeSetup loads the configuration without opening the store, so that
// clear and migrate work on databases the store could not open.
func storeSetup(_ *cobra.Command, _ []string) error {
	return loadConfig()
}

// storeCmd focused on store management.
var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage the experiment store",
	Long: `Inspect and maintain the database that holds accounts, experiments,
assignments and events.

Supported backends: SQLite (default), MySQL, PostgreSQL, or memory

Subcommands:
  status  - Show row counts and connection info
  clear   - Remove all stored data
  migrate - Move the schema to a given version`,
}

// storeStatusCmd shows store status.
var storeStatusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Display store statistics and connection details",
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		status, err := datastore.Manager.GetStore().GetStatus(rootCtx)
		if err != nil {
			contract.LogFatal("Failed to get store status", err)
		}
		datastore.PrintStoreStatus(status)
	},
}

// storeClearCmd clears the store.
var storeClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all stored experiment data",
	Long: `Delete all data from the configured backend.

For SQLite: Deletes the database file
For MySQL/PostgreSQL: Drops the exprora tables and the migration history

Examples:
  # Clear the MySQL store (set connection string via env variable)
  EXPRORA_DB_BACKEND=mysql EXPRORA_DB_CONNECT="..." exprora store clear`,
	PreRunE: storeSetup,
	Run: func(_ *cobra.Command, _ []string) {
		dbFile := cfg.DBConnect
		if dbFile == "" {
			dbFile = contract.GetDBFilePath()
		}
		if err := datastore.ClearStore(cfg.Backend, dbFile, cfg.DBConnect); err != nil {
			contract.LogFatal("Failed to clear store", err)
		}
		fmt.Println("Store cleared successfully.")
	},
}

// storeMigrateCmd runs schema migrations.
var storeMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run schema migrations",
	Long: `Apply or roll back the store schema.

Examples:
  # Migrate to the latest version
  exprora store migrate

  # Roll back everything
  exprora store migrate --target-version 0`,
	PreRunE: storeSetup,
	RunE: func(cmd *cobra.Command, _ []string) error {
		target, err := cmd.Flags().GetInt("target-version")
		if err != nil {
			return err
		}
		return datastore.Migrate(cfg.Backend, cfg.DBConnect, target)
	},
}
