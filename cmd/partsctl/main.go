// Command partsctl runs operator tasks against the store database: schema
// migration, catalog seeding and admin account creation.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"autoparts/internal/config"
	"autoparts/internal/db"
	"autoparts/internal/logger"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "partsctl",
	Short:         "Auto parts store operator CLI",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(createAdminCmd)
}

// bootDB loads config and opens the database connection.
func bootDB() (*config.Config, *gorm.DB, error) {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})

	gdb, err := db.Open(db.Options{Driver: cfg.DBDriver, DSN: cfg.DBDSN, Silent: true})
	if err != nil {
		return nil, nil, err
	}
	return cfg, gdb, nil
}
