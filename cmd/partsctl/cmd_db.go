package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"autoparts/internal/db"
)

// partsctl migrate
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, gdb, err := bootDB()
		if err != nil {
			return err
		}
		fmt.Println("Running migrations…")
		return db.Migrate(gdb)
	},
}

// partsctl reset --force
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop every table and migrate again",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		if !force {
			return errors.New("reset deletes all data; pass --force to confirm")
		}
		_, gdb, err := bootDB()
		if err != nil {
			return err
		}
		if err := db.Reset(gdb); err != nil {
			return err
		}
		fmt.Println("Tables dropped, running migrations…")
		return db.Migrate(gdb)
	},
}

// partsctl seed
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the default categories and sample products",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, gdb, err := bootDB()
		if err != nil {
			return err
		}
		if err := db.Migrate(gdb); err != nil {
			return err
		}
		res, err := db.SeedCatalog(cmd.Context(), gdb)
		if err != nil {
			return err
		}
		fmt.Printf("Seeded %d categories and %d products\n", res.Categories, res.Products)
		return nil
	},
}

func init() {
	resetCmd.Flags().Bool("force", false, "confirm dropping all tables")
}
