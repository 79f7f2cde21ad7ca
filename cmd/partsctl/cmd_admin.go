package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"autoparts/internal/auth"
	"autoparts/internal/cache"
	"autoparts/internal/repository"
	"autoparts/internal/service"
)

// partsctl create-admin --email a@b.c --password secret
var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin account, or promote an existing user",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		name, _ := cmd.Flags().GetString("name")
		if email == "" || password == "" {
			return errors.New("--email and --password are required")
		}

		cfg, gdb, err := bootDB()
		if err != nil {
			return err
		}
		authService := service.NewAuthService(
			repository.NewUserRepository(gdb),
			auth.NewJWTService(cfg.JWTSecret),
			auth.NewTokenStore(cache.New("", "", 0)),
		)

		user, err := authService.CreateAdmin(cmd.Context(), name, email, password)
		if err != nil {
			return err
		}
		fmt.Printf("Admin %s (id %d) is ready\n", user.Email, user.ID)
		return nil
	},
}

func init() {
	createAdminCmd.Flags().String("email", "", "admin email")
	createAdminCmd.Flags().String("password", "", "admin password")
	createAdminCmd.Flags().String("name", "", "display name (default Administrator)")
}
