package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hospital-urgencias/clinops/internal/auth"
	"github.com/hospital-urgencias/clinops/internal/shared/config"
	"github.com/hospital-urgencias/clinops/internal/shared/database"
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "clinops-bootstrap",
		Short:         "One-off provisioning for the clinops platform",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(adminCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func adminCmd() *cobra.Command {
	var username, password, specialty string

	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Create the initial superuser; refuses when any account exists",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return createAdmin(cmd.Context(), username, password, specialty)
		},
	}
	cmd.Flags().StringVar(&username, "username", "admin", "superuser username")
	cmd.Flags().StringVar(&password, "password", "", "superuser password")
	cmd.Flags().StringVar(&specialty, "specialty", "urgencias", "specialty slug")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func createAdmin(ctx context.Context, username, password, specialty string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if err := auth.ValidatePassword(password); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(ctx, db.Pool); err != nil {
		return err
	}

	repo := auth.NewRepository(db.Pool)
	count, err := repo.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("users already exist (%d); bootstrap only runs against an empty table", count)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	user := &auth.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: hash,
		Specialty:    strings.ToLower(specialty),
		IsActive:     true,
		IsSuperuser:  true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.CreateUser(ctx, user); err != nil {
		return err
	}

	fmt.Printf("superuser %q created\n", user.Username)
	return nil
}
