package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/biogate/biogate/internal/infra"
	"github.com/biogate/biogate/internal/migrations"
)

var migrateURL string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		// .env file is optional
		_ = godotenv.Load()
		url := migrateURL
		if url == "" {
			url = os.Getenv("DATABASE_URL")
		}
		if url == "" {
			return fmt.Errorf("DATABASE_URL must be set")
		}
		if err := migrate(cmd.Context(), url); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateURL, "database-url", "", "Postgres connection string (defaults to DATABASE_URL)")
}

// migrate applies the embedded schema over a short-lived database/sql handle.
// It must run before the pool opens since pool connections register the vector type.
func migrate(ctx context.Context, url string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	db, err := infra.OpenSQL(ctx, url)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := migrations.Run(ctx, db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
