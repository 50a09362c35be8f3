package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/receipts-api/internal/common"
	repo "github.com/joseph-ayodele/receipts-api/internal/repository"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the receipts table and indexes",
		Long: `Create the receipts table and its indexes for the database named by DB_URL.

The statements are idempotent; running migrate against an up-to-date
database is a no-op.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := common.LoadConfig()
			logger := newLogger(cfg.Log)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := repo.Open(ctx, dbConfig(cfg.Database), logger)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Migrate(ctx); err != nil {
				logger.Error("migration failed", "error", err)
				return err
			}
			logger.Info("migration complete", "dialect", store.Dialect())
			return nil
		},
	}
}
