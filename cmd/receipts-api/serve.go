package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/receipts-api/internal/auth"
	"github.com/joseph-ayodele/receipts-api/internal/common"
	"github.com/joseph-ayodele/receipts-api/internal/export"
	"github.com/joseph-ayodele/receipts-api/internal/receipts"
	repo "github.com/joseph-ayodele/receipts-api/internal/repository"
	"github.com/joseph-ayodele/receipts-api/internal/server"
	"github.com/joseph-ayodele/receipts-api/internal/validation"
)

func serveCmd() *cobra.Command {
	var skipMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the gRPC health endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(skipMigrate)
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not create the schema on startup")
	return cmd
}

func runServe(skipMigrate bool) error {
	cfg := common.LoadConfig()
	logger := newLogger(cfg.Log)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := repo.Open(ctx, dbConfig(cfg.Database), logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return err
	}
	defer store.Close()

	// Ping DB to ensure connectivity
	if err := store.HealthCheck(ctx, 5*time.Second); err != nil {
		logger.Error("failed to ping database", "error", err)
		return err
	}
	if !skipMigrate {
		if err := store.Migrate(ctx); err != nil {
			logger.Error("failed to migrate database", "error", err)
			return err
		}
	}

	receiptsRepo := repo.NewReceiptRepository(store, logger, repo.WithConsistentList(cfg.Database.ConsistentList))
	receiptsService := receipts.NewService(receiptsRepo, logger)
	exportService := export.NewService(receiptsRepo, logger)

	batchValidator, err := validation.NewBatchCreateValidator()
	if err != nil {
		logger.Error("failed to compile batch schema", "error", err)
		return err
	}

	var authn auth.Authenticator = auth.NewTokenAuthenticator(cfg.Auth.Tokens)
	if cfg.Auth.Disabled {
		logger.Warn("identity gate disabled, every request is anonymous")
		authn = auth.Anonymous{}
	}

	e := server.NewHTTPServer(server.Dependencies{
		Receipts:      server.NewReceiptHandler(receiptsService, batchValidator, logger),
		Export:        server.NewExportHandler(exportService, logger),
		Health:        server.NewHealthHandler(store, cfg.Version),
		Authenticator: authn,
		BodyLimit:     cfg.Server.BodyLimit,
		Logger:        logger,
	})
	httpServer := &http.Server{
		Addr:         cfg.Server.HTTPAddr,
		Handler:      e,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("receipts-api listening", "addr", cfg.Server.HTTPAddr, "version", cfg.Version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var healthServer *server.HealthServer
	if cfg.Server.GRPCHealthAddr != "" {
		healthServer = server.NewHealthServer(cfg.Server.GRPCHealthAddr, store, cfg.Server.HealthCheckInterval, logger)
		go func() {
			if err := healthServer.Start(ctx); err != nil {
				errCh <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-errCh:
		logger.Error("server error", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	if healthServer != nil {
		healthServer.Stop()
	}
	logger.Info("stopped")
	return runErr
}

