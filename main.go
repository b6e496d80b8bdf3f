package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/Kasis11/budgetly/api"
	"github.com/Kasis11/budgetly/internal/auth"
	"github.com/Kasis11/budgetly/internal/budget"
	"github.com/Kasis11/budgetly/internal/config"
	"github.com/Kasis11/budgetly/internal/storage"
	"github.com/Kasis11/budgetly/logging"
)

func main() {
	if err := run(); err != nil {
		logging.Logger.Errorf("application stopped: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := logging.Init(logging.Options{
		Level:      cfg.LogLevel,
		Production: cfg.IsProduction(),
		Dir:        cfg.LogDir,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	logging.Logger.Info("application starting...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storageInstance, closeStorage, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStorage()

	secret := cfg.Token.Secret
	if secret == "" {
		logging.Logger.Warn("JWT_SECRET not set, using an insecure development secret")
		secret = "insecure-development-secret"
	}
	tokens := auth.NewTokenManager(secret, cfg.Token.AccessTTL, cfg.Token.RefreshTTL)

	bt := budget.NewTracker(storageInstance, tokens, budget.WithLocation(cfg.Location()))
	logging.Logger.Infof("using %s storage", bt.StorageType)

	corsConf := cors.New(cors.Options{
		AllowedOrigins:   cfg.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           corsConf.Handler(api.NewApi(bt).Handler()),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Logger.Infof("Starting server on port: %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logging.Logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		logging.Logger.Info("server stopped gracefully")
		return nil
	})

	return g.Wait()
}

// openStorage builds the configured backend and returns its cleanup.
func openStorage(ctx context.Context, cfg *config.Config) (budget.Storage, func(), error) {
	if cfg.StorageBackend == config.BackendMemory {
		return storage.NewInMemoryStorage(), func() {}, nil
	}

	db, err := storage.Init(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return storage.NewMySQLStorage(db), func() { db.Close() }, nil
}
