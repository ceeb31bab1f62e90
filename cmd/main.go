package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"fleet-telematics-sync/internal/config"
	"fleet-telematics-sync/internal/infrastructure/database/postgres"
	"fleet-telematics-sync/internal/logger"
	"fleet-telematics-sync/internal/provider"
	"fleet-telematics-sync/internal/routes"
	syncengine "fleet-telematics-sync/internal/usecase/sync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("Failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	env := cfg.Server.Environment
	if env == "" {
		env = "development"
	}
	if err := logger.Init(env); err != nil {
		os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting fleet telematics sync",
		zap.String("environment", env),
	)

	db, err := postgres.NewDB(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to migrate database schema", zap.Error(err))
	}

	registry := buildRegistry(cfg)
	if len(registry) == 0 {
		logger.Fatal("No providers enabled. Configure at least one of WIALON, CESAR or AXENTA.")
	}
	logger.Info("Providers configured", zap.Any("providers", registry.Providers()))

	cacheRepo := postgres.NewCacheRepository(db)
	historyRepo := postgres.NewHistoryRepository(db)
	fleetRepo := postgres.NewFleetRepository(db)
	statusRepo := postgres.NewStatusRepository(db)

	service := syncengine.NewService(registry, cacheRepo, historyRepo, fleetRepo, statusRepo, cfg.Sync.HistoryWindow)
	runner := syncengine.NewRunner(service, cfg.Sync)

	runnerCtx, stopRunner := context.WithCancel(context.Background())
	runnerDone := make(chan struct{})
	go func() {
		defer close(runnerDone)
		runner.Run(runnerCtx)
	}()

	router := routes.SetupRoutes(cfg, db, registry, cacheRepo, statusRepo)
	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)

	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("address", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down ...")

	stopRunner()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", zap.Error(err))
	}

	select {
	case <-runnerDone:
	case <-ctx.Done():
		logger.Warn("Sync runner did not stop before shutdown deadline")
	}

	logger.Info("Server exited properly")
}

func buildRegistry(cfg *config.Config) provider.Registry {
	var adapters []provider.Adapter

	timeout := cfg.Sync.RequestTimeout
	retries := cfg.Sync.SessionRetries

	if cfg.Wialon.Enabled && cfg.Wialon.BaseURL != "" {
		adapters = append(adapters,
			provider.NewWialonClient(cfg.Wialon.BaseURL, cfg.Wialon.Token, timeout, retries))
	}
	if cfg.Cesar.Enabled && cfg.Cesar.BaseURL != "" {
		adapters = append(adapters,
			provider.NewCesarClient(cfg.Cesar.BaseURL, cfg.Cesar.Username, cfg.Cesar.Password, timeout, retries))
	}
	if cfg.Axenta.Enabled && cfg.Axenta.BaseURL != "" {
		adapters = append(adapters,
			provider.NewAxentaClient(cfg.Axenta.BaseURL, cfg.Axenta.Username, cfg.Axenta.Password, timeout, retries))
	}

	return provider.NewRegistry(adapters...)
}
