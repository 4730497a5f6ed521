package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/regsight/regsight/internal/auth"
	"github.com/regsight/regsight/internal/backend"
	"github.com/regsight/regsight/internal/config"
	"github.com/regsight/regsight/internal/query"
	"github.com/regsight/regsight/internal/server"
	"github.com/regsight/regsight/internal/storage"
	"github.com/regsight/regsight/internal/storage/memory"
	"github.com/regsight/regsight/internal/storage/sqlite"
	"github.com/regsight/regsight/internal/telemetry"
	"github.com/regsight/regsight/internal/tenant"
	"github.com/regsight/regsight/internal/tokens"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.InitTracer("regsight", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	configPath := os.Getenv("REGSIGHT_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	registry := tenant.NewRegistry()
	tenants := registry.LoadTenants(cfg.Tenants)
	authenticator := auth.NewAuthenticator(tenants)
	logger.Info("loaded tenants", slog.Int("count", len(tenants)))

	store, err := newStore(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	clientOpts := []backend.ClientOption{}
	if cfg.Backend.BaseURL != "" {
		clientOpts = append(clientOpts, backend.WithBaseURL(cfg.Backend.BaseURL))
	}
	client := backend.NewClient(cfg.Backend.APIKey, clientOpts...)

	serviceOpts := []query.Option{query.WithLogger(logger)}
	if est, err := tokens.NewEstimator(); err != nil {
		logger.Warn("token estimator unavailable", slog.String("error", err.Error()))
	} else {
		serviceOpts = append(serviceOpts, query.WithTokenEstimator(est))
	}
	service := query.NewService(client, store, serviceOpts...)

	srv := server.New(cfg.Server.Port, logger, authenticator)
	handler := server.NewHandler(service, store, logger)
	handler.RegisterRoutes(srv.Router)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Hot-reload tenant credentials on config changes
	if err := config.Watch(ctx, configPath, logger, func(next *config.Config) {
		reloaded := tenant.NewRegistry().LoadTenants(next.Tenants)
		authenticator.Reload(reloaded)
		logger.Info("tenant credentials reloaded", slog.Int("count", len(reloaded)))
	}); err != nil {
		logger.Warn("config watch disabled", slog.String("error", err.Error()))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("Server failed: %v", err)
	case sig := <-sigCh:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	}
}

func newStore(cfg *config.Config, logger *slog.Logger) (storage.QueryStore, error) {
	switch cfg.Storage.Type {
	case "memory":
		logger.Info("using in-memory query store")
		return memory.New(), nil
	default:
		logger.Info("using sqlite query store", slog.String("path", cfg.Storage.SQLite.Path))
		return sqlite.New(cfg.Storage.SQLite.Path)
	}
}
