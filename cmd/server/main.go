// Package main is the entry point for the hubcredo API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hubcredo/internal/automation"
	"hubcredo/internal/config"
	"hubcredo/internal/controller"
	"hubcredo/internal/email"
	"hubcredo/internal/logger"
	"hubcredo/internal/loop"
	"hubcredo/internal/observability"
	"hubcredo/internal/store"
	"hubcredo/internal/store/memory"
	"hubcredo/internal/store/postgres"
	"hubcredo/internal/webhook"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const serviceName = "hubcredo-backend"

func main() {
	// Parse flags
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	configPath := flag.String("config", "", "Path to config file (default: hubcredo.yaml in current directory)")
	flag.Parse()

	// Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	ctx := context.Background()

	// Setup Store
	st, closeStore, err := openStore(ctx, cfg, *migrateFlag, log)
	if err != nil {
		fatal(log, "Failed to open store", err)
	}
	defer closeStore()

	// Tracing
	shutdownTracer, err := observability.InitTracer(ctx, serviceName, cfg.OTELEndpoint)
	if err != nil {
		fatal(log, "Failed to init tracing", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Error("Failed to shutdown tracer", "error", err)
		}
	}()

	// Metrics
	metricsHandler, shutdownMetrics, err := observability.InitMetrics(serviceName)
	if err != nil {
		fatal(log, "Failed to init metrics", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.Error("Failed to shutdown metrics", "error", err)
		}
	}()

	// Use an Observable Gauge (Async) that queries the store only when scraped.
	meter := otel.Meter(serviceName)
	_, err = meter.Int64ObservableGauge("hubcredo.users.active",
		metric.WithDescription("Current number of active users"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			count, err := st.CountUsers(ctx, store.UserFilter{Status: store.UserStatusActive})
			if err != nil {
				log.Warn("Failed to count active users", "error", err)
				return nil // Don't crash metrics scrape on DB error
			}
			obs.Observe(count)
			return nil
		}),
	)
	if err != nil {
		log.Warn("Failed to register active users metric", "error", err)
	}

	// Automation pipeline
	dispatcher := webhook.New(webhook.Config{
		URL:     cfg.WebhookURL,
		Timeout: cfg.WebhookTimeout,
		Secret:  cfg.WebhookSecret,
		Strict:  cfg.WebhookStrict,
		Source:  cfg.WebhookSource,
	}, log)
	if !dispatcher.Enabled() {
		log.Warn("N8N_WEBHOOK_URL not set, webhooks will be simulated")
	}
	runner := automation.NewRunner(dispatcher, email.NewSimulated(cfg.EmailDelay, log), log)
	svc := automation.NewService(runner, dispatcher, st, cfg.CycleDelay, log)
	registry := loop.New(runner, st, dispatcher, loop.Config{
		CycleDelay: cfg.CycleDelay,
		MaxActive:  cfg.MaxActiveLoops,
	}, log)

	// Start Server
	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	srv := controller.New(addr, cfg, controller.Deps{
		Store:      st,
		Loops:      registry,
		Automation: svc,
		Metrics:    metricsHandler,
		Logger:     log,
	})

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Hubcredo API starting", "addr", addr)
		serverErr <- srv.Run(ctx)
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		log.Error("Server stopped", "error", err)
	}

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	if err := registry.Shutdown(shutdownCtx); err != nil {
		log.Error("Loops did not stop in time", "error", err)
	}
	if err := svc.Shutdown(shutdownCtx); err != nil {
		log.Error("Automation batches did not stop in time", "error", err)
	}
	dispatcher.Wait()
	log.Info("Server exited properly")
}

// openStore picks Postgres when DATABASE_URL is set and the in-memory store otherwise.
func openStore(ctx context.Context, cfg *config.Config, migrate bool, log *slog.Logger) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		if migrate {
			return nil, nil, errors.New("-migrate requires DATABASE_URL")
		}
		log.Warn("DATABASE_URL not set, using in-memory store; data is lost on restart")
		return memory.New(), func() {}, nil
	}

	// Connect to Postgres (the "Store")
	pg, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// Run migrations if requested
	if migrate {
		log.Info("Running database migrations...")
		version, err := pg.Migrate()
		if err != nil {
			pg.Close()
			return nil, nil, err
		}
		log.Info("Migrations completed successfully", "version", version)
	}

	return pg, func() {
		if err := pg.Close(); err != nil {
			log.Error("Failed to close database", "error", err)
		}
	}, nil
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
