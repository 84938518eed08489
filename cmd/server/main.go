// Package main implements the entry point for the GrantPilot agent server,
// which runs grant-writing agent tasks and streams their progress to
// websocket observers.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/grantpilot/api/internal/config"
	"github.com/grantpilot/api/internal/platform/logger"
	"github.com/grantpilot/api/internal/platform/postgres"
	"github.com/grantpilot/api/internal/redact"
)

func main() {
	migrateOnly := flag.Bool("migrate-only", false, "run database migrations and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, appLogger, err := initialize()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if *migrateOnly {
		if err := migrate(ctx, cfg, appLogger); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		appLogger.Info("migrations complete")
		return
	}

	app, err := newApplication(ctx, cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to build application: %v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// migrate runs the goose migrations against the configured database.
func migrate(ctx context.Context, cfg *config.Config, appLogger *slog.Logger) error {
	if cfg.Database.URL == "" {
		return errors.New("no database URL configured")
	}

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %s", redact.Error(err))
	}
	defer func() { _ = db.Close() }()

	return postgres.RunMigrations(ctx, db, appLogger)
}

// initialize loads configuration and sets up structured logging.
func initialize() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	appLogger.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"model", cfg.LLM.ModelName,
		"worker_count", cfg.Task.WorkerCount,
		"persistent_store", cfg.Database.URL != "")

	return cfg, appLogger, nil
}
