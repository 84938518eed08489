package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/grantpilot/api/internal/config"
	"github.com/grantpilot/api/internal/generation"
	"github.com/grantpilot/api/internal/platform/gemini"
	"github.com/grantpilot/api/internal/platform/metrics"
	"github.com/grantpilot/api/internal/platform/postgres"
	"github.com/grantpilot/api/internal/redact"
	"github.com/grantpilot/api/internal/search"
	"github.com/grantpilot/api/internal/store"
	"github.com/grantpilot/api/internal/task"
	"github.com/grantpilot/api/internal/ws"
)

// application holds the shared dependencies so shutdown can unwind them in
// order.
type application struct {
	config  *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	db        *sql.DB
	taskStore store.TaskStore

	generator generation.Generator
	searcher  search.Searcher

	hub      *ws.Hub
	registry *task.Registry
	runner   *task.Runner

	stopEviction context.CancelFunc
}

// newApplication creates an application instance with all dependencies
// initialized. The runner is started here so recovery of interrupted
// snapshots happens before the HTTP surface accepts traffic.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config:  cfg,
		logger:  logger,
		metrics: metrics.New(),
	}

	if err := app.setupStore(ctx); err != nil {
		return nil, err
	}

	var err error
	app.generator, err = gemini.NewGeminiGenerator(ctx, logger.With("component", "llm_generator"), cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM generator: %w", err)
	}
	logger.Info("LLM generator initialized", "model", cfg.LLM.ModelName)

	// No vector index is wired yet, so retrieval serves an empty passage set.
	app.searcher = search.NewStaticSearcher()

	app.hub, err = ws.NewHub(logger, app.metrics, cfg.Realtime.SendBuffer)
	if err != nil {
		return nil, fmt.Errorf("failed to create hub: %w", err)
	}
	app.startEvictionSweep()

	app.registry = task.NewRegistry()
	app.runner, err = task.NewRunner(app.registry, app.taskStore, app.metrics, task.RunnerConfig{
		WorkerCount:      cfg.Task.WorkerCount,
		QueueSize:        cfg.Task.QueueSize,
		SnapshotInterval: cfg.Task.SnapshotInterval,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create task runner: %w", err)
	}
	if err := app.runner.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start task runner: %w", err)
	}

	logger.Info("application initialized")
	return app, nil
}

// setupStore selects the snapshot store: Postgres when a database URL is
// configured, in-memory otherwise.
func (app *application) setupStore(ctx context.Context) error {
	if app.config.Database.URL == "" {
		app.logger.Info("no database configured, using in-memory snapshot store")
		app.taskStore = store.NewMemoryTaskStore()
		return nil
	}

	db, err := sql.Open("pgx", app.config.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %s", redact.Error(err))
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		// Driver errors echo the connection URL, credentials included.
		return fmt.Errorf("failed to ping database: %s", redact.Error(err))
	}

	if err := postgres.RunMigrations(ctx, db, app.logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	app.db = db
	app.taskStore = postgres.NewPostgresTaskStore(db, app.logger)
	app.logger.Info("database snapshot store initialized")
	return nil
}

// startEvictionSweep periodically disconnects observers whose heartbeats
// have lapsed.
func (app *application) startEvictionSweep() {
	ctx, cancel := context.WithCancel(context.Background())
	app.stopEviction = cancel

	go func() {
		ticker := time.NewTicker(app.config.Realtime.EvictInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				evicted := app.hub.EvictStale(app.config.Realtime.MaxIdle)
				if len(evicted) > 0 {
					app.logger.Info("evicted stale observers", "count", len(evicted))
				}
			}
		}
	}()
}

// Run serves HTTP until the context is cancelled, then unwinds.
func (app *application) Run(ctx context.Context) error {
	router, err := app.setupRouter()
	if err != nil {
		return fmt.Errorf("failed to set up router: %w", err)
	}
	return app.startHTTPServer(ctx, router)
}

// cleanup handles graceful shutdown of application resources. Order matters:
// the runner drains first so final snapshots land before the store closes,
// and the hub closes last so observers see terminal events.
func (app *application) cleanup() {
	if app.stopEviction != nil {
		app.stopEviction()
	}
	if app.runner != nil {
		app.runner.Stop()
	}
	if app.hub != nil {
		app.hub.Close()
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}
	app.logger.Info("application shutdown completed")
}
