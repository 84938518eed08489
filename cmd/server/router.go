package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/grantpilot/api/internal/api"
	apiMiddleware "github.com/grantpilot/api/internal/api/middleware"
)

// setupRouter configures the application router with all routes and
// middleware.
func (app *application) setupRouter() (http.Handler, error) {
	taskHandler, err := api.NewTaskHandler(
		app.registry,
		app.runner,
		app.taskStore,
		app.generator,
		app.searcher,
		app.hub,
		app.config.Task,
		app.logger,
	)
	if err != nil {
		return nil, err
	}

	wsHandler, err := api.NewWSHandler(app.hub, app.logger)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	r.Route("/api/tasks", func(r chi.Router) {
		r.Post("/", taskHandler.CreateTask)
		r.Get("/", taskHandler.ListTasks)
		r.Get("/{id}", taskHandler.GetTask)
		r.Delete("/{id}", taskHandler.DeleteTask)
		r.Post("/{id}/cancel", taskHandler.CancelTask)
		r.Post("/{id}/pause", taskHandler.PauseTask)
		r.Post("/{id}/resume", taskHandler.ResumeTask)
	})

	r.Get("/ws", wsHandler.Serve)
	r.Method(http.MethodGet, "/metrics", app.metrics.Handler())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r, nil
}
