package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/grantpilot/api/internal/agent"
	"github.com/grantpilot/api/internal/api/shared"
	"github.com/grantpilot/api/internal/config"
	"github.com/grantpilot/api/internal/domain"
	"github.com/grantpilot/api/internal/events"
	"github.com/grantpilot/api/internal/generation"
	"github.com/grantpilot/api/internal/platform/logger"
	"github.com/grantpilot/api/internal/search"
	"github.com/grantpilot/api/internal/store"
	"github.com/grantpilot/api/internal/task"
)

// TaskHandler serves the task lifecycle endpoints.
type TaskHandler struct {
	registry  *task.Registry
	runner    *task.Runner
	taskStore store.TaskStore
	generator generation.Generator
	searcher  search.Searcher
	sink      events.Sink
	defaults  config.TaskConfig
	logger    *slog.Logger
}

// NewTaskHandler creates a task handler with its dependencies.
func NewTaskHandler(
	registry *task.Registry,
	runner *task.Runner,
	taskStore store.TaskStore,
	generator generation.Generator,
	searcher search.Searcher,
	sink events.Sink,
	defaults config.TaskConfig,
	log *slog.Logger,
) (*TaskHandler, error) {
	if registry == nil {
		return nil, errors.New("registry cannot be nil")
	}
	if runner == nil {
		return nil, errors.New("runner cannot be nil")
	}
	if taskStore == nil {
		return nil, errors.New("task store cannot be nil")
	}
	if generator == nil {
		return nil, agent.ErrNilGenerator
	}
	if searcher == nil {
		return nil, agent.ErrNilSearcher
	}
	if sink == nil {
		return nil, agent.ErrNilSink
	}
	if log == nil {
		return nil, agent.ErrNilLogger
	}
	return &TaskHandler{
		registry:  registry,
		runner:    runner,
		taskStore: taskStore,
		generator: generator,
		searcher:  searcher,
		sink:      sink,
		defaults:  defaults,
		logger:    log,
	}, nil
}

// CreateTask handles POST /api/tasks: it builds the agent, registers the
// task, and queues it for execution.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req CreateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request data", err)
		return
	}

	cfg := h.agentConfig(&req)
	created, err := h.buildTask(domain.AgentType(req.AgentType), cfg)
	if err != nil {
		status := MapErrorToStatusCode(err)
		shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), err)
		return
	}

	if err := h.runner.Submit(r.Context(), created, req.Input); err != nil {
		status := MapErrorToStatusCode(err)
		shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), err)
		return
	}

	log.Info("task created",
		"task_id", created.ID(),
		"agent_type", created.Type(),
		"project_id", cfg.ProjectID)

	// 202: the task is queued, not done.
	shared.RespondWithJSON(w, r, http.StatusAccepted, newTaskResponse(created.Snapshot()))
}

// GetTask handles GET /api/tasks/{id}. Live tasks answer from the registry;
// tasks from a previous process answer from their persisted snapshot.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := h.taskIDParam(w, r)
	if !ok {
		return
	}

	if live, err := h.registry.Get(taskID); err == nil {
		shared.RespondWithJSON(w, r, http.StatusOK, newTaskResponse(live.Snapshot()))
		return
	}

	snapshot, err := h.taskStore.GetSnapshot(r.Context(), taskID)
	if err != nil {
		status := MapErrorToStatusCode(err)
		shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, newTaskResponseFromSnapshot(snapshot))
}

// ListTasks handles GET /api/tasks, returning every live task.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	snapshots := h.registry.List()
	resp := TaskListResponse{
		Tasks: make([]TaskResponse, len(snapshots)),
		Count: len(snapshots),
	}
	for i, snap := range snapshots {
		resp.Tasks[i] = newTaskResponse(snap)
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// CancelTask handles POST /api/tasks/{id}/cancel.
func (h *TaskHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	h.controlSignal(w, r, h.registry.RequestCancel, "cancel requested")
}

// PauseTask handles POST /api/tasks/{id}/pause.
func (h *TaskHandler) PauseTask(w http.ResponseWriter, r *http.Request) {
	h.controlSignal(w, r, h.registry.RequestPause, "pause requested")
}

// ResumeTask handles POST /api/tasks/{id}/resume.
func (h *TaskHandler) ResumeTask(w http.ResponseWriter, r *http.Request) {
	h.controlSignal(w, r, h.registry.RequestResume, "resume requested")
}

// DeleteTask handles DELETE /api/tasks/{id}: a terminal task is removed from
// the registry and its snapshot deleted.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	taskID, ok := h.taskIDParam(w, r)
	if !ok {
		return
	}

	if live, err := h.registry.Get(taskID); err == nil {
		if !live.Status().IsTerminal() {
			err := domain.ErrInvalidTransition
			shared.RespondWithErrorAndLog(w, r, http.StatusConflict,
				"Only finished tasks can be deleted", err)
			return
		}
		_ = h.registry.Remove(taskID)
	}

	if err := h.taskStore.DeleteSnapshot(r.Context(), taskID); err != nil && !errors.Is(err, store.ErrNotFound) {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			GetSafeErrorMessage(err), err)
		return
	}

	log.Info("task deleted", "task_id", taskID)
	w.WriteHeader(http.StatusNoContent)
}

// controlSignal applies a registry control operation and responds with the
// task's resulting snapshot.
func (h *TaskHandler) controlSignal(w http.ResponseWriter, r *http.Request, op func(uuid.UUID) error, action string) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	taskID, ok := h.taskIDParam(w, r)
	if !ok {
		return
	}

	if err := op(taskID); err != nil {
		status := MapErrorToStatusCode(err)
		shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), err)
		return
	}

	log.Info(action, "task_id", taskID)

	live, err := h.registry.Get(taskID)
	if err != nil {
		status := MapErrorToStatusCode(err)
		shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusAccepted, newTaskResponse(live.Snapshot()))
}

// taskIDParam parses the {id} path parameter, writing the error response on
// failure.
func (h *TaskHandler) taskIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	taskID, err := uuid.Parse(raw)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid task ID", err)
		return uuid.Nil, false
	}
	return taskID, true
}

// agentConfig builds the run parameters from the configured defaults and the
// request's overrides.
func (h *TaskHandler) agentConfig(req *CreateTaskRequest) domain.AgentConfig {
	cfg := domain.NewAgentConfig()
	cfg.ProjectID = req.ProjectID
	cfg.TimeLimit = h.defaults.DefaultTimeLimit
	cfg.MaxTokens = h.defaults.MaxTokens
	cfg.MaxCostUSD = h.defaults.MaxCostUSD

	if req.TimeLimitSeconds > 0 {
		cfg.TimeLimit = time.Duration(req.TimeLimitSeconds) * time.Second
	}
	if req.MaxTokens > 0 {
		cfg.MaxTokens = req.MaxTokens
	}
	if req.MaxCostUSD > 0 {
		cfg.MaxCostUSD = req.MaxCostUSD
	}
	if req.Model != "" {
		cfg.Model = req.Model
	}
	if req.Temperature != nil {
		cfg.Temperature = *req.Temperature
	}
	if req.UseRAG != nil {
		cfg.UseRAG = *req.UseRAG
	}
	return cfg
}

// buildTask constructs the agent for the requested type and wraps it in a
// task.
func (h *TaskHandler) buildTask(agentType domain.AgentType, cfg domain.AgentConfig) (*agent.Task, error) {
	var a agent.Agent
	switch agentType {
	case domain.AgentTypeWriting:
		writing, err := agent.NewWritingAgent(h.generator, h.searcher, h.logger)
		if err != nil {
			return nil, err
		}
		a = writing
	default:
		return nil, domain.ErrInvalidInput
	}
	return agent.NewTask(a, cfg, h.sink, h.logger)
}
