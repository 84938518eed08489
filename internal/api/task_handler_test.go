package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantpilot/api/internal/config"
	"github.com/grantpilot/api/internal/domain"
	"github.com/grantpilot/api/internal/events"
	"github.com/grantpilot/api/internal/generation"
	"github.com/grantpilot/api/internal/search"
	"github.com/grantpilot/api/internal/store"
	"github.com/grantpilot/api/internal/task"
)

// stubGenerator returns canned content without calling any LLM.
type stubGenerator struct {
	content string
	err     error
}

func (g *stubGenerator) Generate(_ context.Context, req generation.Request) (*generation.Result, error) {
	if g.err != nil {
		return nil, g.err
	}
	if req.OnChunk != nil {
		req.OnChunk(g.content)
	}
	return &generation.Result{
		Content:          g.content,
		PromptTokens:     120,
		CompletionTokens: 80,
		CostUSD:          0.002,
	}, nil
}

type testEnv struct {
	handler  *TaskHandler
	registry *task.Registry
	runner   *task.Runner
	store    *store.MemoryTaskStore
	router   chi.Router
}

// newTestEnv wires a handler against in-memory collaborators. When started
// is false the runner accepts submissions but never executes them, which
// keeps created tasks pinned at pending.
func newTestEnv(t *testing.T, started bool) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	taskStore := store.NewMemoryTaskStore()
	registry := task.NewRegistry()

	runner, err := task.NewRunner(registry, taskStore, nil, task.RunnerConfig{
		WorkerCount: 2,
		QueueSize:   8,
	}, logger)
	require.NoError(t, err)

	if started {
		require.NoError(t, runner.Start(context.Background()))
		t.Cleanup(runner.Stop)
	}

	handler, err := NewTaskHandler(
		registry,
		runner,
		taskStore,
		&stubGenerator{content: "Draft text."},
		search.NewStaticSearcher(),
		&events.NopSink{},
		config.TaskConfig{
			DefaultTimeLimit: time.Minute,
			MaxTokens:        100000,
			MaxCostUSD:       5.0,
		},
		logger,
	)
	require.NoError(t, err)

	router := chi.NewRouter()
	router.Route("/api/tasks", func(r chi.Router) {
		r.Post("/", handler.CreateTask)
		r.Get("/", handler.ListTasks)
		r.Get("/{id}", handler.GetTask)
		r.Delete("/{id}", handler.DeleteTask)
		r.Post("/{id}/cancel", handler.CancelTask)
		r.Post("/{id}/pause", handler.PauseTask)
		r.Post("/{id}/resume", handler.ResumeTask)
	})

	return &testEnv{
		handler:  handler,
		registry: registry,
		runner:   runner,
		store:    taskStore,
		router:   router,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(v)
	default:
		data, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewBuffer(data)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func createBody() map[string]any {
	return map[string]any{
		"agent_type": "writing",
		"input": map[string]any{
			"section":       "specific_aims",
			"project_title": "Mechanisms of Cardiac Fibrosis",
		},
	}
}

func decodeTask(t *testing.T, rec *httptest.ResponseRecorder) TaskResponse {
	t.Helper()
	var resp TaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestCreateTask(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodPost, "/api/tasks", createBody())
	require.Equal(t, http.StatusAccepted, rec.Code)

	resp := decodeTask(t, rec)
	assert.NotEqual(t, uuid.Nil, resp.TaskID)
	assert.Equal(t, "writing", resp.AgentType)
	assert.Equal(t, string(domain.TaskStatusPending), resp.Status)
	assert.Equal(t, 0, resp.ProgressPercent)

	// Submission persists a pending snapshot immediately.
	snapshot, err := env.store.GetSnapshot(context.Background(), resp.TaskID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, snapshot.Status)
}

func TestCreateTask_InvalidRequests(t *testing.T) {
	env := newTestEnv(t, false)

	tests := []struct {
		name string
		body any
	}{
		{"malformed JSON", `{"agent_type": `},
		{"unknown agent type", map[string]any{"agent_type": "review", "input": map[string]any{}}},
		{"missing input", map[string]any{"agent_type": "writing"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/tasks", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestGetTask_InvalidID(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodGet, "/api/tasks/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTask_NotFound(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodGet, "/api/tasks/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTask_FallsBackToSnapshot(t *testing.T) {
	env := newTestEnv(t, false)

	taskID := uuid.New()
	now := time.Now().UTC()
	checkpoint := domain.NewCheckpoint()
	checkpoint.LastStep = "formatting"
	checkpoint.StepIndex = 4
	checkpoint.TotalSteps = 4
	require.NoError(t, env.store.SaveSnapshot(context.Background(), &store.TaskSnapshot{
		TaskID:           taskID,
		AgentType:        domain.AgentTypeWriting,
		Status:           domain.TaskStatusCompleted,
		Checkpoint:       checkpoint,
		Output:           "Finished draft.",
		PromptTokens:     100,
		CompletionTokens: 60,
		CostUSD:          0.01,
		StartedAt:        &now,
		CompletedAt:      &now,
	}))

	rec := env.do(t, http.MethodGet, "/api/tasks/"+taskID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeTask(t, rec)
	assert.Equal(t, string(domain.TaskStatusCompleted), resp.Status)
	assert.Equal(t, 100, resp.ProgressPercent)
	assert.Equal(t, "formatting", resp.CurrentStep)
	assert.Equal(t, "Finished draft.", resp.Output)
	assert.Equal(t, 160, resp.TotalTokens)
}

func TestListTasks(t *testing.T) {
	env := newTestEnv(t, false)

	for i := 0; i < 3; i++ {
		rec := env.do(t, http.MethodPost, "/api/tasks", createBody())
		require.Equal(t, http.StatusAccepted, rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/api/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TaskListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Count)
	assert.Len(t, resp.Tasks, 3)
}

func TestPauseTask_NotRunningConflict(t *testing.T) {
	env := newTestEnv(t, false)

	created := decodeTask(t, env.do(t, http.MethodPost, "/api/tasks", createBody()))

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/tasks/%s/pause", created.TaskID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCancelTask_Accepted(t *testing.T) {
	env := newTestEnv(t, false)

	created := decodeTask(t, env.do(t, http.MethodPost, "/api/tasks", createBody()))

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/tasks/%s/cancel", created.TaskID), nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
}

func TestCancelTask_NotFound(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/tasks/%s/cancel", uuid.New()), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTaskLifecycle_RunsToCompletion(t *testing.T) {
	env := newTestEnv(t, true)

	created := decodeTask(t, env.do(t, http.MethodPost, "/api/tasks", createBody()))
	path := "/api/tasks/" + created.TaskID.String()

	require.Eventually(t, func() bool {
		live, err := env.registry.Get(created.TaskID)
		return err == nil && live.Status() == domain.TaskStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	resp := decodeTask(t, env.do(t, http.MethodGet, path, nil))
	assert.Equal(t, 100, resp.ProgressPercent)
	assert.Equal(t, "Draft text.", resp.Output)
	assert.Equal(t, 200, resp.TotalTokens)
	assert.InDelta(t, 0.002, resp.CostUSD, 1e-9)
}

func TestDeleteTask(t *testing.T) {
	env := newTestEnv(t, true)

	created := decodeTask(t, env.do(t, http.MethodPost, "/api/tasks", createBody()))
	path := "/api/tasks/" + created.TaskID.String()

	// Wait for the final snapshot so deletion races nothing.
	require.Eventually(t, func() bool {
		snapshot, err := env.store.GetSnapshot(context.Background(), created.TaskID)
		return err == nil && snapshot.Status == domain.TaskStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	rec := env.do(t, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteTask_PendingConflict(t *testing.T) {
	env := newTestEnv(t, false)

	created := decodeTask(t, env.do(t, http.MethodPost, "/api/tasks", createBody()))

	rec := env.do(t, http.MethodDelete, "/api/tasks/"+created.TaskID.String(), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
