package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/grantpilot/api/internal/agent"
	"github.com/grantpilot/api/internal/store"
)

// CreateTaskRequest is the body for POST /api/tasks.
type CreateTaskRequest struct {
	AgentType string          `json:"agent_type" validate:"required,oneof=writing"`
	Input     json.RawMessage `json:"input"      validate:"required"`
	ProjectID uuid.UUID       `json:"project_id,omitempty"`

	// Optional overrides of the configured defaults.
	TimeLimitSeconds int      `json:"time_limit_seconds,omitempty" validate:"omitempty,gt=0"`
	MaxTokens        int      `json:"max_tokens,omitempty"         validate:"omitempty,gt=0"`
	MaxCostUSD       float64  `json:"max_cost_usd,omitempty"       validate:"omitempty,gt=0"`
	Model            string   `json:"model,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"        validate:"omitempty,gte=0,lte=2"`
	UseRAG           *bool    `json:"use_rag,omitempty"`
}

// TaskResponse is the client view of a task.
type TaskResponse struct {
	TaskID           uuid.UUID  `json:"task_id"`
	AgentType        string     `json:"agent_type"`
	Status           string     `json:"status"`
	ProgressPercent  int        `json:"progress_percent"`
	CurrentStep      string     `json:"current_step,omitempty"`
	Output           string     `json:"output,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	PromptTokens     int        `json:"prompt_tokens"`
	CompletionTokens int        `json:"completion_tokens"`
	TotalTokens      int        `json:"total_tokens"`
	CostUSD          float64    `json:"cost_usd"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// TaskListResponse wraps the task collection.
type TaskListResponse struct {
	Tasks []TaskResponse `json:"tasks"`
	Count int            `json:"count"`
}

// newTaskResponse builds a response from a live task snapshot.
func newTaskResponse(snap agent.StatusSnapshot) TaskResponse {
	return TaskResponse{
		TaskID:           snap.TaskID,
		AgentType:        string(snap.AgentType),
		Status:           string(snap.Status),
		ProgressPercent:  snap.ProgressPercent,
		CurrentStep:      snap.CurrentStep,
		Output:           snap.Output,
		ErrorMessage:     snap.ErrorMessage,
		PromptTokens:     snap.PromptTokens,
		CompletionTokens: snap.CompletionTokens,
		TotalTokens:      snap.TokensUsed,
		CostUSD:          snap.CostUSD,
		StartedAt:        snap.StartedAt,
		CompletedAt:      snap.CompletedAt,
	}
}

// newTaskResponseFromSnapshot builds a response from a persisted snapshot,
// used for tasks that are no longer live in this process.
func newTaskResponseFromSnapshot(snapshot *store.TaskSnapshot) TaskResponse {
	resp := TaskResponse{
		TaskID:           snapshot.TaskID,
		AgentType:        string(snapshot.AgentType),
		Status:           string(snapshot.Status),
		Output:           snapshot.Output,
		ErrorMessage:     snapshot.ErrorMessage,
		PromptTokens:     snapshot.PromptTokens,
		CompletionTokens: snapshot.CompletionTokens,
		TotalTokens:      snapshot.PromptTokens + snapshot.CompletionTokens,
		CostUSD:          snapshot.CostUSD,
		StartedAt:        snapshot.StartedAt,
		CompletedAt:      snapshot.CompletedAt,
	}
	if snapshot.Checkpoint != nil {
		resp.ProgressPercent = snapshot.Checkpoint.Progress()
		resp.CurrentStep = snapshot.Checkpoint.LastStep
	}
	return resp
}
