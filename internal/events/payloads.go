package events

import (
	"github.com/google/uuid"
)

// ConnectionPayload confirms a new observer connection and carries the
// assigned observer ID.
type ConnectionPayload struct {
	ObserverID string `json:"observer_id"`
}

// Event wraps the payload in a connection_established envelope.
func (p ConnectionPayload) Event() (*Event, error) {
	return New(KindConnectionEstablished, p)
}

// HeartbeatPayload acknowledges an observer heartbeat.
type HeartbeatPayload struct {
	Status string `json:"status"`
}

// Event wraps the payload in a heartbeat_ack envelope.
func (p HeartbeatPayload) Event() (*Event, error) {
	return New(KindHeartbeatAck, p)
}

// TaskStatusPayload describes a task lifecycle change.
type TaskStatusPayload struct {
	TaskID          uuid.UUID `json:"task_id"`
	AgentType       string    `json:"agent_type"`
	Status          string    `json:"status"`
	Message         string    `json:"message,omitempty"`
	ProgressPercent int       `json:"progress_percent"`
	CurrentStep     string    `json:"current_step,omitempty"`
	TokensUsed      int       `json:"tokens_used"`
	CostUSD         float64   `json:"cost_usd"`
}

// Event wraps the payload in a task_status envelope.
func (p TaskStatusPayload) Event() (*Event, error) {
	return New(KindTaskStatus, p)
}

// TaskProgressPayload describes completion of a logical step.
type TaskProgressPayload struct {
	TaskID          uuid.UUID `json:"task_id"`
	StepIndex       int       `json:"step_index"`
	TotalSteps      int       `json:"total_steps"`
	StepName        string    `json:"step_name"`
	StepDescription string    `json:"step_description,omitempty"`
	CompletedItems  []string  `json:"completed_items,omitempty"`
}

// Event wraps the payload in a task_progress envelope.
func (p TaskProgressPayload) Event() (*Event, error) {
	return New(KindTaskProgress, p)
}

// StreamChunkPayload carries one streamed fragment of generated text.
type StreamChunkPayload struct {
	TaskID  uuid.UUID `json:"task_id"`
	Chunk   string    `json:"chunk"`
	IsFinal bool      `json:"is_final"`
}

// Event wraps the payload in a generation_stream_chunk envelope.
func (p StreamChunkPayload) Event() (*Event, error) {
	return New(KindStreamChunk, p)
}

// DocumentStatusPayload describes document processing progress.
type DocumentStatusPayload struct {
	DocumentID      uuid.UUID `json:"document_id"`
	Filename        string    `json:"filename"`
	Status          string    `json:"status"`
	ProgressPercent int       `json:"progress_percent"`
	ChunksCreated   int       `json:"chunks_created"`
	ErrorMessage    string    `json:"error_message,omitempty"`
}

// Event wraps the payload in a document_status envelope.
func (p DocumentStatusPayload) Event() (*Event, error) {
	return New(KindDocumentStatus, p)
}

// CostUpdatePayload reports incremental generation cost.
type CostUpdatePayload struct {
	TaskID            uuid.UUID `json:"task_id"`
	Model             string    `json:"model"`
	PromptTokens      int       `json:"prompt_tokens"`
	CompletionTokens  int       `json:"completion_tokens"`
	CostUSD           float64   `json:"cost_usd"`
	CumulativeCostUSD float64   `json:"cumulative_cost_usd"`
	BudgetRemaining   float64   `json:"budget_remaining"`
}

// Event wraps the payload in a cost_update envelope.
func (p CostUpdatePayload) Event() (*Event, error) {
	return New(KindCostUpdate, p)
}

// Budget warning levels.
const (
	BudgetWarningApproaching = "approaching"
	BudgetWarningExceeded    = "exceeded"
)

// BudgetWarningPayload reports spend approaching or crossing a task budget.
type BudgetWarningPayload struct {
	TaskID       uuid.UUID `json:"task_id"`
	BudgetLimit  float64   `json:"budget_limit"`
	CurrentSpend float64   `json:"current_spend"`
	PercentUsed  float64   `json:"percent_used"`
	WarningLevel string    `json:"warning_level"`
}

// Event wraps the payload in a budget_warning envelope.
func (p BudgetWarningPayload) Event() (*Event, error) {
	return New(KindBudgetWarning, p)
}

// Notification levels.
const (
	NotificationLevelInfo    = "info"
	NotificationLevelSuccess = "success"
	NotificationLevelWarning = "warning"
	NotificationLevelError   = "error"
)

// NotificationPayload carries a user-visible notification.
type NotificationPayload struct {
	Level   string `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Event wraps the payload in a user_notification envelope.
func (p NotificationPayload) Event() (*Event, error) {
	return New(KindNotification, p)
}
