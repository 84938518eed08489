package domain

import (
	"time"

	"github.com/google/uuid"
)

// Result is the outcome of a task run. Run always returns a Result, never an
// error: failures are embedded as a Failed status with an error message.
type Result struct {
	TaskID    uuid.UUID  `json:"task_id"`
	AgentType AgentType  `json:"agent_type"`
	Status    TaskStatus `json:"status"`

	// Output is the final text produced, empty for cancelled or failed runs.
	Output string `json:"output,omitempty"`

	// OutputSections maps section names to their generated content.
	OutputSections map[string]string `json:"output_sections,omitempty"`

	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration"`

	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	CostUSD          float64 `json:"cost_usd"`

	// ErrorMessage is human-readable and set for Failed and Cancelled runs.
	ErrorMessage string `json:"error_message,omitempty"`

	// Checkpoint is a copy of the task's checkpoint at completion, sufficient
	// to resume after a crash.
	Checkpoint *Checkpoint `json:"checkpoint,omitempty"`
}
