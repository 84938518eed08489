package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxDepthLevel bounds sub-task spawning depth.
const MaxDepthLevel = 3

// AgentConfig holds the immutable run parameters for a single agent task.
// It is set at task creation and never mutated afterwards.
type AgentConfig struct {
	// TaskID is the caller-visible unique identifier of the task.
	TaskID uuid.UUID

	// ProjectID optionally scopes the task to a project.
	ProjectID uuid.UUID

	// TimeLimit is the hard deadline for the whole run. The cooperative
	// cancellation path is primary; this limit is the safety net.
	TimeLimit time.Duration

	// MaxTokens caps cumulative token usage (prompt + completion).
	MaxTokens int

	// MaxCostUSD caps cumulative generation cost.
	MaxCostUSD float64

	// Model is the generation model identifier.
	Model string

	// Temperature is passed through to the generation call.
	Temperature float64

	// UseRAG controls whether document context is retrieved before writing.
	UseRAG bool

	// MaxContextChunks bounds how many retrieved passages are included.
	MaxContextChunks int

	// DepthLevel is 0 for root tasks; sub-tasks increment it, up to
	// MaxDepthLevel.
	DepthLevel int

	// ParentTaskID links a spawned sub-task to its parent.
	ParentTaskID uuid.UUID
}

// NewAgentConfig returns an AgentConfig with a fresh task ID and the
// default limits.
func NewAgentConfig() AgentConfig {
	return AgentConfig{
		TaskID:           uuid.New(),
		TimeLimit:        30 * time.Minute,
		MaxTokens:        100000,
		MaxCostUSD:       5.0,
		Model:            "gemini-2.0-flash",
		Temperature:      0.7,
		UseRAG:           true,
		MaxContextChunks: 10,
		DepthLevel:       0,
	}
}

// Validate checks the configuration invariants.
func (c AgentConfig) Validate() error {
	if c.TaskID == uuid.Nil {
		return fmt.Errorf("%w: task ID cannot be nil", ErrValidation)
	}
	if c.TimeLimit <= 0 {
		return fmt.Errorf("%w: time limit must be positive", ErrValidation)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("%w: max tokens must be positive", ErrValidation)
	}
	if c.MaxCostUSD <= 0 {
		return fmt.Errorf("%w: max cost must be positive", ErrValidation)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model cannot be empty", ErrValidation)
	}
	if c.DepthLevel < 0 || c.DepthLevel > MaxDepthLevel {
		return fmt.Errorf("%w: depth level must be between 0 and %d", ErrValidation, MaxDepthLevel)
	}
	return nil
}
