package agent

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/grantpilot/api/internal/domain"
)

// Common errors returned by constructors in this package.
var (
	ErrNilAgent     = errors.New("agent cannot be nil")
	ErrNilSink      = errors.New("event sink cannot be nil")
	ErrNilLogger    = errors.New("logger cannot be nil")
	ErrNilGenerator = errors.New("generator cannot be nil")
	ErrNilSearcher  = errors.New("searcher cannot be nil")
)

// Output is what an agent's Execute produces on success.
type Output struct {
	// Text is the final assembled output.
	Text string

	// Sections maps section names to their generated content.
	Sections map[string]string
}

// Agent is the capability set a task is generic over. Implementations
// perform the actual multi-step work: they call Task.UpdateCheckpoint after
// each logical step, emit progress through the task, and must call
// Task.CheckBoundary between steps so cancel/pause signals and budget
// enforcement are observed cooperatively.
type Agent interface {
	// Type identifies the agent kind.
	Type() domain.AgentType

	// SystemPrompt returns the agent-specific system prompt.
	SystemPrompt() string

	// Execute performs the work. It returns the produced output, or an error
	// which the task's Run converts into a Failed (or Cancelled) result.
	Execute(ctx context.Context, task *Task, input json.RawMessage) (*Output, error)
}
