package domain

// TaskStatus represents the current state of an agent task.
type TaskStatus string

// Possible task status values. The state machine moves
// Pending -> Running -> {Paused <-> Running} -> {Completed | Failed | Cancelled}.
const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusPaused    TaskStatus = "paused"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// IsTerminal reports whether the status is one of the three terminal states.
// No transition out of a terminal state is ever allowed.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// IsValid reports whether the status is a known value.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusPaused,
		TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// AgentType identifies the kind of agent a task runs. Only the writing agent
// is implemented today; the registry and state machine are generic over any
// agent kind.
type AgentType string

// Known agent types.
const (
	AgentTypeWriting    AgentType = "writing"
	AgentTypeResearch   AgentType = "research"
	AgentTypeCompliance AgentType = "compliance"
	AgentTypeCreative   AgentType = "creative"
	AgentTypeAnalysis   AgentType = "analysis"
	AgentTypeReview     AgentType = "review"
	AgentTypeLearning   AgentType = "learning"
)
