package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/grantpilot/api/internal/domain"
)

// TaskSnapshot is the persisted record of a task's observable state. The
// runner upserts one after every status or checkpoint change so the task can
// be inspected after a restart.
type TaskSnapshot struct {
	TaskID           uuid.UUID
	ProjectID        uuid.UUID
	AgentType        domain.AgentType
	Status           domain.TaskStatus
	Input            json.RawMessage
	Checkpoint       *domain.Checkpoint
	Output           string
	ErrorMessage     string
	PromptTokens     int
	CompletionTokens int
	CostUSD          float64
	StartedAt        *time.Time
	CompletedAt      *time.Time
	UpdatedAt        time.Time
}

// TaskStore persists task snapshots.
type TaskStore interface {
	// SaveSnapshot inserts or replaces the snapshot for its task ID.
	SaveSnapshot(ctx context.Context, snapshot *TaskSnapshot) error

	// SaveSnapshots persists a batch of snapshots, atomically where the
	// backing storage supports transactions.
	SaveSnapshots(ctx context.Context, snapshots []*TaskSnapshot) error

	// GetSnapshot returns the snapshot for taskID, or ErrNotFound.
	GetSnapshot(ctx context.Context, taskID uuid.UUID) (*TaskSnapshot, error)

	// ListUnfinished returns every snapshot whose status is non-terminal,
	// oldest first. These are the tasks a previous process left behind.
	ListUnfinished(ctx context.Context) ([]*TaskSnapshot, error)

	// DeleteSnapshot removes the snapshot for taskID. Deleting a missing
	// snapshot returns ErrNotFound.
	DeleteSnapshot(ctx context.Context, taskID uuid.UUID) error
}
