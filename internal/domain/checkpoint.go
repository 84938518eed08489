package domain

import (
	"slices"
	"time"
)

// checkpointVersion is bumped when the serialized shape changes.
const checkpointVersion = 1

// Checkpoint is a crash-resumable snapshot of a task's progress. It is
// created with the task and mutated exclusively by the owning task on its
// own execution path; status queries only ever read copies of it.
type Checkpoint struct {
	// Version identifies the serialized checkpoint shape.
	Version int `json:"version"`

	// LastStep is the name of the most recently completed phase.
	LastStep string `json:"last_step"`

	// StepIndex is the index of the most recently completed step.
	StepIndex int `json:"step_index"`

	// TotalSteps is the number of steps, or 0 when unknown (open-ended tasks).
	TotalSteps int `json:"total_steps"`

	// CompletedItems records identifiers of finished work items so a resumed
	// run can skip them idempotently.
	CompletedItems []string `json:"completed_items"`

	// InterimResults maps result keys to partial output. Merge-only: new keys
	// are added and an existing key is only overwritten by the same step
	// re-running.
	InterimResults map[string]string `json:"interim_results"`

	// TokensAtCheckpoint and CostAtCheckpoint record cumulative resource
	// usage at the time of the last update.
	TokensAtCheckpoint int     `json:"tokens_at_checkpoint"`
	CostAtCheckpoint   float64 `json:"cost_at_checkpoint"`

	// SavedAt is the instant of the last update.
	SavedAt time.Time `json:"saved_at"`
}

// NewCheckpoint returns an empty checkpoint for a freshly created task.
func NewCheckpoint() *Checkpoint {
	return &Checkpoint{
		Version:        checkpointVersion,
		CompletedItems: make([]string, 0),
		InterimResults: make(map[string]string),
	}
}

// Progress returns the completion percentage derived from StepIndex and
// TotalSteps, truncated to an integer and clamped to [0,100]. A step re-run
// after resume can push StepIndex past TotalSteps, so the value is clamped
// rather than reported raw. Returns 0 when TotalSteps is unknown.
func (c *Checkpoint) Progress() int {
	if c.TotalSteps <= 0 {
		return 0
	}
	pct := c.StepIndex * 100 / c.TotalSteps
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// HasCompleted reports whether the given item was already recorded as done,
// allowing a resumed run to skip it.
func (c *Checkpoint) HasCompleted(item string) bool {
	return slices.Contains(c.CompletedItems, item)
}

// Clone returns a deep copy safe to hand to readers outside the owning task.
func (c *Checkpoint) Clone() *Checkpoint {
	if c == nil {
		return nil
	}
	clone := *c
	clone.CompletedItems = slices.Clone(c.CompletedItems)
	clone.InterimResults = make(map[string]string, len(c.InterimResults))
	for k, v := range c.InterimResults {
		clone.InterimResults[k] = v
	}
	return &clone
}
