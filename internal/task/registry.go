package task

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/grantpilot/api/internal/agent"
	"github.com/grantpilot/api/internal/domain"
)

// ErrNilTask is returned when a nil task is registered.
var ErrNilTask = errors.New("task cannot be nil")

// Registry is the authoritative map of live tasks. Control signals go
// through it so transition rules are validated in one place; the flag writes
// themselves are delegated to the task.
type Registry struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*agent.Task
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tasks: make(map[uuid.UUID]*agent.Task),
	}
}

// Add registers a task. A task ID already present returns
// domain.ErrDuplicateTaskID.
func (r *Registry) Add(t *agent.Task) error {
	if t == nil {
		return ErrNilTask
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[t.ID()]; exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateTaskID, t.ID())
	}
	r.tasks[t.ID()] = t
	return nil
}

// Get returns the task with the given ID, or domain.ErrTaskNotFound.
func (r *Registry) Get(taskID uuid.UUID) (*agent.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, taskID)
	}
	return t, nil
}

// RequestCancel flags the task for cancellation. Terminal tasks cannot be
// cancelled.
func (r *Registry) RequestCancel(taskID uuid.UUID) error {
	t, err := r.Get(taskID)
	if err != nil {
		return err
	}

	status := t.Status()
	if status.IsTerminal() {
		return fmt.Errorf("%w: cannot cancel %s task", domain.ErrInvalidTransition, status)
	}
	t.RequestCancel()
	return nil
}

// RequestPause flags a running task to pause at its next checkpoint
// boundary.
func (r *Registry) RequestPause(taskID uuid.UUID) error {
	t, err := r.Get(taskID)
	if err != nil {
		return err
	}

	if status := t.Status(); status != domain.TaskStatusRunning {
		return fmt.Errorf("%w: cannot pause %s task", domain.ErrInvalidTransition, status)
	}
	t.RequestPause()
	return nil
}

// RequestResume lets a paused task continue.
func (r *Registry) RequestResume(taskID uuid.UUID) error {
	t, err := r.Get(taskID)
	if err != nil {
		return err
	}

	status := t.Status()
	// A pause requested but not yet observed leaves the task Running with
	// the flag set; resuming then just clears the flag.
	if status != domain.TaskStatusPaused && !(status == domain.TaskStatusRunning && t.PauseRequested()) {
		return fmt.Errorf("%w: cannot resume %s task", domain.ErrInvalidTransition, status)
	}
	t.RequestResume()
	return nil
}

// Remove drops a finished task from the registry. Removing an unknown ID
// returns domain.ErrTaskNotFound; removing a task that is still pending,
// running, or paused returns domain.ErrInvalidTransition.
func (r *Registry) Remove(taskID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[taskID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, taskID)
	}
	if status := t.Status(); !status.IsTerminal() {
		return fmt.Errorf("%w: cannot remove %s task", domain.ErrInvalidTransition, status)
	}
	delete(r.tasks, taskID)
	return nil
}

// discard drops a task regardless of status. Used to unwind a registration
// whose submission never reached a worker.
func (r *Registry) discard(taskID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, taskID)
}

// List returns snapshots of every registered task.
func (r *Registry) List() []agent.StatusSnapshot {
	r.mu.RLock()
	tasks := make([]*agent.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		tasks = append(tasks, t)
	}
	r.mu.RUnlock()

	snapshots := make([]agent.StatusSnapshot, len(tasks))
	for i, t := range tasks {
		snapshots[i] = t.Snapshot()
	}
	return snapshots
}

// Len returns the number of registered tasks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}
