package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrTaskNotFound is returned when a task ID does not exist in the registry.
	ErrTaskNotFound = errors.New("task not found")

	// ErrObserverNotFound is returned when an observer ID is not connected.
	ErrObserverNotFound = errors.New("observer not found")

	// ErrInvalidTransition is returned when a control signal is incompatible
	// with the task's current status, e.g. pausing a task that is not running
	// or cancelling a task that already reached a terminal status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidInput is returned when a task-creation payload is malformed
	// or fails validation.
	ErrInvalidInput = errors.New("invalid task input")

	// ErrDuplicateTaskID is returned when a task ID collides with one already
	// stored in the registry. Practically unreachable with random IDs, but
	// handled defensively.
	ErrDuplicateTaskID = errors.New("task ID already exists")

	// ErrBudgetExceeded is returned when cumulative token usage or cost
	// crosses the task's configured limit mid-run.
	ErrBudgetExceeded = errors.New("budget exceeded")

	// ErrTaskCancelled is returned from a cooperative checkpoint when
	// cancellation has been requested.
	ErrTaskCancelled = errors.New("task was cancelled")

	// ErrTaskTimeout is returned when the external hard deadline fires before
	// the cooperative cancellation path exits.
	ErrTaskTimeout = errors.New("task deadline exceeded")
)
