package api

import (
	"errors"
	"net/http"

	"github.com/grantpilot/api/internal/domain"
	"github.com/grantpilot/api/internal/store"
	"github.com/grantpilot/api/internal/task"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes. This
// prevents leaking internal error types or messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrTaskNotFound),
		errors.Is(err, domain.ErrObserverNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrDuplicateTaskID):
		return http.StatusConflict

	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest

	case errors.Is(err, task.ErrQueueFull):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly message for the
// error.
func GetSafeErrorMessage(err error) string {
	switch {
	case err == nil:
		return "An unexpected error occurred"

	case errors.Is(err, domain.ErrTaskNotFound),
		errors.Is(err, store.ErrNotFound):
		return "Task not found"

	case errors.Is(err, domain.ErrObserverNotFound):
		return "Observer not found"

	case errors.Is(err, domain.ErrInvalidTransition):
		return "Operation not allowed in the task's current state"

	case errors.Is(err, domain.ErrDuplicateTaskID):
		return "A task with this ID already exists"

	case errors.Is(err, domain.ErrInvalidInput):
		return "Invalid task input"

	case errors.Is(err, domain.ErrValidation):
		return "Invalid request data"

	case errors.Is(err, task.ErrQueueFull):
		return "Task queue is full, try again later"

	default:
		return "An unexpected error occurred"
	}
}
