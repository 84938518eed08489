package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/grantpilot/api/internal/domain"
	"github.com/grantpilot/api/internal/store"
	"github.com/grantpilot/api/internal/task"
)

func TestMapErrorToStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"task not found", domain.ErrTaskNotFound, http.StatusNotFound},
		{"observer not found", domain.ErrObserverNotFound, http.StatusNotFound},
		{"snapshot not found", store.ErrNotFound, http.StatusNotFound},
		{"invalid transition", domain.ErrInvalidTransition, http.StatusConflict},
		{"duplicate task", domain.ErrDuplicateTaskID, http.StatusConflict},
		{"invalid input", domain.ErrInvalidInput, http.StatusBadRequest},
		{"validation", domain.ErrValidation, http.StatusBadRequest},
		{"queue full", task.ErrQueueFull, http.StatusServiceUnavailable},
		{"wrapped", fmt.Errorf("context: %w", domain.ErrTaskNotFound), http.StatusNotFound},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapErrorToStatusCode(tt.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	assert.Equal(t, "Task not found", GetSafeErrorMessage(domain.ErrTaskNotFound))
	assert.Equal(t, "Operation not allowed in the task's current state",
		GetSafeErrorMessage(fmt.Errorf("wrap: %w", domain.ErrInvalidTransition)))
	assert.Equal(t, "Task queue is full, try again later", GetSafeErrorMessage(task.ErrQueueFull))

	// Raw error text must never leak.
	msg := GetSafeErrorMessage(errors.New("pq: connection refused host=10.0.0.1"))
	assert.Equal(t, "An unexpected error occurred", msg)
	assert.NotContains(t, msg, "10.0.0.1")
}
