package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCheckpoint(t *testing.T) {
	cp := NewCheckpoint()

	assert.Equal(t, checkpointVersion, cp.Version)
	assert.Empty(t, cp.CompletedItems)
	assert.Empty(t, cp.InterimResults)
	assert.Zero(t, cp.StepIndex)
	assert.Zero(t, cp.TotalSteps)
}

func TestCheckpointProgress(t *testing.T) {
	tests := []struct {
		name       string
		stepIndex  int
		totalSteps int
		want       int
	}{
		{"unknown total steps", 2, 0, 0},
		{"zero of four", 0, 4, 0},
		{"one of four", 1, 4, 25},
		{"two of four", 2, 4, 50},
		{"three of four", 3, 4, 75},
		{"four of four", 4, 4, 100},
		{"truncates", 1, 3, 33},
		{"clamped above when step re-run after resume", 5, 4, 100},
		{"clamped below", -1, 4, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp := NewCheckpoint()
			cp.StepIndex = tt.stepIndex
			cp.TotalSteps = tt.totalSteps
			assert.Equal(t, tt.want, cp.Progress())
		})
	}
}

func TestCheckpointHasCompleted(t *testing.T) {
	cp := NewCheckpoint()
	cp.CompletedItems = append(cp.CompletedItems, "specific_aims")

	assert.True(t, cp.HasCompleted("specific_aims"))
	assert.False(t, cp.HasCompleted("approach"))
}

func TestCheckpointClone(t *testing.T) {
	cp := NewCheckpoint()
	cp.LastStep = "generating_draft"
	cp.CompletedItems = append(cp.CompletedItems, "a")
	cp.InterimResults["output"] = "partial"

	clone := cp.Clone()

	// Mutating the clone must not leak back into the original.
	clone.CompletedItems = append(clone.CompletedItems, "b")
	clone.InterimResults["output"] = "changed"

	assert.Equal(t, []string{"a"}, cp.CompletedItems)
	assert.Equal(t, "partial", cp.InterimResults["output"])
	assert.Equal(t, "generating_draft", clone.LastStep)
}

func TestCheckpointCloneNil(t *testing.T) {
	var cp *Checkpoint
	assert.Nil(t, cp.Clone())
}
