package task_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantpilot/api/internal/domain"
	"github.com/grantpilot/api/internal/store"
	"github.com/grantpilot/api/internal/task"
)

func newRunner(t *testing.T, registry *task.Registry, taskStore store.TaskStore, config task.RunnerConfig) *task.Runner {
	t.Helper()
	runner, err := task.NewRunner(registry, taskStore, nil, config, testLogger())
	require.NoError(t, err)
	return runner
}

func TestRunner_SubmitAndComplete(t *testing.T) {
	t.Parallel()

	registry := task.NewRegistry()
	taskStore := store.NewMemoryTaskStore()
	runner := newRunner(t, registry, taskStore, task.DefaultRunnerConfig())
	require.NoError(t, runner.Start(context.Background()))
	defer runner.Stop()

	created := newAgentTask(t, instantAgent{})
	require.NoError(t, runner.Submit(context.Background(), created, nil))

	require.Eventually(t, func() bool {
		return created.Status() == domain.TaskStatusCompleted
	}, 2*time.Second, 5*time.Millisecond)

	// The terminal snapshot lands in the store.
	require.Eventually(t, func() bool {
		snapshot, err := taskStore.GetSnapshot(context.Background(), created.ID())
		return err == nil && snapshot.Status == domain.TaskStatusCompleted
	}, 2*time.Second, 5*time.Millisecond)

	snapshot, err := taskStore.GetSnapshot(context.Background(), created.ID())
	require.NoError(t, err)
	assert.Equal(t, "instant", snapshot.Output)
	assert.NotNil(t, snapshot.CompletedAt)
}

func TestRunner_SubmitDuplicate(t *testing.T) {
	t.Parallel()

	registry := task.NewRegistry()
	runner := newRunner(t, registry, store.NewMemoryTaskStore(), task.DefaultRunnerConfig())

	created := newAgentTask(t, instantAgent{})
	require.NoError(t, runner.Submit(context.Background(), created, nil))
	assert.ErrorIs(t, runner.Submit(context.Background(), created, nil), domain.ErrDuplicateTaskID)
}

func TestRunner_QueueFullRejectsAndUnwinds(t *testing.T) {
	t.Parallel()

	registry := task.NewRegistry()
	taskStore := store.NewMemoryTaskStore()
	// Not started: nothing drains the queue.
	runner := newRunner(t, registry, taskStore, task.RunnerConfig{WorkerCount: 1, QueueSize: 1})

	first := newAgentTask(t, instantAgent{})
	second := newAgentTask(t, instantAgent{})

	require.NoError(t, runner.Submit(context.Background(), first, nil))
	err := runner.Submit(context.Background(), second, nil)
	require.ErrorIs(t, err, task.ErrQueueFull)

	// The rejected task leaves no trace.
	_, err = registry.Get(second.ID())
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	_, err = taskStore.GetSnapshot(context.Background(), second.ID())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunner_RecoveryMarksInterruptedTasksFailed(t *testing.T) {
	t.Parallel()

	taskStore := store.NewMemoryTaskStore()
	ctx := context.Background()

	checkpoint := domain.NewCheckpoint()
	checkpoint.LastStep = "generating_draft"
	checkpoint.StepIndex = 2
	checkpoint.TotalSteps = 4

	interrupted := &store.TaskSnapshot{
		TaskID:     uuid.New(),
		AgentType:  domain.AgentTypeWriting,
		Status:     domain.TaskStatusRunning,
		Checkpoint: checkpoint,
	}
	finished := &store.TaskSnapshot{
		TaskID:    uuid.New(),
		AgentType: domain.AgentTypeWriting,
		Status:    domain.TaskStatusCompleted,
		Output:    "kept as is",
	}
	require.NoError(t, taskStore.SaveSnapshot(ctx, interrupted))
	require.NoError(t, taskStore.SaveSnapshot(ctx, finished))

	runner := newRunner(t, task.NewRegistry(), taskStore, task.DefaultRunnerConfig())
	require.NoError(t, runner.Start(ctx))
	defer runner.Stop()

	got, err := taskStore.GetSnapshot(ctx, interrupted.TaskID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, got.Status)
	assert.Equal(t, "task interrupted by service restart", got.ErrorMessage)
	assert.NotNil(t, got.CompletedAt)
	// The checkpoint survives for inspection and resubmission.
	require.NotNil(t, got.Checkpoint)
	assert.Equal(t, "generating_draft", got.Checkpoint.LastStep)

	untouched, err := taskStore.GetSnapshot(ctx, finished.TaskID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, untouched.Status)
	assert.Equal(t, "kept as is", untouched.Output)
}

func TestRunner_StopRejectsSubmissions(t *testing.T) {
	t.Parallel()

	runner := newRunner(t, task.NewRegistry(), store.NewMemoryTaskStore(), task.DefaultRunnerConfig())
	require.NoError(t, runner.Start(context.Background()))
	runner.Stop()

	err := runner.Submit(context.Background(), newAgentTask(t, instantAgent{}), nil)
	assert.ErrorIs(t, err, task.ErrRunnerClosed)
}

func TestRunner_StopCancelsRunningTasks(t *testing.T) {
	t.Parallel()

	registry := task.NewRegistry()
	taskStore := store.NewMemoryTaskStore()
	runner := newRunner(t, registry, taskStore, task.DefaultRunnerConfig())
	require.NoError(t, runner.Start(context.Background()))

	blocking := newBlockingAgent()
	created := newAgentTask(t, blocking)
	require.NoError(t, runner.Submit(context.Background(), created, nil))
	<-blocking.started

	runner.Stop()

	assert.Equal(t, domain.TaskStatusCancelled, created.Status())
}
