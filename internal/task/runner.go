package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/grantpilot/api/internal/agent"
	"github.com/grantpilot/api/internal/domain"
	"github.com/grantpilot/api/internal/platform/metrics"
	"github.com/grantpilot/api/internal/store"
)

// Errors returned by Submit.
var (
	ErrQueueFull    = errors.New("task queue is full")
	ErrRunnerClosed = errors.New("runner is stopped")
)

// interruptedMessage is recorded on snapshots of tasks a restart cut short.
const interruptedMessage = "task interrupted by service restart"

// RunnerConfig holds configuration for the task runner.
type RunnerConfig struct {
	// WorkerCount determines how many tasks execute concurrently.
	WorkerCount int

	// QueueSize bounds the number of submitted-but-not-started tasks.
	QueueSize int

	// SnapshotInterval is how often a running task's state is persisted.
	// Zero disables periodic snapshots; terminal snapshots are always saved.
	SnapshotInterval time.Duration
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount:      4,
		QueueSize:        64,
		SnapshotInterval: 5 * time.Second,
	}
}

// submission pairs a task with its execution input.
type submission struct {
	task  *agent.Task
	input json.RawMessage
}

// Runner executes submitted tasks on a bounded worker pool. Each accepted
// task is registered, persisted, run to a terminal status, and snapshotted
// so a restart can account for it.
type Runner struct {
	registry *Registry
	store    store.TaskStore
	metrics  *metrics.Metrics
	config   RunnerConfig
	logger   *slog.Logger

	queue      chan submission
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// NewRunner creates a runner. The metrics handle may be nil.
func NewRunner(registry *Registry, taskStore store.TaskStore, m *metrics.Metrics, config RunnerConfig, logger *slog.Logger) (*Runner, error) {
	if registry == nil {
		return nil, errors.New("registry cannot be nil")
	}
	if taskStore == nil {
		return nil, errors.New("task store cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		registry:   registry,
		store:      taskStore,
		metrics:    m,
		config:     config,
		logger:     logger.With("component", "task_runner"),
		queue:      make(chan submission, config.QueueSize),
		ctx:        ctx,
		cancelFunc: cancel,
	}, nil
}

// Start recovers snapshots left by a previous process and launches the
// worker pool.
func (r *Runner) Start(ctx context.Context) error {
	if err := r.recoverInterrupted(ctx); err != nil {
		return fmt.Errorf("failed to recover interrupted tasks: %w", err)
	}

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	r.logger.Info("task runner started", "worker_count", r.config.WorkerCount)
	return nil
}

// Stop rejects new submissions, signals running tasks to cancel, and waits
// for the workers to drain.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	r.cancelFunc()
	r.wg.Wait()
	r.logger.Info("task runner stopped")
}

// Submit registers the task, persists its pending snapshot, and enqueues it
// for execution. A full queue rejects the submission and unwinds the
// registration.
func (r *Runner) Submit(ctx context.Context, t *agent.Task, input json.RawMessage) error {
	r.mu.Lock()
	stopped := r.stopped
	r.mu.Unlock()
	if stopped {
		return ErrRunnerClosed
	}

	if err := r.registry.Add(t); err != nil {
		return err
	}

	if err := r.saveSnapshot(ctx, t, input); err != nil {
		r.registry.discard(t.ID())
		return fmt.Errorf("failed to persist task: %w", err)
	}

	select {
	case r.queue <- submission{task: t, input: input}:
		r.logger.Info("task submitted",
			"task_id", t.ID(), "agent_type", t.Type(), "queue_len", len(r.queue))
		return nil
	default:
		r.registry.discard(t.ID())
		if err := r.store.DeleteSnapshot(ctx, t.ID()); err != nil {
			r.logger.Warn("failed to delete snapshot of rejected task",
				"task_id", t.ID(), "error", err)
		}
		return fmt.Errorf("%w: capacity %d reached", ErrQueueFull, cap(r.queue))
	}
}

// worker drains the queue until the runner stops.
func (r *Runner) worker(id int) {
	defer r.wg.Done()

	logger := r.logger.With("worker_id", id)
	logger.Debug("worker started")

	for {
		select {
		case <-r.ctx.Done():
			logger.Debug("worker stopping")
			return
		case sub := <-r.queue:
			r.process(sub, logger)
		}
	}
}

// process runs one task to a terminal status and persists the outcome.
func (r *Runner) process(sub submission, logger *slog.Logger) {
	t := sub.task
	logger = logger.With("task_id", t.ID(), "agent_type", t.Type())

	r.metrics.TaskStarted()

	stopSnapshots := r.startSnapshotLoop(t, sub.input)
	result := t.Run(r.ctx, sub.input)
	stopSnapshots()

	r.metrics.TaskFinished(string(result.Status))
	r.metrics.GenerationCost(result.CostUSD)

	if err := r.saveSnapshot(context.Background(), t, sub.input); err != nil {
		logger.Error("failed to persist final snapshot", "error", err)
	}

	logger.Info("task finished",
		"status", result.Status,
		"duration", result.Duration,
		"total_tokens", result.TotalTokens,
		"cost_usd", result.CostUSD)
}

// startSnapshotLoop persists the task's state on an interval while it runs.
// The returned function stops the loop and blocks until it has exited.
func (r *Runner) startSnapshotLoop(t *agent.Task, input json.RawMessage) func() {
	if r.config.SnapshotInterval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(r.config.SnapshotInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := r.saveSnapshot(context.Background(), t, input); err != nil {
					r.logger.Warn("periodic snapshot failed",
						"task_id", t.ID(), "error", err)
				}
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}

// saveSnapshot captures the task's current state into the store.
func (r *Runner) saveSnapshot(ctx context.Context, t *agent.Task, input json.RawMessage) error {
	snap := t.Snapshot()
	return r.store.SaveSnapshot(ctx, &store.TaskSnapshot{
		TaskID:           snap.TaskID,
		ProjectID:        t.Config().ProjectID,
		AgentType:        snap.AgentType,
		Status:           snap.Status,
		Input:            input,
		Checkpoint:       snap.Checkpoint,
		Output:           snap.Output,
		ErrorMessage:     snap.ErrorMessage,
		PromptTokens:     snap.PromptTokens,
		CompletionTokens: snap.CompletionTokens,
		CostUSD:          snap.CostUSD,
		StartedAt:        snap.StartedAt,
		CompletedAt:      snap.CompletedAt,
	})
}

// recoverInterrupted marks snapshots left in a non-terminal status by a
// previous process as failed. Execution state died with that process; the
// checkpoint is preserved so a client can resubmit from it.
func (r *Runner) recoverInterrupted(ctx context.Context) error {
	unfinished, err := r.store.ListUnfinished(ctx)
	if err != nil {
		return err
	}
	if len(unfinished) == 0 {
		return nil
	}

	r.logger.Info("recovering interrupted tasks", "count", len(unfinished))

	now := time.Now().UTC()
	for _, snapshot := range unfinished {
		snapshot.Status = domain.TaskStatusFailed
		snapshot.ErrorMessage = interruptedMessage
		snapshot.CompletedAt = &now
		r.logger.Warn("marking interrupted task as failed",
			"task_id", snapshot.TaskID,
			"agent_type", snapshot.AgentType,
			"last_step", lastStep(snapshot))
	}
	if err := r.store.SaveSnapshots(ctx, unfinished); err != nil {
		return fmt.Errorf("failed to mark interrupted tasks: %w", err)
	}
	return nil
}

func lastStep(snapshot *store.TaskSnapshot) string {
	if snapshot.Checkpoint == nil {
		return ""
	}
	return snapshot.Checkpoint.LastStep
}
