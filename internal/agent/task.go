package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/grantpilot/api/internal/domain"
	"github.com/grantpilot/api/internal/events"
)

// pausePollInterval is how often a paused worker re-checks its control flags.
var pausePollInterval = 50 * time.Millisecond

// budgetWarningThreshold is the spend fraction at which an "approaching"
// budget warning is emitted.
const budgetWarningThreshold = 0.8

// Task is one execution of an agent's work, with its own lifecycle and
// checkpoint. All mutation happens on the owning worker's execution path;
// status queries read consistent copies through Snapshot.
type Task struct {
	agent  Agent
	config domain.AgentConfig
	sink   events.Sink
	logger *slog.Logger

	// Control flags: written by external control-signal callers, read by the
	// worker at checkpoint boundaries. Single writer per flag, single reader.
	cancelRequested atomic.Bool
	pauseRequested  atomic.Bool

	// budgetExceeded is set by TrackUsage (worker path) and read at
	// checkpoint boundaries.
	budgetExceeded atomic.Bool

	mu                sync.RWMutex
	status            domain.TaskStatus
	checkpoint        *domain.Checkpoint
	promptTokens      int
	completionTokens  int
	costUSD           float64
	startedAt         *time.Time
	completedAt       *time.Time
	errorMessage      string
	output            string
	outputSections    map[string]string
	warnedApproaching bool
}

// NewTask creates a task in the Pending state, owning a fresh checkpoint.
func NewTask(a Agent, config domain.AgentConfig, sink events.Sink, logger *slog.Logger) (*Task, error) {
	if a == nil {
		return nil, ErrNilAgent
	}
	if sink == nil {
		return nil, ErrNilSink
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Task{
		agent:      a,
		config:     config,
		sink:       sink,
		logger:     logger.With("task_id", config.TaskID, "agent_type", a.Type()),
		status:     domain.TaskStatusPending,
		checkpoint: domain.NewCheckpoint(),
	}, nil
}

// ID returns the task's caller-visible unique identifier.
func (t *Task) ID() uuid.UUID {
	return t.config.TaskID
}

// Type returns the agent kind this task runs.
func (t *Task) Type() domain.AgentType {
	return t.agent.Type()
}

// Config returns the immutable run parameters.
func (t *Task) Config() domain.AgentConfig {
	return t.config
}

// Status returns the current lifecycle status.
func (t *Task) Status() domain.TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// RequestCancel sets the cancellation flag. The worker observes it at its
// next checkpoint boundary.
func (t *Task) RequestCancel() {
	t.cancelRequested.Store(true)
}

// RequestPause sets the pause flag. The running step completes; the worker
// pauses before starting the next one.
func (t *Task) RequestPause() {
	t.pauseRequested.Store(true)
}

// RequestResume clears the pause flag, letting a paused worker continue.
func (t *Task) RequestResume() {
	t.pauseRequested.Store(false)
}

// CancelRequested reports whether cancellation has been requested.
func (t *Task) CancelRequested() bool {
	return t.cancelRequested.Load()
}

// PauseRequested reports whether a pause has been requested.
func (t *Task) PauseRequested() bool {
	return t.pauseRequested.Load()
}

// StatusSnapshot is a consistent read-only view of a task for status queries.
type StatusSnapshot struct {
	TaskID           uuid.UUID
	AgentType        domain.AgentType
	Status           domain.TaskStatus
	ProgressPercent  int
	CurrentStep      string
	Output           string
	ErrorMessage     string
	PromptTokens     int
	CompletionTokens int
	TokensUsed       int
	CostUSD          float64
	StartedAt        *time.Time
	CompletedAt      *time.Time
	Checkpoint       *domain.Checkpoint
}

// Snapshot returns a consistent copy of the task's observable state. The
// checkpoint is cloned so callers never alias the worker-owned instance.
func (t *Task) Snapshot() StatusSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	output := t.output
	if output == "" {
		// Output-so-far for in-flight tasks comes from the interim results.
		output = t.checkpoint.InterimResults["output"]
	}

	return StatusSnapshot{
		TaskID:           t.config.TaskID,
		AgentType:        t.agent.Type(),
		Status:           t.status,
		ProgressPercent:  t.checkpoint.Progress(),
		CurrentStep:      t.checkpoint.LastStep,
		Output:           output,
		ErrorMessage:     t.errorMessage,
		PromptTokens:     t.promptTokens,
		CompletionTokens: t.completionTokens,
		TokensUsed:       t.promptTokens + t.completionTokens,
		CostUSD:          t.costUSD,
		StartedAt:        t.startedAt,
		CompletedAt:      t.completedAt,
		Checkpoint:       t.checkpoint.Clone(),
	}
}

// UpdateCheckpoint records completion of a logical step: it sets the step
// bookkeeping, appends completedItem when given (skipping duplicates so a
// resumed run can replay a step idempotently), merges interim results, and
// stamps cumulative usage. The checkpoint is mutated strictly before the
// corresponding progress event is published, so a status query racing the
// event never observes a checkpoint older than what the event describes.
func (t *Task) UpdateCheckpoint(step string, stepIndex, totalSteps int, completedItem string, interim map[string]string) {
	t.mu.Lock()
	cp := t.checkpoint
	cp.LastStep = step
	cp.StepIndex = stepIndex
	cp.TotalSteps = totalSteps
	cp.TokensAtCheckpoint = t.promptTokens + t.completionTokens
	cp.CostAtCheckpoint = t.costUSD
	cp.SavedAt = time.Now().UTC()
	if completedItem != "" && !cp.HasCompleted(completedItem) {
		cp.CompletedItems = append(cp.CompletedItems, completedItem)
	}
	for k, v := range interim {
		cp.InterimResults[k] = v
	}
	payload := events.TaskProgressPayload{
		TaskID:         t.config.TaskID,
		StepIndex:      stepIndex,
		TotalSteps:     totalSteps,
		StepName:       step,
		CompletedItems: append([]string(nil), cp.CompletedItems...),
	}
	t.mu.Unlock()

	t.publish(payload.Event())
}

// TrackUsage adds a generation call's token and cost figures to the task's
// cumulative counters, emits a cost-update event, and enforces the budget:
// crossing either limit flags the task so the execution loop stops at the
// next cooperative checkpoint.
func (t *Task) TrackUsage(promptTokens, completionTokens int, cost float64) {
	t.mu.Lock()
	t.promptTokens += promptTokens
	t.completionTokens += completionTokens
	t.costUSD += cost
	totalTokens := t.promptTokens + t.completionTokens
	totalCost := t.costUSD
	warnApproaching := !t.warnedApproaching &&
		totalCost >= budgetWarningThreshold*t.config.MaxCostUSD
	if warnApproaching {
		t.warnedApproaching = true
	}
	t.mu.Unlock()

	costPayload := events.CostUpdatePayload{
		TaskID:            t.config.TaskID,
		Model:             t.config.Model,
		PromptTokens:      promptTokens,
		CompletionTokens:  completionTokens,
		CostUSD:           cost,
		CumulativeCostUSD: totalCost,
		BudgetRemaining:   t.config.MaxCostUSD - totalCost,
	}
	t.publish(costPayload.Event())

	if totalTokens > t.config.MaxTokens || totalCost > t.config.MaxCostUSD {
		t.budgetExceeded.Store(true)
		t.logger.Warn("task budget exceeded",
			"total_tokens", totalTokens,
			"max_tokens", t.config.MaxTokens,
			"total_cost_usd", totalCost,
			"max_cost_usd", t.config.MaxCostUSD)
		t.publish(events.BudgetWarningPayload{
			TaskID:       t.config.TaskID,
			BudgetLimit:  t.config.MaxCostUSD,
			CurrentSpend: totalCost,
			PercentUsed:  totalCost / t.config.MaxCostUSD * 100,
			WarningLevel: events.BudgetWarningExceeded,
		}.Event())
		return
	}

	if warnApproaching {
		t.publish(events.BudgetWarningPayload{
			TaskID:       t.config.TaskID,
			BudgetLimit:  t.config.MaxCostUSD,
			CurrentSpend: totalCost,
			PercentUsed:  totalCost / t.config.MaxCostUSD * 100,
			WarningLevel: events.BudgetWarningApproaching,
		}.Event())
	}
}

// Usage returns the cumulative token and cost counters.
func (t *Task) Usage() (promptTokens, completionTokens int, costUSD float64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.promptTokens, t.completionTokens, t.costUSD
}

// EmitStreamChunk publishes one fragment of generated text to observers.
func (t *Task) EmitStreamChunk(chunk string, isFinal bool) {
	t.publish(events.StreamChunkPayload{
		TaskID:  t.config.TaskID,
		Chunk:   chunk,
		IsFinal: isFinal,
	}.Event())
}

// CheckBoundary is the cooperative checkpoint agents must call between
// logical steps. It returns a non-nil error when the step loop must stop:
// domain.ErrTaskCancelled on cancellation, domain.ErrTaskTimeout when the
// hard deadline fired, domain.ErrBudgetExceeded when a usage limit was
// crossed. When a pause has been requested the call blocks (flipping the
// status to Paused) until resume, cancel, or deadline.
func (t *Task) CheckBoundary(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return domain.ErrTaskTimeout
			}
			return domain.ErrTaskCancelled
		}
		if t.cancelRequested.Load() {
			return domain.ErrTaskCancelled
		}
		if t.budgetExceeded.Load() {
			return domain.ErrBudgetExceeded
		}

		if !t.pauseRequested.Load() {
			// Leaving a pause: flip back to Running before continuing.
			if t.Status() == domain.TaskStatusPaused {
				t.setStatus(domain.TaskStatusRunning)
				t.emitStatus("task resumed")
			}
			return nil
		}

		if t.Status() == domain.TaskStatusRunning {
			t.setStatus(domain.TaskStatusPaused)
			t.emitStatus("task paused")
			t.logger.Info("task paused at checkpoint boundary")
		}

		select {
		case <-ctx.Done():
			// Re-enter the loop to classify the context error.
		case <-time.After(pausePollInterval):
		}
	}
}

// Run drives the task through its lifecycle. It always returns a Result and
// never an error: agent failures, cancellation, timeouts, and budget
// violations are all embedded in the result's status and error message.
func (t *Task) Run(ctx context.Context, input json.RawMessage) *domain.Result {
	t.mu.Lock()
	if t.status != domain.TaskStatusPending {
		status := t.status
		t.mu.Unlock()
		t.logger.Warn("run called on non-pending task", "status", status)
		return t.Result()
	}
	now := time.Now().UTC()
	t.startedAt = &now
	t.status = domain.TaskStatusRunning
	t.mu.Unlock()

	t.logger.Info("task started")
	t.emitStatus("task started")

	runCtx := ctx
	if t.config.TimeLimit > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, t.config.TimeLimit)
		defer cancel()
	}

	out, err := t.safeExecute(runCtx, input)

	switch {
	case err == nil:
		t.finish(domain.TaskStatusCompleted, out, "")
		t.logger.Info("task completed")
	case errors.Is(err, domain.ErrBudgetExceeded):
		prompt, completion, cost := t.Usage()
		msg := fmt.Sprintf("budget exceeded: used %d tokens / $%.4f of limit %d tokens / $%.2f",
			prompt+completion, cost, t.config.MaxTokens, t.config.MaxCostUSD)
		t.finish(domain.TaskStatusFailed, nil, msg)
		t.logger.Warn("task failed on budget", "error_message", msg)
	case errors.Is(err, domain.ErrTaskTimeout), errors.Is(runCtx.Err(), context.DeadlineExceeded):
		t.finish(domain.TaskStatusCancelled, nil, domain.ErrTaskTimeout.Error())
		t.logger.Warn("task cancelled by deadline", "time_limit", t.config.TimeLimit)
	case errors.Is(err, domain.ErrTaskCancelled), errors.Is(err, context.Canceled):
		t.finish(domain.TaskStatusCancelled, nil, "Task was cancelled")
		t.logger.Info("task cancelled")
	default:
		t.finish(domain.TaskStatusFailed, nil, err.Error())
		t.logger.Error("task failed", "error", err)
	}

	t.emitStatus("")
	return t.Result()
}

// safeExecute runs the agent hook, converting panics into errors so Run's
// contract of never raising to the caller holds.
func (t *Task) safeExecute(ctx context.Context, input json.RawMessage) (out *Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("agent execution panicked", "panic", r)
			err = fmt.Errorf("agent panicked: %v", r)
		}
	}()
	return t.agent.Execute(ctx, t, input)
}

// Result builds a Result from the task's current state.
func (t *Task) Result() *domain.Result {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var duration time.Duration
	if t.startedAt != nil {
		end := time.Now().UTC()
		if t.completedAt != nil {
			end = *t.completedAt
		}
		duration = end.Sub(*t.startedAt)
	}

	sections := make(map[string]string, len(t.outputSections))
	for k, v := range t.outputSections {
		sections[k] = v
	}

	return &domain.Result{
		TaskID:           t.config.TaskID,
		AgentType:        t.agent.Type(),
		Status:           t.status,
		Output:           t.output,
		OutputSections:   sections,
		StartedAt:        t.startedAt,
		CompletedAt:      t.completedAt,
		Duration:         duration,
		PromptTokens:     t.promptTokens,
		CompletionTokens: t.completionTokens,
		TotalTokens:      t.promptTokens + t.completionTokens,
		CostUSD:          t.costUSD,
		ErrorMessage:     t.errorMessage,
		Checkpoint:       t.checkpoint.Clone(),
	}
}

// finish records a terminal status. Transitions out of a terminal state are
// refused, keeping the state machine monotonic even under racing signals.
func (t *Task) finish(status domain.TaskStatus, out *Output, errorMessage string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.IsTerminal() {
		return
	}

	now := time.Now().UTC()
	t.status = status
	t.completedAt = &now
	t.errorMessage = errorMessage
	if out != nil {
		t.output = out.Text
		t.outputSections = out.Sections
	}
	if status == domain.TaskStatusCompleted && t.checkpoint.TotalSteps > 0 {
		// A completed task's checkpoint reflects all steps done.
		t.checkpoint.StepIndex = t.checkpoint.TotalSteps
		t.checkpoint.SavedAt = now
	}
}

// setStatus applies a non-terminal transition (Running <-> Paused).
func (t *Task) setStatus(status domain.TaskStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.IsTerminal() {
		return
	}
	t.status = status
}

// emitStatus publishes a task_status event reflecting the current snapshot.
func (t *Task) emitStatus(message string) {
	snap := t.Snapshot()
	t.publish(events.TaskStatusPayload{
		TaskID:          snap.TaskID,
		AgentType:       string(snap.AgentType),
		Status:          string(snap.Status),
		Message:         message,
		ProgressPercent: snap.ProgressPercent,
		CurrentStep:     snap.CurrentStep,
		TokensUsed:      snap.TokensUsed,
		CostUSD:         snap.CostUSD,
	}.Event())
}

// publish hands a constructed event to the sink, logging construction
// failures instead of surfacing them to the execution path.
func (t *Task) publish(ev *events.Event, err error) {
	if err != nil {
		t.logger.Error("failed to build event", "error", err)
		return
	}
	t.sink.Publish(ev)
}
