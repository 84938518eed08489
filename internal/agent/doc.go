// Package agent implements the task lifecycle core: the state machine that
// tracks an agent task from creation through pausing, cancellation, failure,
// and completion, together with its crash-resumable checkpoint and budget
// accounting.
//
// A Task owns exactly one Checkpoint and is driven by a single worker
// goroutine through Run. External control signals (cancel/pause/resume) are
// delivered through boolean flags that the worker observes cooperatively at
// checkpoint boundaries between logical steps; nothing is interrupted
// mid-step. The two flags follow a single-writer/single-reader discipline
// and are therefore plain atomics, not mutex-guarded state.
//
// Agents plug in through the Agent interface: the registry and state machine
// are fully generic over the agent kind, with WritingAgent as the one
// concrete implementation today.
package agent
