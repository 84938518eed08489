package generation

import (
	"context"
)

// Request describes a single generation call.
type Request struct {
	// SystemPrompt sets the agent persona for the call.
	SystemPrompt string

	// Prompt is the fully assembled user prompt.
	Prompt string

	// Model is the model identifier to use.
	Model string

	// Temperature controls sampling randomness.
	Temperature float64

	// MaxOutputTokens caps the completion length; 0 means provider default.
	MaxOutputTokens int

	// OnChunk, when non-nil, is invoked with each fragment of generated text
	// as it becomes available. It is called from the generator's goroutine;
	// implementations must not block.
	OnChunk func(chunk string)
}

// Result carries the generated content together with the usage metrics the
// caller needs for budget accounting.
type Result struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	CostUSD          float64
}

// Generator is the interface to an opaque text-generation service.
//
// Generate blocks until the call finishes or ctx is cancelled. On failure it
// returns one of the sentinel errors in errors.go, possibly wrapped with
// provider detail.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}
