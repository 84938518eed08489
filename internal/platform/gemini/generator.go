package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"google.golang.org/genai"

	"github.com/grantpilot/api/internal/config"
	"github.com/grantpilot/api/internal/generation"
	"github.com/grantpilot/api/internal/redact"
)

// GeminiGenerator implements generation.Generator using Google's Gemini API.
type GeminiGenerator struct {
	logger *slog.Logger
	config config.LLMConfig
	client *genai.Client
}

// NewGeminiGenerator creates a generator from the LLM configuration.
func NewGeminiGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*GeminiGenerator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, err)
	}

	return &GeminiGenerator{
		logger: logger,
		config: cfg,
		client: client,
	}, nil
}

// Generate implements generation.Generator. The call is retried with
// exponential backoff and jitter on transient failures; content blocked by
// safety filters and malformed responses are returned immediately.
func (g *GeminiGenerator) Generate(ctx context.Context, req generation.Request) (*generation.Result, error) {
	if req.Prompt == "" {
		return nil, fmt.Errorf("%w: prompt cannot be empty", generation.ErrGenerationFailed)
	}

	model := req.Model
	if model == "" {
		model = g.config.ModelName
	}

	result, err := g.callWithRetry(ctx, model, req)
	if err != nil {
		return nil, err
	}

	if req.OnChunk != nil && result.Content != "" {
		// The plain GenerateContent surface returns the full text at once;
		// observers still get it as a single chunk.
		req.OnChunk(result.Content)
	}
	return result, nil
}

// callWithRetry attempts the API call up to MaxRetries+1 times, backing off
// exponentially with jitter between attempts.
func (g *GeminiGenerator) callWithRetry(ctx context.Context, model string, req generation.Request) (*generation.Result, error) {
	maxRetries := g.config.MaxRetries
	if maxRetries < 0 {
		maxRetries = 3
	}
	baseDelaySeconds := g.config.RetryDelaySeconds
	if baseDelaySeconds < 1 {
		baseDelaySeconds = 2
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 0; ; attempt++ {
		g.logger.InfoContext(ctx, "making Gemini API call",
			"model", model,
			"attempt", attempt+1,
			"max_attempts", maxRetries+1)

		result, err, transient := g.callOnce(ctx, model, req)
		if err == nil {
			return result, nil
		}

		g.logger.ErrorContext(ctx, "Gemini API call failed",
			"attempt", attempt+1, "error", redact.Error(err), "transient", transient)

		if !transient {
			return nil, err
		}
		if attempt >= maxRetries {
			return nil, fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
				generation.ErrTransientFailure, maxRetries, err)
		}

		// delay = baseDelay * 2^attempt * jitter in [0.5, 1.0)
		backoffSeconds := float64(baseDelaySeconds) * math.Pow(2, float64(attempt))
		delay := time.Duration(backoffSeconds * (0.5 + rng.Float64()*0.5) * float64(time.Second))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", generation.ErrTransientFailure, ctx.Err())
		}
	}
}

// callOnce performs a single GenerateContent call. The third return value
// reports whether a failure is worth retrying.
func (g *GeminiGenerator) callOnce(ctx context.Context, modelName string, req generation.Request) (*generation.Result, error, bool) {
	prompt := req.Prompt
	if req.SystemPrompt != "" {
		prompt = req.SystemPrompt + "\n\n" + req.Prompt
	}

	resp, err := g.client.Models.GenerateContent(ctx, modelName, genai.Text(prompt), nil)
	switch {
	case err != nil:
		// API errors can echo the request URL, key included.
		return nil, fmt.Errorf("%w: %s", generation.ErrGenerationFailed, redact.Error(err)), true
	case resp == nil:
		return nil, fmt.Errorf("%w: nil response", generation.ErrInvalidResponse), false
	case len(resp.Candidates) == 0:
		return nil, fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse), false
	case resp.Candidates[0].Content == nil:
		return nil, fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse), false
	case resp.Candidates[0].FinishReason == genai.FinishReasonSafety:
		return nil, fmt.Errorf("%w: content blocked by safety filters", generation.ErrContentBlocked), false
	}

	text := ""
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			text += part.Text
		}
	}
	if text == "" {
		return nil, fmt.Errorf("%w: response contained no text parts", generation.ErrInvalidResponse), false
	}

	promptTokens, completionTokens := extractUsage(resp, prompt, text)
	return &generation.Result{
		Content:          text,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		CostUSD:          costUSD(modelName, promptTokens, completionTokens),
	}, nil, false
}

// extractUsage reads the response usage metadata, estimating from text
// length when the API omits it.
func extractUsage(resp *genai.GenerateContentResponse, prompt, completion string) (int, int) {
	if resp.UsageMetadata != nil {
		return int(resp.UsageMetadata.PromptTokenCount), int(resp.UsageMetadata.CandidatesTokenCount)
	}
	// Rough estimate: four characters per token.
	return len(prompt) / 4, len(completion) / 4
}
