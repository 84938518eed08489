package agent_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantpilot/api/internal/agent"
	"github.com/grantpilot/api/internal/domain"
	"github.com/grantpilot/api/internal/events"
	"github.com/grantpilot/api/internal/generation"
	"github.com/grantpilot/api/internal/search"
)

// scriptedGenerator returns a canned result, optionally streaming it in
// chunks first, and records the request it received.
type scriptedGenerator struct {
	result  *generation.Result
	err     error
	chunks  []string
	lastReq generation.Request
}

func (g *scriptedGenerator) Generate(_ context.Context, req generation.Request) (*generation.Result, error) {
	g.lastReq = req
	if g.err != nil {
		return nil, g.err
	}
	if req.OnChunk != nil {
		for _, chunk := range g.chunks {
			req.OnChunk(chunk)
		}
	}
	return g.result, nil
}

// failingSearcher always errors, exercising the degraded-retrieval path.
type failingSearcher struct{}

func (failingSearcher) Search(context.Context, string, search.Filters, int) ([]search.Passage, error) {
	return nil, errors.New("vector index unavailable")
}

func writingInput(t *testing.T, section agent.GrantSection) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(agent.WritingInput{
		Section:            section,
		ProjectID:          uuid.New(),
		ProjectTitle:       "Neural correlates of memory consolidation",
		ProjectDescription: "A study of hippocampal replay during sleep.",
	})
	require.NoError(t, err)
	return raw
}

func newWritingAgent(t *testing.T, gen generation.Generator, searcher search.Searcher) *agent.WritingAgent {
	t.Helper()
	a, err := agent.NewWritingAgent(gen, searcher, testLogger())
	require.NoError(t, err)
	return a
}

func TestNewWritingAgent_Validation(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{result: &generation.Result{}}
	searcher := search.NewStaticSearcher()

	_, err := agent.NewWritingAgent(nil, searcher, testLogger())
	assert.ErrorIs(t, err, agent.ErrNilGenerator)

	_, err = agent.NewWritingAgent(gen, nil, testLogger())
	assert.ErrorIs(t, err, agent.ErrNilSearcher)

	_, err = agent.NewWritingAgent(gen, searcher, nil)
	assert.ErrorIs(t, err, agent.ErrNilLogger)
}

func TestWritingAgent_FullPipeline(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{
		result: &generation.Result{
			Content:          "  The specific aims of this proposal...  ",
			PromptTokens:     1200,
			CompletionTokens: 450,
			CostUSD:          0.03,
		},
		chunks: []string{"The specific aims ", "of this proposal..."},
	}
	searcher := search.NewStaticSearcher(
		search.Passage{Content: "Prior work shows hippocampal replay drives consolidation.", Score: 0.91},
		search.Passage{Content: "Pilot data from 12 subjects.", Score: 0.84},
	)
	writing := newWritingAgent(t, gen, searcher)

	sink := &recordingSink{}
	task, err := agent.NewTask(writing, domain.NewAgentConfig(), sink, testLogger())
	require.NoError(t, err)

	result := task.Run(context.Background(), writingInput(t, agent.SectionSpecificAims))

	require.Equal(t, domain.TaskStatusCompleted, result.Status)
	assert.Equal(t, "The specific aims of this proposal...", result.Output)
	assert.Equal(t, "The specific aims of this proposal...", result.OutputSections["specific_aims"])

	// Usage flowed into the task's accounting.
	assert.Equal(t, 1650, result.TotalTokens)
	assert.InDelta(t, 0.03, result.CostUSD, 1e-9)

	// Four pipeline steps, each announced; streamed chunks plus final marker.
	assert.Equal(t, 4, sink.CountKind(events.KindTaskProgress))
	assert.Equal(t, 3, sink.CountKind(events.KindStreamChunk))
	assert.Equal(t, 1, sink.CountKind(events.KindCostUpdate))

	// Retrieved context and section guidance made it into the prompt.
	assert.Contains(t, gen.lastReq.Prompt, "hippocampal replay drives consolidation")
	assert.Contains(t, gen.lastReq.Prompt, "Specific Aims")
	assert.NotEmpty(t, gen.lastReq.SystemPrompt)
}

func TestWritingAgent_InvalidInput(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{result: &generation.Result{Content: "draft"}}
	writing := newWritingAgent(t, gen, search.NewStaticSearcher())

	tests := []struct {
		name  string
		input json.RawMessage
	}{
		{name: "malformed JSON", input: json.RawMessage(`{not json`)},
		{name: "unknown section", input: json.RawMessage(`{"section":"abstract","project_title":"x"}`)},
		{name: "missing title", input: json.RawMessage(`{"section":"specific_aims","project_title":"  "}`)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			task, err := agent.NewTask(writing, domain.NewAgentConfig(), &events.NopSink{}, testLogger())
			require.NoError(t, err)

			result := task.Run(context.Background(), tc.input)
			assert.Equal(t, domain.TaskStatusFailed, result.Status)
			assert.NotEmpty(t, result.ErrorMessage)
		})
	}
}

func TestWritingAgent_RetrievalFailureDegrades(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{result: &generation.Result{Content: "draft without context"}}
	writing := newWritingAgent(t, gen, failingSearcher{})

	task, err := agent.NewTask(writing, domain.NewAgentConfig(), &events.NopSink{}, testLogger())
	require.NoError(t, err)

	result := task.Run(context.Background(), writingInput(t, agent.SectionSignificance))

	// A broken vector index must not fail the task.
	require.Equal(t, domain.TaskStatusCompleted, result.Status)
	assert.Equal(t, "draft without context", result.Output)
	assert.NotContains(t, gen.lastReq.Prompt, "Relevant Context from Your Documents")
}

func TestWritingAgent_RAGDisabledSkipsRetrieval(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{result: &generation.Result{Content: "draft"}}
	writing := newWritingAgent(t, gen, failingSearcher{})

	cfg := domain.NewAgentConfig()
	cfg.UseRAG = false
	task, err := agent.NewTask(writing, cfg, &events.NopSink{}, testLogger())
	require.NoError(t, err)

	result := task.Run(context.Background(), writingInput(t, agent.SectionApproach))
	assert.Equal(t, domain.TaskStatusCompleted, result.Status)
}

func TestWritingAgent_GenerationFailureFailsTask(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{err: generation.ErrContentBlocked}
	writing := newWritingAgent(t, gen, search.NewStaticSearcher())

	task, err := agent.NewTask(writing, domain.NewAgentConfig(), &events.NopSink{}, testLogger())
	require.NoError(t, err)

	result := task.Run(context.Background(), writingInput(t, agent.SectionInnovation))

	assert.Equal(t, domain.TaskStatusFailed, result.Status)
	assert.Contains(t, result.ErrorMessage, "generation failed")
}

func TestGrantSection_IsValid(t *testing.T) {
	t.Parallel()

	assert.True(t, agent.SectionSpecificAims.IsValid())
	assert.True(t, agent.SectionBudgetJustification.IsValid())
	assert.False(t, agent.GrantSection("abstract").IsValid())
	assert.False(t, agent.GrantSection("").IsValid())
}
