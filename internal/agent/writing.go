package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/grantpilot/api/internal/domain"
	"github.com/grantpilot/api/internal/generation"
	"github.com/grantpilot/api/internal/search"
)

// GrantSection identifies a standard NIH grant section.
type GrantSection string

// Supported grant sections.
const (
	SectionSpecificAims        GrantSection = "specific_aims"
	SectionSignificance        GrantSection = "significance"
	SectionInnovation          GrantSection = "innovation"
	SectionApproach            GrantSection = "approach"
	SectionPreliminaryData     GrantSection = "preliminary_data"
	SectionTimeline            GrantSection = "timeline"
	SectionBudgetJustification GrantSection = "budget_justification"
	SectionFacilities          GrantSection = "facilities"
	SectionEquipment           GrantSection = "equipment"
	SectionBibliography        GrantSection = "bibliography"
)

// IsValid reports whether s is a known grant section.
func (s GrantSection) IsValid() bool {
	switch s {
	case SectionSpecificAims, SectionSignificance, SectionInnovation,
		SectionApproach, SectionPreliminaryData, SectionTimeline,
		SectionBudgetJustification, SectionFacilities, SectionEquipment,
		SectionBibliography:
		return true
	default:
		return false
	}
}

// WritingInput is the task input for the writing agent.
type WritingInput struct {
	Section            GrantSection `json:"section"`
	ProjectID          uuid.UUID    `json:"project_id"`
	ProjectTitle       string       `json:"project_title"`
	ProjectDescription string       `json:"project_description,omitempty"`
	RFARequirements    string       `json:"rfa_requirements,omitempty"`
	PreviousFeedback   string       `json:"previous_feedback,omitempty"`
	UserNotes          string       `json:"user_notes,omitempty"`

	// Style settings, 0-1 scales.
	Formality      float64 `json:"formality"`
	TechnicalDepth float64 `json:"technical_depth"`
	MaxWords       int     `json:"max_words"`
}

// applyDefaults fills unset style settings.
func (in *WritingInput) applyDefaults() {
	if in.Formality == 0 {
		in.Formality = 0.8
	}
	if in.TechnicalDepth == 0 {
		in.TechnicalDepth = 0.7
	}
	if in.MaxWords == 0 {
		in.MaxWords = 500
	}
}

func (in *WritingInput) validate() error {
	if !in.Section.IsValid() {
		return fmt.Errorf("%w: unknown section %q", domain.ErrInvalidInput, in.Section)
	}
	if strings.TrimSpace(in.ProjectTitle) == "" {
		return fmt.Errorf("%w: project title cannot be empty", domain.ErrInvalidInput)
	}
	return nil
}

// Step names for the writing pipeline.
const (
	stepRetrievingContext = "retrieving_context"
	stepBuildingPrompt    = "building_prompt"
	stepGeneratingDraft   = "generating_draft"
	stepFormatting        = "formatting"

	writingTotalSteps = 4
)

// sectionGuidance holds section-specific writing instructions appended to
// the prompt.
var sectionGuidance = map[GrantSection]string{
	SectionSpecificAims: `Structure the Specific Aims page as follows:
1. Opening paragraph: hook with the problem and its significance
2. Gap in knowledge: what is unknown that this research will address
3. Long-term goal and objective
4. Central hypothesis: testable, mechanistic statement
5. Rationale: why this approach will work
6. Specific Aims (2-3): clear, measurable objectives
7. Expected outcomes and impact

Keep to ~1 page (500 words). Each aim should be independent yet synergistic.
Avoid jargon. Write in future tense for proposed work.`,
	SectionSignificance: `Address these key questions:
1. What is the clinical/scientific problem?
2. What is the current state of knowledge?
3. What are the barriers to progress?
4. How will this research advance the field?
5. What is the potential impact on human health?

Be specific about gaps in knowledge. Cite key literature.
Explain why solving this problem matters NOW.`,
	SectionInnovation: `Highlight what is NEW about:
1. Conceptual/theoretical approach
2. Technical/methodological approach
3. Instrumentation or resources

Avoid claiming innovation without justification. Be specific: "This is the
first study to..." or "Unlike prior approaches...". Innovation can be
incremental; focus on meaningful advances.`,
	SectionApproach: `For each Specific Aim, include:
1. Rationale: why this aim and approach
2. Experimental design: clear methods with controls
3. Expected results
4. Potential problems: honest assessment of risks
5. Alternative approaches: backup plans

Include preliminary data to demonstrate feasibility. Be specific about
sample sizes, statistical approaches, and timelines.`,
	SectionPreliminaryData: `Present data that demonstrates:
1. Feasibility of the proposed approach
2. Your expertise in the methods
3. Initial support for your hypothesis

Each figure should have a clear purpose. Interpret results honestly and
acknowledge limitations. Connect preliminary data to proposed experiments.`,
}

// WritingAgent generates grant section drafts: it retrieves relevant context
// from the user's documents, assembles a section-specific prompt, generates
// the draft through the Generator, and streams progress to observers via the
// owning task.
type WritingAgent struct {
	generator generation.Generator
	searcher  search.Searcher
	logger    *slog.Logger
}

// NewWritingAgent creates a writing agent.
func NewWritingAgent(gen generation.Generator, searcher search.Searcher, logger *slog.Logger) (*WritingAgent, error) {
	if gen == nil {
		return nil, ErrNilGenerator
	}
	if searcher == nil {
		return nil, ErrNilSearcher
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	return &WritingAgent{
		generator: gen,
		searcher:  searcher,
		logger:    logger.With("agent_type", domain.AgentTypeWriting),
	}, nil
}

// Type implements Agent.
func (a *WritingAgent) Type() domain.AgentType {
	return domain.AgentTypeWriting
}

// SystemPrompt implements Agent.
func (a *WritingAgent) SystemPrompt() string {
	return `You are an expert NIH grant writing assistant with extensive experience
in biomedical research and successful grant applications. You help researchers
draft compelling, scientifically rigorous grant sections.

Your writing should be:
- Clear and accessible to non-specialists on the review panel
- Scientifically precise and mechanistic
- Well-structured with clear transitions
- Free of unnecessary jargon
- Persuasive without being hyperbolic

Always ground your writing in the provided context and research materials.
If you don't have enough information for a specific detail, note what the
researcher should add rather than making up information.`
}

// Execute implements Agent: a four-step pipeline with a cooperative
// checkpoint between each step.
func (a *WritingAgent) Execute(ctx context.Context, task *Task, input json.RawMessage) (*Output, error) {
	var in WritingInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	in.applyDefaults()
	if err := in.validate(); err != nil {
		return nil, err
	}

	cfg := task.Config()

	// Step 1: retrieve relevant context.
	task.UpdateCheckpoint(stepRetrievingContext, 0, writingTotalSteps, "", nil)
	contextText := a.retrieveContext(ctx, cfg, &in)

	if err := task.CheckBoundary(ctx); err != nil {
		return nil, err
	}

	// Step 2: build the prompt.
	task.UpdateCheckpoint(stepBuildingPrompt, 1, writingTotalSteps, "", nil)
	prompt := a.buildPrompt(&in, contextText)

	if err := task.CheckBoundary(ctx); err != nil {
		return nil, err
	}

	// Step 3: generate the draft.
	task.UpdateCheckpoint(stepGeneratingDraft, 2, writingTotalSteps, "", nil)
	res, err := a.generator.Generate(ctx, generation.Request{
		SystemPrompt: a.SystemPrompt(),
		Prompt:       prompt,
		Model:        cfg.Model,
		Temperature:  cfg.Temperature,
		OnChunk: func(chunk string) {
			task.EmitStreamChunk(chunk, false)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}
	task.TrackUsage(res.PromptTokens, res.CompletionTokens, res.CostUSD)
	task.EmitStreamChunk("", true)

	if err := task.CheckBoundary(ctx); err != nil {
		return nil, err
	}

	// Step 4: format the output.
	draft := strings.TrimSpace(res.Content)
	task.UpdateCheckpoint(stepFormatting, 3, writingTotalSteps, string(in.Section),
		map[string]string{"output": draft})

	return &Output{
		Text:     draft,
		Sections: map[string]string{string(in.Section): draft},
	}, nil
}

// retrieveContext searches the user's documents for passages relevant to the
// section being written. Retrieval failure degrades to an empty context
// rather than failing the task.
func (a *WritingAgent) retrieveContext(ctx context.Context, cfg domain.AgentConfig, in *WritingInput) string {
	if !cfg.UseRAG {
		return ""
	}

	query := buildSearchQuery(in)
	passages, err := a.searcher.Search(ctx, query, search.Filters{ProjectID: in.ProjectID}, cfg.MaxContextChunks)
	if err != nil {
		a.logger.Warn("context retrieval failed", "error", err, "query", query)
		return ""
	}
	if len(passages) == 0 {
		return ""
	}

	var b strings.Builder
	for i, p := range passages {
		fmt.Fprintf(&b, "[Source %d]\n%s\n\n", i+1, p.Content)
	}
	return strings.TrimSpace(b.String())
}

// buildSearchQuery tailors the retrieval query to the section type.
func buildSearchQuery(in *WritingInput) string {
	switch in.Section {
	case SectionSpecificAims:
		return "specific aims hypothesis objectives " + in.ProjectTitle
	case SectionSignificance:
		return "significance importance clinical impact " + in.ProjectTitle
	case SectionInnovation:
		return "innovation novel approach new methods " + in.ProjectTitle
	case SectionApproach:
		return "methods experimental design approach " + in.ProjectTitle
	case SectionPreliminaryData:
		return "preliminary data results findings " + in.ProjectTitle
	default:
		return in.ProjectTitle
	}
}

// buildPrompt assembles the full generation prompt from the input, retrieved
// context, and section guidance.
func (a *WritingAgent) buildPrompt(in *WritingInput, contextText string) string {
	var b strings.Builder

	sectionName := strings.ReplaceAll(string(in.Section), "_", " ")
	fmt.Fprintf(&b, "# Task: Write the %s section\n\n", sectionName)
	fmt.Fprintf(&b, "## Project Title\n%s\n", in.ProjectTitle)

	if in.ProjectDescription != "" {
		fmt.Fprintf(&b, "\n## Project Description\n%s\n", in.ProjectDescription)
	}
	if contextText != "" {
		fmt.Fprintf(&b, "\n## Relevant Context from Your Documents\n%s\n", contextText)
	}
	if in.RFARequirements != "" {
		fmt.Fprintf(&b, "\n## RFA Requirements to Address\n%s\n", in.RFARequirements)
	}
	if in.PreviousFeedback != "" {
		fmt.Fprintf(&b, "\n## Previous Reviewer Feedback to Address\n%s\n", in.PreviousFeedback)
	}
	if in.UserNotes != "" {
		fmt.Fprintf(&b, "\n## Additional Notes from Researcher\n%s\n", in.UserNotes)
	}
	if guidance, ok := sectionGuidance[in.Section]; ok {
		fmt.Fprintf(&b, "\n## Section-Specific Guidelines\n%s\n", guidance)
	}

	fmt.Fprintf(&b, "\n## Style Requirements\n")
	fmt.Fprintf(&b, "- Formality level: %s\n", styleLevel(in.Formality))
	fmt.Fprintf(&b, "- Technical depth: %s\n", styleLevel(in.TechnicalDepth))
	fmt.Fprintf(&b, "- Target length: ~%d words\n", in.MaxWords)
	fmt.Fprintf(&b, "\nWrite the complete section now.\n")

	return b.String()
}

func styleLevel(v float64) string {
	switch {
	case v > 0.7:
		return "High"
	case v > 0.4:
		return "Medium"
	default:
		return "Low"
	}
}
