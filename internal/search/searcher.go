// Package search defines the collaborator contract for vector similarity
// search over project documents. Agents use it to assemble RAG context; the
// actual index lives outside this service.
package search

import (
	"context"

	"github.com/google/uuid"
)

// Passage is one scored chunk of document text.
type Passage struct {
	DocumentID uuid.UUID `json:"document_id"`
	Source     string    `json:"source"`
	Content    string    `json:"content"`
	Score      float64   `json:"score"`
}

// Filters narrows a search to a subset of the corpus.
type Filters struct {
	// ProjectID limits results to one project's documents when set.
	ProjectID uuid.UUID
}

// Searcher returns the highest-scoring passages for a query, ordered by
// descending score.
type Searcher interface {
	Search(ctx context.Context, query string, filters Filters, limit int) ([]Passage, error)
}

// StaticSearcher serves a fixed passage set. It backs environments without a
// vector index and keeps agent tests hermetic.
type StaticSearcher struct {
	passages []Passage
}

// NewStaticSearcher returns a Searcher over the given passages.
func NewStaticSearcher(passages ...Passage) *StaticSearcher {
	return &StaticSearcher{passages: passages}
}

// Search implements Searcher. The static set is not project-tagged, so
// filters are ignored; results are returned in insertion order up to limit.
func (s *StaticSearcher) Search(ctx context.Context, query string, filters Filters, limit int) ([]Passage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]Passage, 0, len(s.passages))
	for _, p := range s.passages {
		out = append(out, p)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
