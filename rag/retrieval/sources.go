package retrieval

import (
	"context"
	"fmt"
	"sync"

	"github.com/sweetpotato0/docqa/rag/lexical"
	"github.com/sweetpotato0/docqa/vector"
)

// Origin identifies which index produced a candidate.
type Origin string

const (
	OriginVector  Origin = "vector"
	OriginLexical Origin = "lexical"
)

// Candidate is one retrieval hit before reranking. Scores from different
// origins are not comparable with each other; the reranker assigns the
// scores that actually order the final context.
type Candidate struct {
	Content string
	Score   float32
	Origin  Origin
}

// CandidateSource is the narrow search contract the retriever consumes.
type CandidateSource interface {
	Search(ctx context.Context, query string, k int) ([]Candidate, error)
}

// SemanticSource adapts an embedder plus a vector store into a CandidateSource.
type SemanticSource struct {
	embedder vector.Embedder
	store    vector.Store
}

// NewSemanticSource wires an embedder and vector store together.
func NewSemanticSource(emb vector.Embedder, store vector.Store) *SemanticSource {
	return &SemanticSource{embedder: emb, store: store}
}

// Search embeds the query and runs nearest-neighbor search.
func (s *SemanticSource) Search(ctx context.Context, query string, k int) ([]Candidate, error) {
	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	matches, err := s.store.Search(ctx, queryVec, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	candidates := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		candidates = append(candidates, Candidate{
			Content: m.Embedding.Text,
			Score:   m.Score,
			Origin:  OriginVector,
		})
	}
	return candidates, nil
}

// LexicalCorpus owns the ordered document texts a BM25 index scores against
// and resolves hit indices back to content. Appends happen during ingestion;
// reads are concurrent-safe.
type LexicalCorpus struct {
	mu    sync.RWMutex
	texts []string
	index *lexical.BM25Index
}

// NewLexicalCorpus creates an empty lexical corpus.
func NewLexicalCorpus() *LexicalCorpus {
	return &LexicalCorpus{index: lexical.NewBM25()}
}

// Append indexes one more document text.
func (c *LexicalCorpus) Append(content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, content)
	c.index.Add(content)
}

// Len returns the number of indexed texts.
func (c *LexicalCorpus) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.texts)
}

// Search implements CandidateSource over the BM25 index.
func (c *LexicalCorpus) Search(ctx context.Context, query string, k int) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	hits := c.index.Search(query, k)
	candidates := make([]Candidate, 0, len(hits))
	for _, hit := range hits {
		if hit.Index < 0 || hit.Index >= len(c.texts) {
			continue
		}
		candidates = append(candidates, Candidate{
			Content: c.texts[hit.Index],
			Score:   hit.Score,
			Origin:  OriginLexical,
		})
	}
	return candidates, nil
}
