package reranker

import "context"

// Result scores one input document; Index refers back into the document
// slice passed to Rerank.
type Result struct {
	Index int
	Score float32
}

// Reranker rescores candidate documents against a query with a relevance
// model independent of the original retrieval score. Ranking quality gates
// answer correctness, so implementations must return an error rather than
// degrade to unranked output.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string) ([]Result, error)
}
