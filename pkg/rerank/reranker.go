package rerank

import "context"

// Result pairs a candidate document index with its relevance score.
// Scores are normalized to [0, 1], higher meaning more relevant.
type Result struct {
	Index int
	Score float64
}

// Reranker re-scores candidate documents against a query. Implementations
// return one Result per document, sorted by descending score.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string) ([]Result, error)
}
