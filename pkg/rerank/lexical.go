package rerank

import (
	"context"
	"sort"
	"strings"
)

// LexicalReranker scores documents by query keyword overlap. It is the
// offline fallback when no rerank API is configured: slower models still get
// a stable ordering, just without semantic scoring.
type LexicalReranker struct{}

var _ Reranker = &LexicalReranker{}

func NewLexicalReranker() *LexicalReranker {
	return &LexicalReranker{}
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "of": true, "in": true, "on": true,
	"to": true, "for": true, "and": true, "or": true, "with": true,
	"what": true, "which": true, "how": true, "why": true, "when": true,
	"my": true, "your": true, "i": true, "me": true, "it": true,
	"this": true, "that": true, "about": true, "from": true, "by": true,
}

func (r *LexicalReranker) Rerank(_ context.Context, query string, documents []string) ([]Result, error) {
	keywords := extractKeywords(query)

	results := make([]Result, len(documents))
	for i, doc := range documents {
		results[i] = Result{Index: i, Score: overlapScore(keywords, doc)}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

// extractKeywords extracts important words from the query
func extractKeywords(query string) []string {
	words := strings.Fields(strings.ToLower(query))
	keywords := make([]string, 0, len(words))

	for _, word := range words {
		word = strings.Trim(word, ".,?!;:\"'()")
		if len(word) > 2 && !stopWords[word] {
			keywords = append(keywords, word)
		}
	}
	return keywords
}

// overlapScore returns the fraction of query keywords present in the
// document. A document matching every keyword scores 1.0.
func overlapScore(keywords []string, document string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	doc := strings.ToLower(document)
	matched := 0
	for _, kw := range keywords {
		if strings.Contains(doc, kw) {
			matched++
		}
	}
	return float64(matched) / float64(len(keywords))
}
