package rerank

import (
	"context"
	"testing"
)

func TestLexicalRerankOrdering(t *testing.T) {
	r := NewLexicalReranker()
	docs := []string{
		"unrelated text about cooking recipes",
		"solid state battery energy density improvements",
		"battery prices dropped last year",
	}

	results, err := r.Rerank(context.Background(), "solid state battery energy density", docs)
	if err != nil {
		t.Fatalf("rerank: %v", err)
	}
	if len(results) != len(docs) {
		t.Fatalf("results = %d, want %d", len(results), len(docs))
	}
	if results[0].Index != 1 {
		t.Errorf("best match index = %d, want 1", results[0].Index)
	}
	if results[0].Score != 1.0 {
		t.Errorf("full keyword overlap should score 1.0, got %f", results[0].Score)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Error("results not sorted by score")
		}
	}
}

func TestLexicalRerankIgnoresStopWords(t *testing.T) {
	r := NewLexicalReranker()
	docs := []string{"the of and in on", "graphene conductivity measurements"}

	results, err := r.Rerank(context.Background(), "what is the conductivity of graphene", docs)
	if err != nil {
		t.Fatalf("rerank: %v", err)
	}
	if results[0].Index != 1 {
		t.Errorf("stop-word soup ranked above a real match: %+v", results)
	}
	if results[1].Score != 0 {
		t.Errorf("stop words alone must not score, got %f", results[1].Score)
	}
}

func TestLexicalRerankEmptyQuery(t *testing.T) {
	r := NewLexicalReranker()
	results, err := r.Rerank(context.Background(), "of the a", []string{"anything"})
	if err != nil {
		t.Fatalf("rerank: %v", err)
	}
	if results[0].Score != 0 {
		t.Errorf("no keywords means score 0, got %f", results[0].Score)
	}
}
