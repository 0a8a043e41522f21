package researcher

import (
	"context"
	"strings"
	"testing"

	"deep-research-be/internal/pkg/logger"
	"deep-research-be/internal/repository/memory"
	"deep-research-be/pkg/rag"
	"deep-research-be/pkg/rerank"
	"deep-research-be/pkg/tools"

	"github.com/google/uuid"
)

type fixedEmbedder struct{}

func (fixedEmbedder) Generate(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (f fixedEmbedder) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type fixedReranker struct{}

func (fixedReranker) Rerank(ctx context.Context, query string, documents []string) ([]rerank.Result, error) {
	results := make([]rerank.Result, len(documents))
	for i := range documents {
		results[i] = rerank.Result{Index: i, Score: 0.9}
	}
	return results, nil
}

func newTestFilter(t *testing.T) (*Filter, *rag.Store) {
	t.Helper()
	store := rag.NewStore(memory.NewChunkRepository(), fixedEmbedder{}, fixedReranker{}, logger.NewNopLogger(), rag.DefaultConfig())
	return NewFilter(store, logger.NewNopLogger()), store
}

func fetchedUnit(content string) (*Unit, ToolResult) {
	unit := NewUnit("test task", 1)
	unit.Append(ToolCall{CallID: "c1", Tool: tools.ToolFetchPage, URLs: []string{"https://example.com/article"}})
	result := ToolResult{CallID: "c1", Tool: tools.ToolFetchPage, Content: content}
	unit.Append(result)
	return unit, result
}

func TestIngestSkipsSearchListings(t *testing.T) {
	filter, _ := newTestFilter(t)
	unit := NewUnit("test task", 1)
	result := ToolResult{CallID: "c1", Tool: tools.ToolWebSearch, Content: "URL: https://a.example.com"}
	unit.Append(result)

	outcome, err := filter.Ingest(context.Background(), uuid.New(), unit, result)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Applicable {
		t.Error("search listings must not consult the ingestion filter")
	}
}

func TestIngestBoundary(t *testing.T) {
	tests := []struct {
		name   string
		length int
		accept bool
	}{
		{"one under the floor", 199, false},
		{"exactly the floor", 200, false},
		{"one over the floor", 201, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, store := newTestFilter(t)
			session := uuid.New()
			unit, result := fetchedUnit(strings.Repeat("a", tt.length))

			outcome, err := filter.Ingest(context.Background(), session, unit, result)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !outcome.Applicable {
				t.Fatal("fetch payloads must be filtered")
			}
			if outcome.Accepted != tt.accept {
				t.Errorf("accepted = %v, want %v (length %d)", outcome.Accepted, tt.accept, tt.length)
			}

			count, _ := store.Count(context.Background(), session)
			if tt.accept && count == 0 {
				t.Error("accepted content must be committed")
			}
			if !tt.accept && count != 0 {
				t.Error("rejected content must not be committed")
			}
		})
	}
}

func TestIngestReplacesTranscriptPayload(t *testing.T) {
	filter, _ := newTestFilter(t)
	payload := strings.Repeat("long article text. ", 50)
	unit, result := fetchedUnit(payload)

	if _, err := filter.Ingest(context.Background(), uuid.New(), unit, result); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	stored := unit.Transcript[1].(ToolResult)
	if strings.Contains(stored.Content, "long article text") {
		t.Error("raw payload must be removed from the transcript")
	}
	if !strings.Contains(stored.Content, "[stored]") {
		t.Errorf("expected stored notice, got %q", stored.Content)
	}
}

func TestIngestRejectionNotice(t *testing.T) {
	filter, _ := newTestFilter(t)
	unit, result := fetchedUnit("tiny")

	if _, err := filter.Ingest(context.Background(), uuid.New(), unit, result); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	stored := unit.Transcript[1].(ToolResult)
	if !strings.Contains(stored.Content, "[rejected]") {
		t.Errorf("expected rejection notice, got %q", stored.Content)
	}
}

func TestCleanContentStripsImageMarkup(t *testing.T) {
	raw := "Intro text ![chart](https://cdn.example.com/chart.png) more text"
	got := CleanContent(raw)
	if strings.Contains(got, "![") || strings.Contains(got, "chart.png") {
		t.Errorf("image markup survived cleaning: %q", got)
	}
	if !strings.Contains(got, "Intro text") || !strings.Contains(got, "more text") {
		t.Errorf("cleaning removed real content: %q", got)
	}
}

func TestCleanContentDropsBoilerplateLines(t *testing.T) {
	raw := strings.Join([]string{
		"Useful paragraph one.",
		"© 2026 Example Corp. All rights reserved",
		"版权所有，未经许可不得转载",
		"Useful paragraph two.",
	}, "\n")

	got := CleanContent(raw)
	if strings.Contains(got, "©") || strings.Contains(got, "版权所有") {
		t.Errorf("boilerplate survived cleaning: %q", got)
	}
	if !strings.Contains(got, "Useful paragraph one.") || !strings.Contains(got, "Useful paragraph two.") {
		t.Errorf("cleaning removed real content: %q", got)
	}
}
