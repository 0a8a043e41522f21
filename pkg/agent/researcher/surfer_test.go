package researcher

import (
	"context"
	"testing"

	"deep-research-be/internal/pkg/logger"
	"deep-research-be/pkg/llm"
	"deep-research-be/pkg/tools"
)

// scriptedLLM replays canned responses (or errors) in order.
type scriptedLLM struct {
	responses []string
	errs      []error
	calls     int
}

func (s *scriptedLLM) next() (string, error) {
	i := s.calls
	s.calls++
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	var response string
	if i < len(s.responses) {
		response = s.responses[i]
	}
	return response, err
}

func (s *scriptedLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return s.next()
}

func (s *scriptedLLM) ChatStream(ctx context.Context, history []llm.Message, onToken func(string), options ...llm.Option) (string, error) {
	response, err := s.next()
	if err == nil && onToken != nil {
		onToken(response)
	}
	return response, err
}

func (s *scriptedLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return s.next()
}

func searchListing(urls ...string) string {
	content := ""
	for _, url := range urls {
		content += "Title: page\nURL: " + url + "\nSnippet: ...\n"
	}
	return content
}

func TestSurferBreadthModeSearches(t *testing.T) {
	provider := &scriptedLLM{responses: []string{`{"tool": "web_search", "query": "lithium battery recycling 2026"}`}}
	surfer := NewSurfer(provider, logger.NewNopLogger())
	unit := NewUnit("lithium battery recycling", 1)

	outcome := surfer.Step(context.Background(), unit)
	if outcome.Kind != StepInvoke {
		t.Fatalf("expected StepInvoke, got %v (%s)", outcome.Kind, outcome.Reason)
	}
	if outcome.Invocation.Tool != tools.ToolWebSearch {
		t.Errorf("tool = %q, want search", outcome.Invocation.Tool)
	}
	if outcome.Invocation.Query != "lithium battery recycling 2026" {
		t.Errorf("query = %q", outcome.Invocation.Query)
	}
}

func TestSurferBreadthFallbackOnGarbage(t *testing.T) {
	provider := &scriptedLLM{responses: []string{"sure! let me think about that..."}}
	surfer := NewSurfer(provider, logger.NewNopLogger())
	unit := NewUnit("solid state battery production", 1)

	outcome := surfer.Step(context.Background(), unit)
	if outcome.Kind != StepInvoke {
		t.Fatalf("expected StepInvoke, got %v", outcome.Kind)
	}
	if outcome.Invocation.Query != unit.Task {
		t.Errorf("fallback query must be the task text, got %q", outcome.Invocation.Query)
	}
}

func TestSurferDepthModeFetchesFromListing(t *testing.T) {
	provider := &scriptedLLM{responses: []string{`{"tool": "batch_fetch", "urls": ["https://a.example.com", "https://b.example.com"]}`}}
	surfer := NewSurfer(provider, logger.NewNopLogger())
	unit := NewUnit("grid storage economics", 1)
	unit.Append(ToolCall{CallID: "c1", Tool: tools.ToolWebSearch, Query: "grid storage"})
	unit.Append(ToolResult{CallID: "c1", Tool: tools.ToolWebSearch,
		Content: searchListing("https://a.example.com", "https://b.example.com", "https://c.example.com")})

	outcome := surfer.Step(context.Background(), unit)
	if outcome.Kind != StepInvoke {
		t.Fatalf("expected StepInvoke, got %v", outcome.Kind)
	}
	if outcome.Invocation.Tool != tools.ToolBatchFetch {
		t.Errorf("tool = %q, want batch fetch", outcome.Invocation.Tool)
	}
	if len(outcome.Invocation.URLs) != 2 {
		t.Errorf("urls = %v", outcome.Invocation.URLs)
	}
}

func TestSurferDepthModeSkipsVisitedURLs(t *testing.T) {
	// Model insists on a URL that was already fetched; the surfer must fall
	// back to unvisited listing entries.
	provider := &scriptedLLM{responses: []string{`{"tool": "get_page_content", "urls": ["https://a.example.com"]}`}}
	surfer := NewSurfer(provider, logger.NewNopLogger())
	unit := NewUnit("grid storage economics", 1)
	unit.Append(ToolCall{CallID: "c1", Tool: tools.ToolWebSearch, Query: "grid storage"})
	unit.Append(ToolResult{CallID: "c1", Tool: tools.ToolWebSearch,
		Content: searchListing("https://a.example.com", "https://b.example.com")})
	unit.Append(ToolCall{CallID: "c2", Tool: tools.ToolFetchPage, URLs: []string{"https://a.example.com"}})
	unit.Append(ToolResult{CallID: "c2", Tool: tools.ToolFetchPage, Content: "[rejected] Content too short"})

	outcome := surfer.Step(context.Background(), unit)
	if outcome.Kind != StepInvoke {
		t.Fatalf("expected StepInvoke, got %v (%s)", outcome.Kind, outcome.Reason)
	}
	if len(outcome.Invocation.URLs) != 1 || outcome.Invocation.URLs[0] != "https://b.example.com" {
		t.Errorf("expected the unvisited url only, got %v", outcome.Invocation.URLs)
	}
	if outcome.Invocation.Tool != tools.ToolFetchPage {
		t.Errorf("single url must use the single-page tool, got %q", outcome.Invocation.Tool)
	}
}

func TestSurferDepthModeExhaustsListing(t *testing.T) {
	provider := &scriptedLLM{responses: []string{`{"tool": "get_page_content", "urls": ["https://a.example.com"]}`}}
	surfer := NewSurfer(provider, logger.NewNopLogger())
	unit := NewUnit("grid storage economics", 1)
	unit.Append(ToolCall{CallID: "c1", Tool: tools.ToolWebSearch, Query: "grid storage"})
	unit.Append(ToolResult{CallID: "c1", Tool: tools.ToolWebSearch, Content: searchListing("https://a.example.com")})
	unit.Append(ToolCall{CallID: "c2", Tool: tools.ToolFetchPage, URLs: []string{"https://a.example.com"}})
	unit.Append(ToolResult{CallID: "c2", Tool: tools.ToolFetchPage, Content: "[rejected] Content too short"})

	outcome := surfer.Step(context.Background(), unit)
	if outcome.Kind != StepFatal {
		t.Fatalf("expected StepFatal when every listed url was tried, got %v", outcome.Kind)
	}
}

func TestSurferDepthModeResearchesOnEmptyListing(t *testing.T) {
	provider := &scriptedLLM{responses: []string{`{"tool": "web_search", "query": "alternative keywords"}`}}
	surfer := NewSurfer(provider, logger.NewNopLogger())
	unit := NewUnit("obscure topic", 1)
	unit.Append(ToolCall{CallID: "c1", Tool: tools.ToolWebSearch, Query: "obscure topic"})
	unit.Append(ToolResult{CallID: "c1", Tool: tools.ToolWebSearch, Content: "no results"})

	outcome := surfer.Step(context.Background(), unit)
	if outcome.Kind != StepInvoke {
		t.Fatalf("expected StepInvoke, got %v", outcome.Kind)
	}
	if outcome.Invocation.Tool != tools.ToolWebSearch {
		t.Errorf("empty listing must allow a fresh search, got %q", outcome.Invocation.Tool)
	}
	if outcome.Invocation.Query != "alternative keywords" {
		t.Errorf("query = %q", outcome.Invocation.Query)
	}
}

func TestSurferPolicyBlock(t *testing.T) {
	provider := &scriptedLLM{errs: []error{llm.ErrPolicyRejected}}
	surfer := NewSurfer(provider, logger.NewNopLogger())
	unit := NewUnit("blocked topic", 1)

	outcome := surfer.Step(context.Background(), unit)
	if outcome.Kind != StepBlocked {
		t.Fatalf("expected StepBlocked, got %v", outcome.Kind)
	}
}
