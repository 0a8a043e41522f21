package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"deep-research-be/internal/pkg/logger"
	"deep-research-be/internal/repository/memory"
	"deep-research-be/pkg/checkpoint"
	"deep-research-be/pkg/events"
	"deep-research-be/pkg/llm"
	"deep-research-be/pkg/rag"
	"deep-research-be/pkg/rerank"

	"github.com/google/uuid"
)

// scriptedLLM replays responses in call order across Chat and ChatStream.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []string
	calls     int
}

func (s *scriptedLLM) next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i < len(s.responses) {
		return s.responses[i]
	}
	return ""
}

func (s *scriptedLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return s.next(), nil
}

func (s *scriptedLLM) ChatStream(ctx context.Context, history []llm.Message, onToken func(string), options ...llm.Option) (string, error) {
	response := s.next()
	if onToken != nil {
		onToken(response)
	}
	return response, nil
}

func (s *scriptedLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return s.next(), nil
}

type flatEmbedder struct{}

func (flatEmbedder) Generate(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (f flatEmbedder) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

type passReranker struct{}

func (passReranker) Rerank(ctx context.Context, query string, documents []string) ([]rerank.Result, error) {
	results := make([]rerank.Result, len(documents))
	for i := range documents {
		results[i] = rerank.Result{Index: i, Score: 0.9}
	}
	return results, nil
}

// stubGateway answers every search with one listing entry and every fetch
// with a long article.
type stubGateway struct{}

func (stubGateway) Search(ctx context.Context, query string) (string, error) {
	return "Title: page\nURL: https://a.example.com\nSnippet: ...\n", nil
}

func (stubGateway) Fetch(ctx context.Context, url string) (string, error) {
	return strings.Repeat("long article body with plenty of substance. ", 20), nil
}

func (stubGateway) BatchFetch(ctx context.Context, urls []string) (string, error) {
	return strings.Repeat("long article body with plenty of substance. ", 20), nil
}

func newService(t *testing.T, provider llm.LLMProvider) IResearchService {
	t.Helper()
	nop := logger.NewNopLogger()
	store := rag.NewStore(memory.NewChunkRepository(), flatEmbedder{}, passReranker{}, nop, rag.DefaultConfig())
	return NewResearchService(
		provider,
		store,
		memory.NewSessionRepository(time.Hour),
		events.NewBus(),
		checkpoint.NewMemoryStore(time.Hour),
		nil, // completion events disabled
		stubGateway{},
		nop,
	)
}

// drain collects frames until the done frame or a timeout.
func drain(t *testing.T, handle *RunHandle) []events.Event {
	t.Helper()
	var frames []events.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case event, ok := <-handle.Events:
			if !ok {
				return frames
			}
			frames = append(frames, event)
			if event.Type == events.TypeDone {
				return frames
			}
		case <-timeout:
			t.Fatalf("no done frame after %d frames", len(frames))
		}
	}
}

func TestConversationalRun(t *testing.T) {
	provider := &scriptedLLM{responses: []string{"Hi! I can research topics for you."}}
	svc := newService(t, provider)

	handle, err := svc.StartRun("", "hello")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !handle.NewSession {
		t.Error("blank session id must create a session")
	}
	if handle.SessionID == "" || handle.RunID == "" {
		t.Error("handle must carry identities")
	}

	frames := drain(t, handle)

	var sawToken, sawDone bool
	for _, f := range frames {
		if f.Type == events.TypeToken && strings.Contains(f.Content, "research topics") {
			sawToken = true
		}
		if f.Type == events.TypeDone {
			sawDone = true
		}
	}
	if !sawToken {
		t.Error("triage reply was not streamed")
	}
	if !sawDone {
		t.Error("missing done frame")
	}
}

func TestResearchRunEndToEnd(t *testing.T) {
	// Call order: triage, planner, surfer breadth, surfer depth, writer.
	provider := &scriptedLLM{responses: []string{
		"CALL_SWARM",
		`{"tasks": ["single task"]}`,
		`{"tool": "web_search", "query": "single task"}`,
		`{"tool": "get_page_content", "urls": ["https://a.example.com"]}`,
		"# Final Report\n\nAll findings.",
	}}
	svc := newService(t, provider)

	handle, err := svc.StartRun(uuid.NewString(), "research something")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	frames := drain(t, handle)

	var phases []string
	doneCount := 0
	var reportStreamed bool
	for _, f := range frames {
		switch f.Type {
		case events.TypePhase:
			phases = append(phases, f.Phase)
		case events.TypeDone:
			doneCount++
		case events.TypeToken:
			if f.Source == events.SourceWriter && strings.Contains(f.Content, "Final Report") {
				reportStreamed = true
			}
		}
	}

	if doneCount != 1 {
		t.Errorf("done frames = %d, want exactly 1", doneCount)
	}
	if !reportStreamed {
		t.Error("report tokens missing from stream")
	}

	// Phases must advance planning -> researching -> writing without repeats.
	want := []string{events.PhasePlanning, events.PhaseResearching, events.PhaseWriting}
	if len(phases) != len(want) {
		t.Fatalf("phases = %v, want %v", phases, want)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Errorf("phases[%d] = %q, want %q", i, phases[i], want[i])
		}
	}
}

func TestStartRunRateLimit(t *testing.T) {
	provider := &scriptedLLM{responses: []string{
		"reply", "reply", "reply", "reply", "reply", "reply",
	}}
	svc := newService(t, provider)
	sessionId := uuid.NewString()

	for i := 1; i <= 6; i++ {
		handle, err := svc.StartRun(sessionId, "hello")
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		drain(t, handle) // wait for completion so the admission slot frees up
	}

	_, err := svc.StartRun(sessionId, "one too many")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
}

func TestConcurrentConversationalRunsOnOneSession(t *testing.T) {
	const runs = 4
	responses := make([]string, runs)
	for i := range responses {
		responses[i] = "Hi there!"
	}
	svc := newService(t, &scriptedLLM{responses: responses})
	sessionId := uuid.NewString()

	handles := make([]*RunHandle, runs)
	for i := range handles {
		handle, err := svc.StartRun(sessionId, "hello")
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		handles[i] = handle
	}

	for i, handle := range handles {
		frames := drain(t, handle)
		done := 0
		for _, f := range frames {
			if f.Type == events.TypeDone {
				done++
			}
		}
		if done != 1 {
			t.Errorf("run %d emitted %d done frames, want 1", i, done)
		}
	}
}
