package triage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"deep-research-be/internal/pkg/logger"
	"deep-research-be/pkg/events"
	"deep-research-be/pkg/llm"
	"deep-research-be/pkg/store"
)

type cannedLLM struct {
	response string
	err      error
}

func (c *cannedLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return c.response, c.err
}

func (c *cannedLLM) ChatStream(ctx context.Context, history []llm.Message, onToken func(string), options ...llm.Option) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	if onToken != nil {
		onToken(c.response)
	}
	return c.response, c.err
}

func (c *cannedLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return c.response, c.err
}

func newEmitter() *events.Emitter {
	return events.NewEmitter(events.NewBus(), "run-1", "session-1")
}

func TestClassifyRoutes(t *testing.T) {
	tests := []struct {
		name      string
		response  string
		err       error
		wantRoute Route
	}{
		{
			name:      "direct answer stays conversational",
			response:  "Hello! How can I help you today?",
			wantRoute: RouteConversational,
		},
		{
			name:      "routing sentinel goes to research",
			response:  "CALL_SWARM",
			wantRoute: RouteResearch,
		},
		{
			name:      "sentinel embedded in chatter still routes",
			response:  "Let me look into that. CALL_SWARM",
			wantRoute: RouteResearch,
		},
		{
			name:      "hallucinated tool call forces research",
			response:  `I'll search for that: web_search("latest news")`,
			wantRoute: RouteResearch,
		},
		{
			name:      "hallucinated dsml markup forces research",
			response:  "<｜DSML｜invoke name=\"search\"",
			wantRoute: RouteResearch,
		},
		{
			name:      "policy rejection degrades to safety reply",
			err:       fmt.Errorf("moderation: %w", llm.ErrPolicyRejected),
			wantRoute: RouteConversational,
		},
		{
			name:      "transport error degrades to apology",
			err:       errors.New("connection refused"),
			wantRoute: RouteConversational,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTriage(&cannedLLM{response: tt.response, err: tt.err}, logger.NewNopLogger())
			result := tr.Classify(context.Background(), "user question", nil, newEmitter())

			if result.Route != tt.wantRoute {
				t.Fatalf("route = %v, want %v", result.Route, tt.wantRoute)
			}
			if tt.wantRoute == RouteConversational && result.Reply == "" {
				t.Error("conversational route must carry a reply for the session history")
			}
		})
	}
}

func TestClassifyKeepsHistoryOrder(t *testing.T) {
	var captured []llm.Message
	provider := &capturingLLM{response: "direct answer"}
	tr := NewTriage(provider, logger.NewNopLogger())

	history := []store.Message{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
	}
	tr.Classify(context.Background(), "new question", history, newEmitter())
	captured = provider.messages

	if len(captured) != 4 {
		t.Fatalf("expected system + 2 history + new question, got %d messages", len(captured))
	}
	if captured[0].Role != "system" {
		t.Errorf("first message must be the system prompt, got role %q", captured[0].Role)
	}
	if captured[1].Content != "earlier question" || captured[2].Content != "earlier answer" {
		t.Error("history order not preserved")
	}
	if captured[3].Content != "new question" {
		t.Errorf("latest query must come last, got %q", captured[3].Content)
	}
}

type capturingLLM struct {
	response string
	messages []llm.Message
}

func (c *capturingLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	c.messages = history
	return c.response, nil
}

func (c *capturingLLM) ChatStream(ctx context.Context, history []llm.Message, onToken func(string), options ...llm.Option) (string, error) {
	c.messages = history
	if onToken != nil {
		onToken(c.response)
	}
	return c.response, nil
}

func (c *capturingLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return c.response, nil
}
