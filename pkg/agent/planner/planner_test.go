package planner

import (
	"context"
	"errors"
	"testing"

	"deep-research-be/internal/pkg/logger"
	"deep-research-be/pkg/llm"
)

type cannedLLM struct {
	response string
	err      error
}

func (c *cannedLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return c.response, c.err
}

func (c *cannedLLM) ChatStream(ctx context.Context, history []llm.Message, onToken func(string), options ...llm.Option) (string, error) {
	if c.err == nil && onToken != nil {
		onToken(c.response)
	}
	return c.response, c.err
}

func (c *cannedLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return c.response, c.err
}

func TestDecompose(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
		want     []string
	}{
		{
			name:     "well-formed plan",
			response: `{"tasks": ["ev battery market share 2026", "solid state battery manufacturers", "battery cost per kwh trend"]}`,
			want:     []string{"ev battery market share 2026", "solid state battery manufacturers", "battery cost per kwh trend"},
		},
		{
			name:     "json wrapped in prose",
			response: "Here is the plan:\n```json\n{\"tasks\": [\"topic one\", \"topic two\", \"topic three\"]}\n```",
			want:     []string{"topic one", "topic two", "topic three"},
		},
		{
			name:     "malformed json falls back to verbatim query",
			response: `{"tasks": ["broken`,
			want:     []string{"original query"},
		},
		{
			name:     "no json at all",
			response: "I cannot plan this.",
			want:     []string{"original query"},
		},
		{
			name:     "empty task list",
			response: `{"tasks": []}`,
			want:     []string{"original query"},
		},
		{
			name:     "provider error",
			response: "",
			err:      errors.New("upstream timeout"),
			want:     []string{"original query"},
		},
		{
			name:     "oversized plan is truncated",
			response: `{"tasks": ["a", "b", "c", "d", "e", "f", "g"]}`,
			want:     []string{"a", "b", "c", "d", "e"},
		},
		{
			name:     "blank tasks are dropped",
			response: `{"tasks": ["  ", "real task", ""]}`,
			want:     []string{"real task"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPlanner(&cannedLLM{response: tt.response, err: tt.err}, logger.NewNopLogger())
			got := p.Decompose(context.Background(), "original query")

			if len(got) != len(tt.want) {
				t.Fatalf("tasks = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("tasks[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
