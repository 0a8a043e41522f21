package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"deep-research-be/internal/pkg/logger"
	"deep-research-be/pkg/llm"
)

const (
	minTasks = 3
	maxTasks = 5
)

// Planner decomposes a research query into independent search tasks that the
// research units work on concurrently.
type Planner struct {
	llm llm.LLMProvider
	log logger.ILogger
	now func() time.Time
}

func NewPlanner(provider llm.LLMProvider, log logger.ILogger) *Planner {
	return &Planner{llm: provider, log: log, now: time.Now}
}

type taskList struct {
	Tasks []string `json:"tasks"`
}

// Decompose returns 3-5 keyword-style search tasks for the query. It never
// fails: any provider or parse error falls back to researching the query
// verbatim as a single task.
func (p *Planner) Decompose(ctx context.Context, query string) []string {
	fallback := []string{query}

	response, err := p.llm.Chat(ctx, []llm.Message{
		{Role: "system", Content: p.systemPrompt()},
		{Role: "user", Content: query},
	}, llm.WithTemperature(0.4))
	if err != nil {
		p.log.Warn("planner", "decomposition call failed, researching query verbatim", map[string]interface{}{
			"error": err.Error(),
		})
		return fallback
	}

	raw := extractJSON(response)
	if raw == "" {
		p.log.Warn("planner", "no JSON object in planner response, researching query verbatim", nil)
		return fallback
	}

	var parsed taskList
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		p.log.Warn("planner", "malformed planner JSON, researching query verbatim", map[string]interface{}{
			"error": err.Error(),
		})
		return fallback
	}

	tasks := make([]string, 0, len(parsed.Tasks))
	for _, task := range parsed.Tasks {
		task = strings.TrimSpace(task)
		if task != "" {
			tasks = append(tasks, task)
		}
	}
	if len(tasks) == 0 {
		return fallback
	}
	if len(tasks) > maxTasks {
		tasks = tasks[:maxTasks]
	}
	return tasks
}

func (p *Planner) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You are a research planner. Break the user's question into ")
	b.WriteString("3 to 5 independent search tasks.\n")
	b.WriteString(fmt.Sprintf("Current date: %s\n\n", p.now().Format("2006-01-02")))
	b.WriteString("Rules:\n")
	b.WriteString("- Each task is a short keyword-style search query, not a full sentence.\n")
	b.WriteString("- Cover different angles: definitions, current state, comparisons, criticism, data.\n")
	b.WriteString("- Tasks must not depend on each other's results.\n")
	b.WriteString("- Keep the tasks in the language most likely to find good sources.\n\n")
	b.WriteString(`Answer with a single JSON object: {"tasks": ["...", "..."]}`)
	b.WriteString("\nNo prose before or after the JSON.")
	return b.String()
}

// extractJSON pulls the first top-level JSON object out of a model response
// that may wrap it in prose or a markdown fence.
func extractJSON(response string) string {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return response[start : end+1]
}
