package writer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"deep-research-be/internal/pkg/logger"
	"deep-research-be/pkg/llm"
	"deep-research-be/pkg/rag"
	"deep-research-be/pkg/store"

	"github.com/google/uuid"
)

// Writer composes the final report from whatever the research units managed
// to put into the session's knowledge store.
type Writer struct {
	llm   llm.LLMProvider
	store *rag.Store
	log   logger.ILogger
	now   func() time.Time
}

func NewWriter(provider llm.LLMProvider, ragStore *rag.Store, log logger.ILogger) *Writer {
	return &Writer{
		llm:   provider,
		store: ragStore,
		log:   log,
		now:   time.Now,
	}
}

// Compose retrieves evidence for every task in plan order, builds the report
// prompt and streams the report through onToken. The full report is returned
// for the session history.
func (w *Writer) Compose(ctx context.Context, sessionId uuid.UUID, query string, tasks []string, history []store.Message, onToken func(token string)) (string, error) {
	evidence := w.collectEvidence(ctx, sessionId, tasks)

	messages := []llm.Message{{Role: "system", Content: w.systemPrompt()}}
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: w.userPrompt(query, tasks, evidence)})

	report, err := w.llm.ChatStream(ctx, messages, onToken, llm.WithTemperature(0.5))
	if err != nil {
		return "", fmt.Errorf("failed to compose report: %w", err)
	}
	return report, nil
}

// collectEvidence queries the knowledge store once per task, in plan order.
// A task with no usable evidence gets the empty-store notice so the model
// reports the gap instead of papering over it.
func (w *Writer) collectEvidence(ctx context.Context, sessionId uuid.UUID, tasks []string) []string {
	evidence := make([]string, len(tasks))
	for i, task := range tasks {
		results, err := w.store.Query(ctx, sessionId, task, 0)
		if err != nil {
			w.log.Error("writer", "evidence retrieval failed", map[string]interface{}{
				"task":  task,
				"error": err.Error(),
			})
			evidence[i] = rag.NoResultsNotice
			continue
		}
		if len(results) == 0 {
			evidence[i] = rag.NoResultsNotice
			continue
		}
		evidence[i] = rag.FormatResults(results)
	}
	return evidence
}

func (w *Writer) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You are a senior research analyst writing the final report of a deep research run.\n\n")
	b.WriteString("Structure the report in Markdown:\n")
	b.WriteString("1. A title.\n")
	b.WriteString("2. An executive summary (3-5 sentences).\n")
	b.WriteString("3. Key findings as a bullet list.\n")
	b.WriteString("4. One section per research task, in the order given, analysing that task's evidence.\n")
	b.WriteString("5. A short note on source confidence, using the confidence scores attached to the evidence.\n")
	b.WriteString("6. A references section listing only URLs that appear in the evidence.\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Use ONLY the evidence blocks below. Never invent facts, numbers or URLs.\n")
	b.WriteString("- If a task's evidence says nothing useful was found, say so plainly in that section.\n")
	b.WriteString("- Write in the language of the user's question.\n")
	b.WriteString("- Report date: ")
	b.WriteString(w.now().Format("2006-01-02"))
	b.WriteString("\n")
	return b.String()
}

func (w *Writer) userPrompt(query string, tasks []string, evidence []string) string {
	var b strings.Builder
	b.WriteString("Research question: ")
	b.WriteString(query)
	b.WriteString("\n\n")
	for i, task := range tasks {
		b.WriteString(fmt.Sprintf("## Task %d: %s\n\n", i+1, task))
		b.WriteString(evidence[i])
		b.WriteString("\n\n")
	}
	b.WriteString("Write the full report now.")
	return b.String()
}
