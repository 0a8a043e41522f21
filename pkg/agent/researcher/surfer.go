package researcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"deep-research-be/internal/pkg/logger"
	"deep-research-be/pkg/llm"
	"deep-research-be/pkg/tools"

	"github.com/google/uuid"
)

const maxDepthURLs = 3

// StepKind tags the surfer's decision for one step.
type StepKind int

const (
	// StepInvoke carries a tool invocation to execute.
	StepInvoke StepKind = iota
	// StepBlocked means the model refused for content-policy reasons.
	StepBlocked
	// StepFatal means the model call failed for transport reasons.
	StepFatal
)

// Invocation is one tool request the surfer wants executed.
type Invocation struct {
	CallID string
	Tool   string
	Query  string
	URLs   []string
}

// StepOutcome is the surfer's decision: an invocation, or a terminal marker
// the supervisor counts as a failed attempt.
type StepOutcome struct {
	Kind       StepKind
	Invocation *Invocation
	Reason     string
}

// Surfer is the acquisition side of a research unit. State is implicit in
// the transcript: no tool result yet means breadth mode (search), an
// existing listing means depth mode (fetch 1-3 URLs from it).
type Surfer struct {
	llm llm.LLMProvider
	log logger.ILogger
	now func() time.Time
}

func NewSurfer(provider llm.LLMProvider, log logger.ILogger) *Surfer {
	return &Surfer{
		llm: provider,
		log: log,
		now: time.Now,
	}
}

// surferDecision is the structured output we ask the model for.
type surferDecision struct {
	Tool  string   `json:"tool"`
	Query string   `json:"query,omitempty"`
	URLs  []string `json:"urls,omitempty"`
}

// Step decides the unit's next tool invocation. A malformed model answer
// falls back to a deterministic choice; only policy blocks and transport
// failures surface as terminal markers.
func (s *Surfer) Step(ctx context.Context, unit *Unit) StepOutcome {
	depthMode := unit.HasToolResult()

	response, err := s.llm.Chat(ctx, s.buildMessages(unit, depthMode), llm.WithTemperature(0.6))
	if err != nil {
		if errors.Is(err, llm.ErrPolicyRejected) {
			s.log.Warn("surfer", "model refused step for policy reasons", map[string]interface{}{
				"task_index": unit.TaskIndex,
				"task":       unit.Task,
			})
			return StepOutcome{Kind: StepBlocked, Reason: "content policy rejection"}
		}
		s.log.Error("surfer", "model call failed", map[string]interface{}{
			"task_index": unit.TaskIndex,
			"error":      err.Error(),
		})
		return StepOutcome{Kind: StepFatal, Reason: err.Error()}
	}

	unit.Append(ModelTurn{Content: response})

	decision, parseErr := parseDecision(response)
	if parseErr != nil {
		s.log.Warn("surfer", "unparseable decision, using deterministic fallback", map[string]interface{}{
			"task_index": unit.TaskIndex,
			"error":      parseErr.Error(),
		})
	}

	if depthMode {
		return s.depthStep(unit, decision)
	}
	return s.breadthStep(unit, decision)
}

// breadthStep issues the initial search. Fallback query is the task text
// itself, so planning output quality never blocks acquisition.
func (s *Surfer) breadthStep(unit *Unit, decision *surferDecision) StepOutcome {
	query := unit.Task
	if decision != nil && decision.Tool == tools.ToolWebSearch && strings.TrimSpace(decision.Query) != "" {
		query = strings.TrimSpace(decision.Query)
	}
	return StepOutcome{
		Kind: StepInvoke,
		Invocation: &Invocation{
			CallID: uuid.NewString(),
			Tool:   tools.ToolWebSearch,
			Query:  query,
		},
	}
}

// depthStep picks 1-3 unvisited URLs from the existing listing. A retry must
// target different pages; a fresh search is only allowed when the listing
// yielded nothing at all.
func (s *Surfer) depthStep(unit *Unit, decision *surferDecision) StepOutcome {
	listing := unit.SearchListingURLs()
	fetched := unit.FetchedURLs()

	candidates := make([]string, 0, len(listing))
	for _, url := range listing {
		if !fetched[url] {
			candidates = append(candidates, url)
		}
	}

	if len(listing) == 0 {
		// Empty result set: re-searching is the only way forward.
		query := unit.Task
		if decision != nil && strings.TrimSpace(decision.Query) != "" {
			query = strings.TrimSpace(decision.Query)
		}
		return StepOutcome{
			Kind: StepInvoke,
			Invocation: &Invocation{
				CallID: uuid.NewString(),
				Tool:   tools.ToolWebSearch,
				Query:  query,
			},
		}
	}

	var urls []string
	if decision != nil && len(decision.URLs) > 0 {
		for _, url := range decision.URLs {
			url = strings.TrimSpace(url)
			if url != "" && !fetched[url] {
				urls = append(urls, url)
			}
			if len(urls) == maxDepthURLs {
				break
			}
		}
	}
	if len(urls) == 0 {
		if len(candidates) > maxDepthURLs {
			candidates = candidates[:maxDepthURLs]
		}
		urls = candidates
	}
	if len(urls) == 0 {
		// Every listed URL was already tried and rejected.
		return StepOutcome{Kind: StepFatal, Reason: "no unvisited URLs left in search listing"}
	}

	tool := tools.ToolBatchFetch
	if len(urls) == 1 {
		tool = tools.ToolFetchPage
	}
	return StepOutcome{
		Kind: StepInvoke,
		Invocation: &Invocation{
			CallID: uuid.NewString(),
			Tool:   tool,
			URLs:   urls,
		},
	}
}

func (s *Surfer) buildMessages(unit *Unit, depthMode bool) []llm.Message {
	var prompt strings.Builder
	prompt.WriteString("You are a professional web intelligence collector.\n")
	prompt.WriteString(fmt.Sprintf("Current task: %q\n", unit.Task))
	prompt.WriteString(fmt.Sprintf("Current date: %s\n\n", s.now().Format("2006-01-02")))

	if unit.RetryCount > 0 {
		prompt.WriteString(fmt.Sprintf("WARNING: the previous attempt produced no usable content. This is retry %d. ", unit.RetryCount))
		prompt.WriteString("Change your keywords or target different URLs than before.\n\n")
	}

	prompt.WriteString("### Standard operating procedure\n")
	prompt.WriteString("You are the collection side of a map-reduce pipeline. Your only goal is high-quality full-text data.\n\n")
	if depthMode {
		prompt.WriteString("State B, advance: a search listing already exists below.\n")
		prompt.WriteString("- Pick the 1-3 most promising URLs (prefer long-form articles, reports, deep analyses).\n")
		prompt.WriteString("- Do NOT search again unless every listed result is junk.\n")
		prompt.WriteString(`- Answer with JSON only: {"tool": "batch_fetch", "urls": ["...", "..."]}` + "\n\n")
	} else {
		prompt.WriteString("State A, cold start: no search has happened yet.\n")
		prompt.WriteString("- Compose one precise keyword query targeting authoritative sources.\n")
		prompt.WriteString(`- Answer with JSON only: {"tool": "web_search", "query": "..."}` + "\n\n")
	}
	prompt.WriteString("### Rules\n")
	prompt.WriteString("1. This is an automated interface. No commentary, no reasoning out loud.\n")
	prompt.WriteString("2. Output the JSON object and nothing else.\n")

	messages := []llm.Message{{Role: "system", Content: prompt.String()}}
	for _, entry := range unit.Transcript {
		switch e := entry.(type) {
		case ModelTurn:
			messages = append(messages, llm.Message{Role: "assistant", Content: e.Content})
		case ToolCall:
			payload, _ := json.Marshal(e)
			messages = append(messages, llm.Message{Role: "assistant", Content: string(payload)})
		case ToolResult:
			messages = append(messages, llm.Message{Role: "user", Content: fmt.Sprintf("[%s result]\n%s", e.Tool, e.Content)})
		}
	}
	return messages
}

func parseDecision(response string) (*surferDecision, error) {
	var decision surferDecision
	if err := json.Unmarshal([]byte(extractJSON(response)), &decision); err != nil {
		return nil, fmt.Errorf("decode surfer decision: %w", err)
	}
	return &decision, nil
}

// extractJSON isolates JSON content from response
func extractJSON(response string) string {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")

	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return response
	}

	return response[startIdx : endIdx+1]
}
