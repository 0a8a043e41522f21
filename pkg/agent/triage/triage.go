package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"deep-research-be/internal/pkg/logger"
	"deep-research-be/pkg/events"
	"deep-research-be/pkg/llm"
	"deep-research-be/pkg/store"
)

// callSwarm is the routing sentinel the triage model emits when the request
// needs the research pipeline instead of a direct answer.
const callSwarm = "CALL_SWARM"

const (
	safetyReply  = "I'm sorry, but I can't help with that request."
	genericReply = "I'm sorry, something went wrong while processing your request. Please try again."
)

// Some models answer research-grade questions by hallucinating a tool call
// instead of emitting the sentinel. Any of these markers in the reply means
// the model wanted tools it does not have, so the request is routed to the
// research pipeline anyway.
var hallucinationMarkers = []string{"<｜DSML｜", "function_calls", "web_search"}

type Route int

const (
	RouteConversational Route = iota
	RouteResearch
)

// Result is the triage outcome. Reply is only meaningful for the
// conversational route and has already been streamed to the client.
type Result struct {
	Route Route
	Reply string
}

// Triage is the front gate of every run: it either answers the user directly
// or hands the query over to the research pipeline.
type Triage struct {
	llm llm.LLMProvider
	log logger.ILogger
	now func() time.Time
}

func NewTriage(provider llm.LLMProvider, log logger.ILogger) *Triage {
	return &Triage{llm: provider, log: log, now: time.Now}
}

// Classify streams the triage model's reply token by token through the
// emitter (which masks routing sentinels) and decides the route from the
// full response. It never returns an error: provider failures degrade to a
// conversational apology so the client always gets a reply.
func (t *Triage) Classify(ctx context.Context, query string, history []store.Message, emitter *events.Emitter) Result {
	messages := t.buildMessages(query, history)

	response, err := t.llm.ChatStream(ctx, messages, func(token string) {
		emitter.Token(events.SourceTriage, token)
	}, llm.WithTemperature(0.3))
	if err != nil {
		if errors.Is(err, llm.ErrPolicyRejected) {
			t.log.Warn("triage", "query rejected by provider content policy", map[string]interface{}{
				"error": err.Error(),
			})
			emitter.Token(events.SourceTriage, safetyReply)
			return Result{Route: RouteConversational, Reply: safetyReply}
		}
		t.log.Error("triage", "triage call failed", map[string]interface{}{
			"error": err.Error(),
		})
		emitter.Token(events.SourceTriage, genericReply)
		return Result{Route: RouteConversational, Reply: genericReply}
	}

	if strings.Contains(response, callSwarm) {
		return Result{Route: RouteResearch}
	}
	for _, marker := range hallucinationMarkers {
		if strings.Contains(response, marker) {
			t.log.Warn("triage", "model hallucinated a tool call, forcing research route", map[string]interface{}{
				"marker": marker,
			})
			return Result{Route: RouteResearch}
		}
	}
	return Result{Route: RouteConversational, Reply: response}
}

func (t *Triage) buildMessages(query string, history []store.Message) []llm.Message {
	var prompt strings.Builder
	prompt.WriteString("You are the front desk of a deep research assistant.\n")
	prompt.WriteString(fmt.Sprintf("Current date: %s\n\n", t.now().Format("2006-01-02")))
	prompt.WriteString("Decide how to handle the user's latest message:\n")
	prompt.WriteString("1. Greetings, small talk, questions about yourself, or anything you can answer ")
	prompt.WriteString("confidently from general knowledge: answer it directly, concisely, in the user's language.\n")
	prompt.WriteString("2. Anything that needs up-to-date facts, niche domain knowledge, comparisons of real ")
	prompt.WriteString("products or papers, or an investigation of any kind: reply with exactly ")
	prompt.WriteString(callSwarm)
	prompt.WriteString(" and nothing else.\n\n")
	prompt.WriteString("Never mention the routing keyword to the user. Never pretend to search the web yourself; ")
	prompt.WriteString("you have no tools in this role.")

	messages := []llm.Message{{Role: "system", Content: prompt.String()}}
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: query})
	return messages
}
