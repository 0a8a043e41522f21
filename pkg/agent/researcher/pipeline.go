package researcher

import (
	"context"
	"fmt"

	"deep-research-be/internal/pkg/logger"
	"deep-research-be/pkg/events"
	"deep-research-be/pkg/tools"

	"github.com/google/uuid"
)

// maxSteps is a hard ceiling on loop iterations per unit, protecting against
// a pathological search/fetch cycle that never reaches the supervisor.
const maxSteps = 12

// Pipeline drives one research unit to a terminal state: the surfer picks a
// tool call, the gateway executes it, the filter ingests full-text payloads,
// and the leader decides between success, retry and exhaustion.
type Pipeline struct {
	surfer  *Surfer
	filter  *Filter
	leader  *Leader
	gateway tools.Gateway
	log     logger.ILogger
}

func NewPipeline(surfer *Surfer, filter *Filter, leader *Leader, gateway tools.Gateway, log logger.ILogger) *Pipeline {
	return &Pipeline{
		surfer:  surfer,
		filter:  filter,
		leader:  leader,
		gateway: gateway,
		log:     log,
	}
}

// Run loops until the unit terminates. It never returns an error: every
// failure mode ends in a terminal unit state the orchestrator can read.
func (p *Pipeline) Run(ctx context.Context, sessionId uuid.UUID, unit *Unit, emitter *events.Emitter) {
	for step := 0; unit.State == StateRunning && step < maxSteps; step++ {
		// Cooperative cancellation at the tool-call boundary.
		if ctx.Err() != nil {
			unit.State = StateExhausted
			p.log.Warn("pipeline", "run cancelled, unit abandoned", map[string]interface{}{
				"task_index": unit.TaskIndex,
			})
			return
		}

		outcome := p.surfer.Step(ctx, unit)
		switch outcome.Kind {
		case StepBlocked, StepFatal:
			emitter.Status(events.SourceLeader, fmt.Sprintf("Task %d attempt failed: %s", unit.TaskIndex, outcome.Reason))
			p.supervise(unit, false, emitter)
			continue
		case StepInvoke:
			// fall through to execution
		}

		invocation := outcome.Invocation
		unit.Append(ToolCall{
			CallID: invocation.CallID,
			Tool:   invocation.Tool,
			Query:  invocation.Query,
			URLs:   invocation.URLs,
		})
		emitter.ToolStart(events.SourceSurfer, invocation.Tool, invocationInput(invocation))

		content, execErr := p.execute(ctx, invocation)
		if execErr != nil {
			unit.Append(ToolResult{CallID: invocation.CallID, Tool: invocation.Tool, Content: "Error: " + execErr.Error()})
			emitter.ToolEnd(events.SourceSurfer, invocation.Tool, "Error: "+execErr.Error())
			p.supervise(unit, false, emitter)
			continue
		}

		result := ToolResult{CallID: invocation.CallID, Tool: invocation.Tool, Content: content}
		unit.Append(result)
		emitter.ToolEnd(events.SourceSurfer, invocation.Tool, content)

		ingest, err := p.filter.Ingest(ctx, sessionId, unit, result)
		if err != nil {
			p.log.Error("pipeline", "ingestion failed", map[string]interface{}{
				"task_index": unit.TaskIndex,
				"error":      err.Error(),
			})
			p.supervise(unit, false, emitter)
			continue
		}
		if !ingest.Applicable {
			// Search listings return straight to the surfer for depth mode.
			continue
		}
		p.supervise(unit, ingest.Accepted, emitter)
	}

	if unit.State == StateRunning {
		unit.State = StateExhausted
		p.log.Error("pipeline", "step ceiling reached, unit forced to exhausted", map[string]interface{}{
			"task_index": unit.TaskIndex,
		})
	}
}

func (p *Pipeline) supervise(unit *Unit, accepted bool, emitter *events.Emitter) {
	switch p.leader.Evaluate(unit, accepted) {
	case VerdictSucceeded:
		emitter.Status(events.SourceLeader, fmt.Sprintf("Task %d: usable content collected.", unit.TaskIndex))
	case VerdictRetry:
		emitter.Status(events.SourceLeader, fmt.Sprintf("Task %d: no usable data, retrying with different keywords (attempt %d).", unit.TaskIndex, unit.RetryCount+1))
	case VerdictExhausted:
		emitter.Status(events.SourceLeader, fmt.Sprintf("Task %d: giving up after %d attempts.", unit.TaskIndex, unit.RetryCount+1))
	}
}

func (p *Pipeline) execute(ctx context.Context, invocation *Invocation) (string, error) {
	switch invocation.Tool {
	case tools.ToolWebSearch:
		return p.gateway.Search(ctx, invocation.Query)
	case tools.ToolFetchPage:
		return p.gateway.Fetch(ctx, invocation.URLs[0])
	case tools.ToolBatchFetch:
		return p.gateway.BatchFetch(ctx, invocation.URLs)
	default:
		return "", fmt.Errorf("unknown tool %q", invocation.Tool)
	}
}

func invocationInput(invocation *Invocation) map[string]any {
	input := make(map[string]any)
	if invocation.Query != "" {
		input["query"] = invocation.Query
	}
	if len(invocation.URLs) > 0 {
		input["urls"] = invocation.URLs
	}
	return input
}
