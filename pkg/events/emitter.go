package events

import (
	"strings"
	"sync"
)

const maxToolOutputLen = 200

// Internal routing markers that must never reach the client. When the triage
// model leaks one mid-stream, the token is replaced with a status frame.
var triageSentinels = []string{"CALL_SWARM", `"tasks"`, `"task"`, `"main_route"`, "<｜DSML｜"}

// Emitter is the pipeline's façade over the Bus for a single run. It tracks
// the current phase and emits a phase frame exactly once per transition, and
// guarantees a single done frame no matter how many times Done is called.
type Emitter struct {
	bus       *Bus
	runID     string
	sessionID string

	mu    sync.Mutex
	phase string

	doneOnce sync.Once
}

func NewEmitter(bus *Bus, runID string, sessionID string) *Emitter {
	return &Emitter{
		bus:       bus,
		runID:     runID,
		sessionID: sessionID,
	}
}

func (e *Emitter) RunID() string { return e.runID }

// advancePhase emits a phase frame when the source implies a phase the run
// has not announced yet.
func (e *Emitter) advancePhase(source string) {
	phase := PhaseForSource(source)
	if phase == "" {
		return
	}

	e.mu.Lock()
	changed := phase != e.phase
	if changed {
		e.phase = phase
	}
	e.mu.Unlock()

	if !changed {
		return
	}
	event := NewEvent(TypePhase, e.runID, e.sessionID)
	event.Phase = phase
	event.Source = source
	e.publish(event)
}

// Token forwards a model token to the client. Triage tokens that contain
// routing sentinels are masked behind a generic status frame.
func (e *Emitter) Token(source string, content string) {
	if strings.TrimSpace(content) == "" {
		return
	}
	e.advancePhase(source)

	if source == SourceTriage && containsSentinel(content) {
		event := NewEvent(TypeStatus, e.runID, e.sessionID)
		event.Source = SourceSystem
		event.Content = "Identifying the request and planning tasks..."
		e.publish(event)
		return
	}

	event := NewEvent(TypeToken, e.runID, e.sessionID)
	event.Source = source
	event.Content = content
	e.publish(event)
}

func (e *Emitter) ToolStart(source string, tool string, input map[string]any) {
	e.advancePhase(source)
	event := NewEvent(TypeToolStart, e.runID, e.sessionID)
	event.Source = source
	event.Tool = tool
	event.Input = input
	e.publish(event)
}

func (e *Emitter) ToolEnd(source string, tool string, output string) {
	e.advancePhase(source)
	event := NewEvent(TypeToolEnd, e.runID, e.sessionID)
	event.Source = source
	event.Tool = tool
	event.Output = truncateOutput(output)
	e.publish(event)
}

func (e *Emitter) Status(source string, content string) {
	e.advancePhase(source)
	event := NewEvent(TypeStatus, e.runID, e.sessionID)
	event.Source = source
	event.Content = content
	e.publish(event)
}

func (e *Emitter) Error(source string, content string) {
	if content == "" {
		content = "unknown error"
	}
	event := NewEvent(TypeError, e.runID, e.sessionID)
	event.Source = source
	event.Content = content
	e.publish(event)
}

// Done closes the run from the client's point of view. Safe to call from
// multiple defer paths; only the first call emits a frame.
func (e *Emitter) Done() {
	e.doneOnce.Do(func() {
		e.publish(NewEvent(TypeDone, e.runID, e.sessionID))
	})
}

// publish is best-effort: a frame the bus cannot take (e.g. during shutdown)
// must not fail the run itself.
func (e *Emitter) publish(event Event) {
	_ = e.bus.Publish(event)
}

func containsSentinel(content string) bool {
	for _, s := range triageSentinels {
		if strings.Contains(content, s) {
			return true
		}
	}
	return false
}

func truncateOutput(output string) string {
	runes := []rune(output)
	if len(runes) <= maxToolOutputLen {
		return output
	}
	return string(runes[:maxToolOutputLen]) + "..."
}
