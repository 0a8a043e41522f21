package events

import "time"

// ProtocolVersion identifies the wire format of stream events. Consumers
// should ignore events with a version they do not understand.
const ProtocolVersion = "v1"

// Event types pushed over the stream.
const (
	TypePhase     = "phase"
	TypeToken     = "token"
	TypeToolStart = "tool_start"
	TypeToolEnd   = "tool_end"
	TypeStatus    = "status"
	TypeError     = "error"
	TypeDone      = "done"
)

// Event sources (which part of the pipeline produced the event).
const (
	SourceTriage  = "triage"
	SourcePlanner = "planner"
	SourceSurfer  = "surfer"
	SourceLeader  = "leader"
	SourceIngest  = "ingest"
	SourceWriter  = "writer"
	SourceSystem  = "system"
)

// Run phases, derived from event sources.
const (
	PhasePlanning    = "planning"
	PhaseResearching = "researching"
	PhaseWriting     = "writing"
)

// Event is a single frame on the client stream. Only protocol events leave
// the server; internal pipeline data is never passed through raw.
type Event struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	Ts              int64          `json:"ts"`
	RunID           string         `json:"run_id"`
	SessionID       string         `json:"session_id"`
	Source          string         `json:"source,omitempty"`
	Phase           string         `json:"phase,omitempty"`
	Content         string         `json:"content,omitempty"`
	Tool            string         `json:"tool,omitempty"`
	Input           map[string]any `json:"input,omitempty"`
	Output          string         `json:"output,omitempty"`
}

// NewEvent stamps a frame with protocol metadata and the current time.
func NewEvent(eventType, runID, sessionID string) Event {
	return Event{
		Type:            eventType,
		ProtocolVersion: ProtocolVersion,
		Ts:              time.Now().UnixMilli(),
		RunID:           runID,
		SessionID:       sessionID,
	}
}

// PhaseForSource maps a pipeline source to the user-visible phase. An empty
// string means the source does not drive phase transitions.
func PhaseForSource(source string) string {
	switch source {
	case SourceTriage, SourcePlanner:
		return PhasePlanning
	case SourceSurfer, SourceLeader, SourceIngest:
		return PhaseResearching
	case SourceWriter:
		return PhaseWriting
	default:
		return ""
	}
}
