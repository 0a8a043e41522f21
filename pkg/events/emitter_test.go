package events

import (
	"context"
	"strings"
	"testing"
	"time"
)

// collect drains frames from the subscription until it idles.
func collect(t *testing.T, ch <-chan Event, want int) []Event {
	t.Helper()
	var got []Event
	timeout := time.After(2 * time.Second)
	for len(got) < want {
		select {
		case event, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, event)
		case <-timeout:
			t.Fatalf("timed out after %d of %d frames", len(got), want)
		}
	}
	return got
}

func setup(t *testing.T) (*Emitter, <-chan Event) {
	t.Helper()
	bus := NewBus()
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ch, err := bus.Subscribe(ctx, "run-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	return NewEmitter(bus, "run-1", "session-1"), ch
}

func TestEmitterPhaseOncePerTransition(t *testing.T) {
	emitter, ch := setup(t)

	emitter.Token(SourceTriage, "hello")
	emitter.Token(SourceTriage, "again")
	emitter.ToolStart(SourceSurfer, "web_search", map[string]any{"query": "q"})
	emitter.Status(SourceLeader, "retrying")
	emitter.Token(SourceWriter, "report")

	// planning, token, token, researching, tool_start, status, writing, token
	frames := collect(t, ch, 8)

	var phases []string
	for _, f := range frames {
		if f.Type == TypePhase {
			phases = append(phases, f.Phase)
		}
	}
	want := []string{PhasePlanning, PhaseResearching, PhaseWriting}
	if len(phases) != len(want) {
		t.Fatalf("phases = %v, want %v", phases, want)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Errorf("phases[%d] = %q, want %q", i, phases[i], want[i])
		}
	}
}

func TestEmitterMasksTriageSentinels(t *testing.T) {
	emitter, ch := setup(t)

	emitter.Token(SourceTriage, "CALL_SWARM")

	// phase frame, then the masked status
	frames := collect(t, ch, 2)
	masked := frames[1]
	if masked.Type != TypeStatus {
		t.Fatalf("sentinel token must become a status frame, got %q", masked.Type)
	}
	if strings.Contains(masked.Content, "CALL_SWARM") {
		t.Error("sentinel leaked to the client")
	}
	if masked.Source != SourceSystem {
		t.Errorf("masked frame source = %q, want system", masked.Source)
	}
}

func TestEmitterWriterTokensPassThrough(t *testing.T) {
	emitter, ch := setup(t)

	// The sentinel masking applies to triage only; report text mentioning
	// a word like "task" must not be swallowed.
	emitter.Token(SourceWriter, `the "task" breakdown shows`)

	frames := collect(t, ch, 2)
	if frames[1].Type != TypeToken {
		t.Fatalf("writer token got masked: %v", frames[1].Type)
	}
}

func TestEmitterSkipsBlankTokens(t *testing.T) {
	emitter, ch := setup(t)

	emitter.Token(SourceWriter, "   ")
	emitter.Token(SourceWriter, "real")

	frames := collect(t, ch, 2) // phase + one token
	for _, f := range frames {
		if f.Type == TypeToken && strings.TrimSpace(f.Content) == "" {
			t.Error("blank token emitted")
		}
	}
}

func TestEmitterTruncatesToolOutput(t *testing.T) {
	emitter, ch := setup(t)

	long := strings.Repeat("x", 500)
	emitter.ToolEnd(SourceSurfer, "get_page_content", long)

	frames := collect(t, ch, 2) // phase + tool_end
	toolEnd := frames[1]
	if len([]rune(toolEnd.Output)) != maxToolOutputLen+3 {
		t.Errorf("output length = %d, want %d plus ellipsis", len([]rune(toolEnd.Output)), maxToolOutputLen)
	}
	if !strings.HasSuffix(toolEnd.Output, "...") {
		t.Error("truncated output must end with ellipsis")
	}
}

func TestEmitterDoneExactlyOnce(t *testing.T) {
	emitter, ch := setup(t)

	emitter.Done()
	emitter.Done()
	emitter.Done()
	emitter.Status(SourceSystem, "after done") // marker to prove dones stopped

	frames := collect(t, ch, 2)
	dones := 0
	for _, f := range frames {
		if f.Type == TypeDone {
			dones++
		}
	}
	if dones != 1 {
		t.Errorf("done frames = %d, want exactly 1", dones)
	}
}

func TestEventEnvelope(t *testing.T) {
	emitter, ch := setup(t)

	emitter.Status(SourceSystem, "hello")

	frames := collect(t, ch, 1)
	f := frames[0]
	if f.ProtocolVersion != ProtocolVersion {
		t.Errorf("protocol version = %q", f.ProtocolVersion)
	}
	if f.RunID != "run-1" || f.SessionID != "session-1" {
		t.Errorf("identity fields lost: run=%q session=%q", f.RunID, f.SessionID)
	}
	if f.Ts == 0 {
		t.Error("timestamp missing")
	}
}
