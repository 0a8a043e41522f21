package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"deep-research-be/internal/pkg/logger"
	"deep-research-be/internal/repository/memory"
	"deep-research-be/pkg/agent/planner"
	"deep-research-be/pkg/agent/researcher"
	"deep-research-be/pkg/agent/triage"
	"deep-research-be/pkg/agent/writer"
	"deep-research-be/pkg/checkpoint"
	"deep-research-be/pkg/events"
	"deep-research-be/pkg/llm"
	"deep-research-be/pkg/nats"
	"deep-research-be/pkg/rag"
	"deep-research-be/pkg/store"
	"deep-research-be/pkg/tools"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

const (
	// Per-session admission: 6 runs per rolling hour.
	sessionRequestLimit  = 6
	sessionRequestWindow = time.Hour

	// Global admission: at most 5 runs executing at once.
	maxConcurrentRuns = 5
)

var (
	ErrRateLimited = errors.New("session has reached its hourly request limit")
	ErrBusy        = errors.New("research capacity exhausted, try again shortly")
)

// RunHandle is what the transport layer needs to stream a run: the event
// channel is subscribed before the run starts, so no frame is lost, and
// Cancel stops the run when the client goes away.
type RunHandle struct {
	RunID      string
	SessionID  string
	NewSession bool
	Events     <-chan events.Event
	Cancel     context.CancelFunc
}

type IResearchService interface {
	StartRun(sessionId string, query string) (*RunHandle, error)
}

type researchService struct {
	triage   *triage.Triage
	planner  *planner.Planner
	pipeline *researcher.Pipeline
	writer   *writer.Writer

	sessions    *memory.SessionRepository
	ragStore    *rag.Store
	bus         *events.Bus
	checkpoints checkpoint.Store
	completions *nats.Publisher
	admission   *semaphore.Weighted
	log         logger.ILogger
}

func NewResearchService(
	llmProvider llm.LLMProvider,
	ragStore *rag.Store,
	sessions *memory.SessionRepository,
	bus *events.Bus,
	checkpoints checkpoint.Store,
	completions *nats.Publisher,
	gateway tools.Gateway,
	log logger.ILogger,
) IResearchService {
	surfer := researcher.NewSurfer(llmProvider, log)
	filter := researcher.NewFilter(ragStore, log)
	leader := researcher.NewLeader(log)

	return &researchService{
		triage:      triage.NewTriage(llmProvider, log),
		planner:     planner.NewPlanner(llmProvider, log),
		pipeline:    researcher.NewPipeline(surfer, filter, leader, gateway, log),
		writer:      writer.NewWriter(llmProvider, ragStore, log),
		sessions:    sessions,
		ragStore:    ragStore,
		bus:         bus,
		checkpoints: checkpoints,
		completions: completions,
		admission:   semaphore.NewWeighted(maxConcurrentRuns),
		log:         log,
	}
}

// StartRun admits the request, subscribes the caller to the run's event
// stream and launches the run in the background.
func (s *researchService) StartRun(sessionId string, query string) (*RunHandle, error) {
	newSession := false
	if sessionId == "" {
		sessionId = uuid.NewString()
		newSession = true
	}

	if !s.sessions.AllowRequest(sessionId, sessionRequestLimit, sessionRequestWindow) {
		return nil, ErrRateLimited
	}
	if !s.admission.TryAcquire(1) {
		return nil, ErrBusy
	}

	runID := uuid.NewString()
	runCtx, cancel := context.WithCancel(context.Background())

	eventCh, err := s.bus.Subscribe(runCtx, runID)
	if err != nil {
		s.admission.Release(1)
		cancel()
		return nil, fmt.Errorf("failed to subscribe to run events: %w", err)
	}

	emitter := events.NewEmitter(s.bus, runID, sessionId)
	go s.run(runCtx, emitter, sessionId, query)

	return &RunHandle{
		RunID:      runID,
		SessionID:  sessionId,
		NewSession: newSession,
		Events:     eventCh,
		Cancel:     cancel,
	}, nil
}

func (s *researchService) run(ctx context.Context, emitter *events.Emitter, sessionId string, query string) {
	// LIFO: the admission slot frees before the done frame reaches the
	// client, so a caller reacting to done can start a new run immediately.
	defer emitter.Done()
	defer s.admission.Release(1)

	priorMessages := s.sessions.BeginRun(sessionId, query)

	sessionUUID, err := uuid.Parse(sessionId)
	if err != nil {
		// Session ids are always UUIDs; anything else never reaches storage.
		sessionUUID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(sessionId))
	}

	// The session's retrieval partition only lives for the duration of the
	// run, whatever the outcome.
	defer func() {
		if err := s.ragStore.Purge(context.Background(), sessionUUID); err != nil {
			s.log.Error("research", "failed to purge session partition", map[string]interface{}{
				"session_id": sessionId,
				"error":      err.Error(),
			})
		}
	}()

	s.saveCheckpoint(emitter.RunID(), sessionId, events.PhasePlanning, nil)

	result := s.triage.Classify(ctx, query, priorMessages, emitter)
	if result.Route == triage.RouteConversational {
		s.sessions.AppendTurns(sessionId,
			store.Message{Role: "user", Content: query},
			store.Message{Role: "assistant", Content: result.Reply},
		)
		s.deleteCheckpoint(sessionId)
		return
	}

	tasks := s.planner.Decompose(ctx, query)
	emitter.Status(events.SourcePlanner, fmt.Sprintf("Research plan ready: %d tasks.", len(tasks)))
	s.log.Info("research", "query decomposed", map[string]interface{}{
		"run_id": emitter.RunID(),
		"tasks":  tasks,
	})

	s.saveCheckpoint(emitter.RunID(), sessionId, events.PhaseResearching, map[string]interface{}{"tasks": tasks})

	units := make([]*researcher.Unit, len(tasks))
	var wg sync.WaitGroup
	for i, task := range tasks {
		unit := researcher.NewUnit(task, i+1)
		units[i] = unit
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.pipeline.Run(ctx, sessionUUID, unit, emitter)
		}()
	}
	wg.Wait()

	succeeded, exhausted := 0, 0
	for _, unit := range units {
		switch unit.State {
		case researcher.StateSucceeded:
			succeeded++
		default:
			exhausted++
		}
	}

	if ctx.Err() != nil {
		s.log.Warn("research", "run cancelled before synthesis", map[string]interface{}{
			"run_id": emitter.RunID(),
		})
		s.publishCompletion(nats.SubjectSessionFailed, emitter.RunID(), sessionId, query, len(tasks), succeeded, exhausted, "cancelled")
		s.deleteCheckpoint(sessionId)
		return
	}

	s.saveCheckpoint(emitter.RunID(), sessionId, events.PhaseWriting, map[string]interface{}{
		"succeeded": succeeded,
		"exhausted": exhausted,
	})

	report, err := s.writer.Compose(ctx, sessionUUID, query, tasks, priorMessages, func(token string) {
		emitter.Token(events.SourceWriter, token)
	})
	if err != nil {
		s.log.Error("research", "report synthesis failed", map[string]interface{}{
			"run_id": emitter.RunID(),
			"error":  err.Error(),
		})
		emitter.Error(events.SourceWriter, "Report synthesis failed. Partial research results were discarded.")
		s.publishCompletion(nats.SubjectSessionFailed, emitter.RunID(), sessionId, query, len(tasks), succeeded, exhausted, err.Error())
		s.deleteCheckpoint(sessionId)
		return
	}

	s.sessions.AppendTurns(sessionId,
		store.Message{Role: "user", Content: query},
		store.Message{Role: "assistant", Content: report},
	)

	s.publishCompletion(nats.SubjectSessionCompleted, emitter.RunID(), sessionId, query, len(tasks), succeeded, exhausted, "")
	s.deleteCheckpoint(sessionId)
}

func (s *researchService) saveCheckpoint(runID string, sessionId string, phase string, state map[string]interface{}) {
	var raw json.RawMessage
	if state != nil {
		if encoded, err := json.Marshal(state); err == nil {
			raw = encoded
		}
	}
	err := s.checkpoints.Save(context.Background(), checkpoint.Snapshot{
		RunID:     runID,
		SessionID: sessionId,
		Phase:     phase,
		SavedAt:   time.Now().UTC(),
		State:     raw,
	})
	if err != nil {
		s.log.Warn("research", "checkpoint save failed", map[string]interface{}{
			"run_id": runID,
			"phase":  phase,
			"error":  err.Error(),
		})
	}
}

func (s *researchService) deleteCheckpoint(sessionId string) {
	if err := s.checkpoints.Delete(context.Background(), sessionId); err != nil && !errors.Is(err, checkpoint.ErrNotFound) {
		s.log.Warn("research", "checkpoint delete failed", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
	}
}

func (s *researchService) publishCompletion(subject string, runID, sessionId, query string, taskCount, succeeded, exhausted int, errMsg string) {
	event := nats.CompletionEvent{
		RunID:      runID,
		SessionID:  sessionId,
		Query:      strings.TrimSpace(query),
		TaskCount:  taskCount,
		Succeeded:  succeeded,
		Exhausted:  exhausted,
		Error:      errMsg,
		FinishedAt: time.Now().UTC(),
	}
	if err := s.completions.Publish(context.Background(), subject, event); err != nil {
		s.log.Warn("research", "completion event publish failed", map[string]interface{}{
			"run_id": runID,
			"error":  err.Error(),
		})
	}
}
