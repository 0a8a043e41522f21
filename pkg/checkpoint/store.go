package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var ErrNotFound = errors.New("checkpoint: snapshot not found")

// Snapshot captures a run's progress at a phase boundary so an operator can
// inspect stalled runs and a restarted worker can resume bookkeeping.
type Snapshot struct {
	RunID     string          `json:"run_id"`
	SessionID string          `json:"session_id"`
	Phase     string          `json:"phase"`
	SavedAt   time.Time       `json:"saved_at"`
	State     json.RawMessage `json:"state,omitempty"`
}

// Store persists the latest snapshot per session. Implementations overwrite
// on Save; history is not kept.
type Store interface {
	Save(ctx context.Context, snapshot Snapshot) error
	Load(ctx context.Context, sessionID string) (*Snapshot, error)
	Delete(ctx context.Context, sessionID string) error
	Close() error
}
