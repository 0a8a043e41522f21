package memory

import (
	"sync"
	"time"

	"deep-research-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

// SessionRepository keeps active session state in process memory. Sessions
// expire after inactivity; a restart clears them, which also resets rate
// limit counters.
type SessionRepository struct {
	cache *cache.Cache

	// guards read-modify-write cycles like the rate limit check
	mu sync.Mutex
}

func NewSessionRepository(ttl time.Duration) *SessionRepository {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	c := cache.New(ttl, 10*time.Minute)
	return &SessionRepository{
		cache: c,
	}
}

func (r *SessionRepository) Save(session *store.Session) {
	r.cache.Set(session.ID, session, cache.DefaultExpiration)
}

func (r *SessionRepository) Get(sessionID string) (*store.Session, bool) {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*store.Session), true
	}
	return nil, false
}

// GetOrCreate returns the existing session or registers a fresh one.
func (r *SessionRepository) GetOrCreate(sessionID string) *store.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getOrCreateLocked(sessionID)
}

func (r *SessionRepository) getOrCreateLocked(sessionID string) *store.Session {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*store.Session)
	}
	session := store.NewSession(sessionID)
	r.cache.Set(sessionID, session, cache.DefaultExpiration)
	return session
}

// BeginRun records the query on the session and returns a snapshot of its
// conversation history. Concurrent runs of one session only ever receive
// copies; the live session is mutated under the repository lock.
func (r *SessionRepository) BeginRun(sessionID string, query string) []store.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	session := r.getOrCreateLocked(sessionID)
	session.LastQuery = query
	history := make([]store.Message, len(session.Messages))
	copy(history, session.Messages)
	r.cache.Set(sessionID, session, cache.DefaultExpiration)
	return history
}

// AppendTurns adds finished conversation turns to the session transcript
// under the repository lock.
func (r *SessionRepository) AppendTurns(sessionID string, turns ...store.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session := r.getOrCreateLocked(sessionID)
	for _, turn := range turns {
		session.Append(turn.Role, turn.Content)
	}
	r.cache.Set(sessionID, session, cache.DefaultExpiration)
}

func (r *SessionRepository) Delete(sessionID string) {
	r.cache.Delete(sessionID)
}

// AllowRequest enforces a rolling-window rate limit per session. It records
// the request when allowed and leaves the log untouched when rejected.
func (r *SessionRepository) AllowRequest(sessionID string, limit int, window time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	var session *store.Session
	if x, found := r.cache.Get(sessionID); found {
		session = x.(*store.Session)
	} else {
		session = store.NewSession(sessionID)
	}

	now := time.Now()
	recent := session.RequestLog[:0]
	for _, t := range session.RequestLog {
		if now.Sub(t) < window {
			recent = append(recent, t)
		}
	}
	session.RequestLog = recent

	if len(session.RequestLog) >= limit {
		r.cache.Set(sessionID, session, cache.DefaultExpiration)
		return false
	}

	session.RequestLog = append(session.RequestLog, now)
	r.cache.Set(sessionID, session, cache.DefaultExpiration)
	return true
}
