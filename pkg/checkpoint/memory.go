package checkpoint

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps snapshots in process memory with a TTL. Suitable for
// single-instance deployments and tests.
type MemoryStore struct {
	cache *gocache.Cache
}

var _ Store = &MemoryStore{}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryStore{
		cache: gocache.New(ttl, 10*time.Minute),
	}
}

func (s *MemoryStore) Save(_ context.Context, snapshot Snapshot) error {
	s.cache.SetDefault(snapshot.SessionID, snapshot)
	return nil
}

func (s *MemoryStore) Load(_ context.Context, sessionID string) (*Snapshot, error) {
	raw, found := s.cache.Get(sessionID)
	if !found {
		return nil, ErrNotFound
	}
	snapshot := raw.(Snapshot)
	return &snapshot, nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.cache.Delete(sessionID)
	return nil
}

func (s *MemoryStore) Close() error {
	s.cache.Flush()
	return nil
}
