package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "research:checkpoint:"

// RedisStore persists snapshots in Redis so run progress survives process
// restarts and is visible across instances.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Store = &RedisStore{}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

func (s *RedisStore) Save(ctx context.Context, snapshot Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+snapshot.SessionID, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("save snapshot for session %s: %w", snapshot.SessionID, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (*Snapshot, error) {
	payload, err := s.client.Get(ctx, redisKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot for session %s: %w", sessionID, err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot for session %s: %w", sessionID, err)
	}
	return &snapshot, nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("delete snapshot for session %s: %w", sessionID, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
