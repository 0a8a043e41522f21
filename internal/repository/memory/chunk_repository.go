package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"deep-research-be/internal/entity"
	"deep-research-be/internal/repository/contract"

	"github.com/google/uuid"
)

// ChunkRepository is the in-process vector index used when no Postgres is
// configured. Brute-force scan per session; fine for the few hundred chunks
// a research run produces.
type ChunkRepository struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID][]*entity.Chunk
}

var _ contract.ChunkRepository = &ChunkRepository{}

func NewChunkRepository() *ChunkRepository {
	return &ChunkRepository{
		sessions: make(map[uuid.UUID][]*entity.Chunk),
	}
}

func (r *ChunkRepository) CreateBulk(_ context.Context, chunks []*entity.Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range chunks {
		if c.Id == uuid.Nil {
			c.Id = uuid.New()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now()
		}
		stored := *c
		r.sessions[c.SessionId] = append(r.sessions[c.SessionId], &stored)
	}
	return nil
}

func (r *ChunkRepository) SearchSimilarWithScore(_ context.Context, embedding []float32, limit int, sessionId uuid.UUID) ([]*contract.ScoredChunk, error) {
	if limit <= 0 {
		limit = 50
	}

	r.mu.RLock()
	chunks := r.sessions[sessionId]
	scored := make([]*contract.ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		scored = append(scored, &contract.ScoredChunk{
			Chunk:      c,
			Similarity: cosineSimilarity(embedding, c.EmbeddingValue),
		})
	}
	r.mu.RUnlock()

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func (r *ChunkRepository) CountBySessionId(_ context.Context, sessionId uuid.UUID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.sessions[sessionId])), nil
}

func (r *ChunkRepository) DeleteBySessionId(_ context.Context, sessionId uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionId)
	return nil
}

// cosineSimilarity on raw vectors. Stored vectors are normalized at embed
// time, but the full formula keeps results correct even if one is not.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
