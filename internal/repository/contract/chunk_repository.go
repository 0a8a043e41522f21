package contract

import (
	"context"

	"deep-research-be/internal/entity"

	"github.com/google/uuid"
)

// ScoredChunk wraps a Chunk with its cosine similarity to the query vector
type ScoredChunk struct {
	Chunk      *entity.Chunk
	Similarity float64 // 0.0 to 1.0 (1.0 = identical)
}

// ChunkRepository stores session-scoped embedded chunks. Every read and
// delete is keyed by session so concurrent runs never leak into each other.
type ChunkRepository interface {
	CreateBulk(ctx context.Context, chunks []*entity.Chunk) error
	// SearchSimilarWithScore returns the session's chunks nearest to the
	// query vector, best first.
	SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, sessionId uuid.UUID) ([]*ScoredChunk, error)
	CountBySessionId(ctx context.Context, sessionId uuid.UUID) (int64, error)
	DeleteBySessionId(ctx context.Context, sessionId uuid.UUID) error
}
