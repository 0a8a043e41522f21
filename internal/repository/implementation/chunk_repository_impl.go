package implementation

import (
	"context"

	"deep-research-be/internal/entity"
	"deep-research-be/internal/mapper"
	"deep-research-be/internal/model"
	"deep-research-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type ChunkRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChunkMapper
}

func NewChunkRepository(db *gorm.DB) contract.ChunkRepository {
	return &ChunkRepositoryImpl{
		db:     db,
		mapper: mapper.NewChunkMapper(),
	}
}

func (r *ChunkRepositoryImpl) CreateBulk(ctx context.Context, chunks []*entity.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	models := r.mapper.ToModels(chunks)

	if err := r.db.WithContext(ctx).Create(models).Error; err != nil {
		return err
	}

	// Update generated IDs back to entities
	for i, m := range models {
		*chunks[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

// SearchSimilarWithScore runs a coarse vector search within one session.
// Cosine distance in pgvector is: 1 - cosine_similarity
// So we compute: 1 - (embedding_value <=> query_vector) = cosine_similarity
func (r *ChunkRepositoryImpl) SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, sessionId uuid.UUID) ([]*contract.ScoredChunk, error) {
	if limit <= 0 {
		limit = 50
	}

	type result struct {
		model.Chunk
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	err := r.db.WithContext(ctx).
		Table("research_chunks").
		Select("research_chunks.*, 1 - (embedding_value <=> ?) as similarity", queryVector).
		Where("session_id = ?", sessionId).
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredChunk, len(results))
	for i, res := range results {
		scored[i] = &contract.ScoredChunk{
			Chunk:      r.mapper.ToEntity(&res.Chunk),
			Similarity: res.Similarity,
		}
	}
	return scored, nil
}

func (r *ChunkRepositoryImpl) CountBySessionId(ctx context.Context, sessionId uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Chunk{}).
		Where("session_id = ?", sessionId).
		Count(&count).Error
	return count, err
}

func (r *ChunkRepositoryImpl) DeleteBySessionId(ctx context.Context, sessionId uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("session_id = ?", sessionId).
		Delete(&model.Chunk{}).Error
}
