package mapper

import (
	"deep-research-be/internal/entity"
	"deep-research-be/internal/model"

	"github.com/pgvector/pgvector-go"
)

type ChunkMapper struct{}

func NewChunkMapper() *ChunkMapper {
	return &ChunkMapper{}
}

func (m *ChunkMapper) ToEntity(c *model.Chunk) *entity.Chunk {
	if c == nil {
		return nil
	}
	return &entity.Chunk{
		Id:             c.Id,
		SessionId:      c.SessionId,
		Document:       c.Document,
		EmbeddingValue: c.EmbeddingValue.Slice(),
		SourceUrl:      c.SourceUrl,
		ChunkIndex:     c.ChunkIndex,
		CreatedAt:      c.CreatedAt,
	}
}

func (m *ChunkMapper) ToModel(c *entity.Chunk) *model.Chunk {
	if c == nil {
		return nil
	}
	return &model.Chunk{
		Id:             c.Id,
		SessionId:      c.SessionId,
		Document:       c.Document,
		EmbeddingValue: pgvector.NewVector(c.EmbeddingValue),
		SourceUrl:      c.SourceUrl,
		ChunkIndex:     c.ChunkIndex,
		CreatedAt:      c.CreatedAt,
	}
}

func (m *ChunkMapper) ToEntities(chunks []*model.Chunk) []*entity.Chunk {
	entities := make([]*entity.Chunk, len(chunks))
	for i, c := range chunks {
		entities[i] = m.ToEntity(c)
	}
	return entities
}

func (m *ChunkMapper) ToModels(chunks []*entity.Chunk) []*model.Chunk {
	models := make([]*model.Chunk, len(chunks))
	for i, c := range chunks {
		models[i] = m.ToModel(c)
	}
	return models
}
