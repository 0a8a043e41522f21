package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

type Chunk struct {
	Id             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId      uuid.UUID       `gorm:"type:uuid;not null;index"`
	Document       string          `gorm:"type:text"`
	EmbeddingValue pgvector.Vector `gorm:"type:vector(1024)"` // BAAI/bge-m3 uses 1024 dimensions
	SourceUrl      string          `gorm:"type:text"`
	ChunkIndex     int             `gorm:"default:0"` // 0-based index for ordering
	CreatedAt      time.Time       `gorm:"autoCreateTime"`
}

func (Chunk) TableName() string {
	return "research_chunks"
}
