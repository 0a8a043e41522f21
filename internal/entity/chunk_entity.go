package entity

import (
	"time"

	"github.com/google/uuid"
)

// Chunk is one embedded slice of an ingested page, scoped to the research
// session that produced it.
type Chunk struct {
	Id             uuid.UUID
	SessionId      uuid.UUID
	Document       string
	EmbeddingValue []float32
	SourceUrl      string
	ChunkIndex     int
	CreatedAt      time.Time
}
