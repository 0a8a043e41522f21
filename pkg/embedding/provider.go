package embedding

import (
	"context"
	"math"
)

// MaxBatchSize is the largest number of texts sent to a provider in one
// request. Providers split bigger inputs into sequential batches.
const MaxBatchSize = 50

// EmbeddingProvider generates dense vectors for text. Implementations must
// return unit-length vectors so cosine similarity can be computed as a plain
// dot product.
type EmbeddingProvider interface {
	Generate(ctx context.Context, text string) ([]float32, error)
	GenerateBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// NormalizeVector scales a vector to unit length. Cosine distance in pgvector
// requires normalized vectors (magnitude = 1).
func NormalizeVector(vec []float32) []float32 {
	var magnitude float64
	for _, v := range vec {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)

	if magnitude == 0 {
		return vec
	}

	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = float32(float64(v) / magnitude)
	}
	return normalized
}

// Batches splits texts into slices of at most MaxBatchSize.
func Batches(texts []string) [][]string {
	if len(texts) == 0 {
		return nil
	}
	batches := make([][]string, 0, (len(texts)+MaxBatchSize-1)/MaxBatchSize)
	for start := 0; start < len(texts); start += MaxBatchSize {
		end := start + MaxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, texts[start:end])
	}
	return batches
}
