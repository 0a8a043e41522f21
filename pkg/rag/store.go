package rag

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"deep-research-be/internal/entity"
	"deep-research-be/internal/pkg/logger"
	"deep-research-be/internal/repository/contract"
	"deep-research-be/pkg/embedding"
	"deep-research-be/pkg/rerank"
	"deep-research-be/pkg/utils"

	"github.com/google/uuid"
)

// NoResultsNotice is returned by FormatResults when a query matched nothing.
// An empty store is a valid outcome, not an error.
const NoResultsNotice = "No relevant content found in the knowledge store."

// Config holds the retrieval tunables.
type Config struct {
	ChunkSize       int     // target chunk length, runes
	ChunkOverlap    int     // runes carried between neighbouring chunks
	MinCommitLength int     // texts shorter than this are never committed
	RetrieveK       int     // coarse vector candidates per query
	FinalK          int     // results returned after reranking
	ScoreThreshold  float64 // minimum rerank score to keep a result
}

func DefaultConfig() Config {
	return Config{
		ChunkSize:       1200,
		ChunkOverlap:    250,
		MinCommitLength: 200,
		RetrieveK:       50,
		FinalK:          6,
		ScoreThreshold:  0.7,
	}
}

// RetrievalResult is one reranked chunk produced per query, never persisted.
type RetrievalResult struct {
	Content   string
	SourceUrl string
	Score     float64
}

// Store is the session-scoped retrieval engine: commit chunks and embeds
// cleaned text, Query runs coarse vector search then reranking, Purge drops
// one session's partition. Safe for concurrent use across sessions.
type Store struct {
	chunks   contract.ChunkRepository
	embedder embedding.EmbeddingProvider
	reranker rerank.Reranker
	config   Config
	log      logger.ILogger
}

func NewStore(
	chunks contract.ChunkRepository,
	embedder embedding.EmbeddingProvider,
	reranker rerank.Reranker,
	log logger.ILogger,
	config Config,
) *Store {
	return &Store{
		chunks:   chunks,
		embedder: embedder,
		reranker: reranker,
		config:   config,
		log:      log,
	}
}

// Commit chunks, embeds and stores one document under the session. It
// returns the number of chunks written; zero with a nil error means the text
// was below the commit threshold and skipped.
func (s *Store) Commit(ctx context.Context, sessionId uuid.UUID, text string, sourceUrl string) (int, error) {
	if utf8.RuneCountInString(text) < s.config.MinCommitLength {
		s.log.Warn("rag", "content too short, skipping commit", map[string]interface{}{
			"session_id": sessionId.String(),
			"source_url": sourceUrl,
			"length":     utf8.RuneCountInString(text),
		})
		return 0, nil
	}

	pieces := utils.SplitText(text, s.config.ChunkSize, s.config.ChunkOverlap)

	vectors, err := s.embedder.GenerateBatch(ctx, pieces)
	if err != nil {
		return 0, fmt.Errorf("embed %d chunks: %w", len(pieces), err)
	}

	chunks := make([]*entity.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = &entity.Chunk{
			Id:             uuid.New(),
			SessionId:      sessionId,
			Document:       piece,
			EmbeddingValue: vectors[i],
			SourceUrl:      sourceUrl,
			ChunkIndex:     i,
			CreatedAt:      time.Now(),
		}
	}

	if err := s.chunks.CreateBulk(ctx, chunks); err != nil {
		return 0, fmt.Errorf("store %d chunks: %w", len(chunks), err)
	}

	s.log.Info("rag", "document committed", map[string]interface{}{
		"session_id": sessionId.String(),
		"source_url": sourceUrl,
		"chunks":     len(chunks),
	})
	return len(chunks), nil
}

// Query runs the two-phase retrieval: coarse vector search within the
// session, then reranking against the topic with a score floor. An empty
// slice is a valid "nothing relevant" outcome.
func (s *Store) Query(ctx context.Context, sessionId uuid.UUID, topic string, k int) ([]RetrievalResult, error) {
	if k <= 0 {
		k = s.config.FinalK
	}

	queryVector, err := s.embedder.Generate(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates, err := s.chunks.SearchSimilarWithScore(ctx, queryVector, s.config.RetrieveK, sessionId)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	documents := make([]string, len(candidates))
	for i, c := range candidates {
		documents[i] = c.Chunk.Document
	}

	ranked, err := s.reranker.Rerank(ctx, topic, documents)
	if err != nil {
		// Degrade to vector order rather than losing the whole query.
		s.log.Warn("rag", "rerank failed, falling back to vector similarity", map[string]interface{}{
			"session_id": sessionId.String(),
			"error":      err.Error(),
		})
		ranked = make([]rerank.Result, len(candidates))
		for i, c := range candidates {
			ranked[i] = rerank.Result{Index: i, Score: c.Similarity}
		}
	}

	results := make([]RetrievalResult, 0, k)
	for _, r := range ranked {
		if r.Score < s.config.ScoreThreshold {
			continue
		}
		chunk := candidates[r.Index].Chunk
		results = append(results, RetrievalResult{
			Content:   chunk.Document,
			SourceUrl: chunk.SourceUrl,
			Score:     r.Score,
		})
		if len(results) >= k {
			break
		}
	}
	return results, nil
}

// Purge removes every chunk the session committed. Other sessions are
// untouched.
func (s *Store) Purge(ctx context.Context, sessionId uuid.UUID) error {
	if err := s.chunks.DeleteBySessionId(ctx, sessionId); err != nil {
		return fmt.Errorf("purge session %s: %w", sessionId, err)
	}
	s.log.Info("rag", "session partition purged", map[string]interface{}{
		"session_id": sessionId.String(),
	})
	return nil
}

// Count reports how many chunks the session holds.
func (s *Store) Count(ctx context.Context, sessionId uuid.UUID) (int64, error) {
	return s.chunks.CountBySessionId(ctx, sessionId)
}

// FormatResults renders retrieval results for prompt assembly, each block
// tagged with its source and confidence.
func FormatResults(results []RetrievalResult) string {
	if len(results) == 0 {
		return NoResultsNotice
	}
	blocks := make([]string, len(results))
	for i, r := range results {
		source := r.SourceUrl
		if source == "" {
			source = "unknown"
		}
		blocks[i] = fmt.Sprintf("[source: %s | confidence: %.2f]\n%s", source, r.Score, r.Content)
	}
	return strings.Join(blocks, "\n\n---\n\n")
}
