package search

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jacc-ai/jacc-core/internal/provider"
	"github.com/jacc-ai/jacc-core/internal/store"
)

// DefaultVectorTopK is the neighbor count requested per query.
const DefaultVectorTopK = 20

// VectorEngine embeds the query and ranks chunks by similarity. Its
// failure semantics are deliberately soft: any provider or index failure
// logs and yields an empty result list, because the other strategies can
// still answer the query.
type VectorEngine struct {
	embedder provider.Embedder
	vectors  store.VectorStore
	chunks   store.ChunkStore
	logger   *slog.Logger
}

// NewVectorEngine creates a vector search engine.
func NewVectorEngine(embedder provider.Embedder, vectors store.VectorStore, chunks store.ChunkStore, logger *slog.Logger) (*VectorEngine, error) {
	if embedder == nil || vectors == nil || chunks == nil {
		return nil, ErrNilDependency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &VectorEngine{
		embedder: embedder,
		vectors:  vectors,
		chunks:   chunks,
		logger:   logger,
	}, nil
}

// Search returns up to topK similarity-scored results for the query.
// Never returns an error.
func (e *VectorEngine) Search(ctx context.Context, query string, topK int, namespaces []string) []SearchResult {
	if topK <= 0 {
		topK = DefaultVectorTopK
	}

	if !e.embedder.Available(ctx) {
		e.logger.Debug("embedder unavailable, skipping vector search")
		return nil
	}

	vec, err := e.embedder.Embed(ctx, query)
	if err != nil || len(vec) == 0 {
		e.logger.Warn("query embedding failed", slog.Any("error", err))
		return nil
	}

	neighbors, err := e.vectors.Search(ctx, vec, topK, namespaces)
	if err != nil {
		e.logger.Warn("vector index search failed", slog.Any("error", err))
		return nil
	}

	results := make([]SearchResult, 0, len(neighbors))
	for _, n := range neighbors {
		chunk, err := e.chunks.ByID(ctx, n.ID)
		if err != nil {
			if !errors.Is(err, store.ErrChunkNotFound) {
				e.logger.Warn("chunk lookup failed",
					slog.String("chunk_id", n.ID),
					slog.Any("error", err))
			}
			continue
		}
		score := float64(n.Score)
		results = append(results, SearchResult{
			ID:         chunk.ID,
			DocumentID: chunk.DocumentID,
			Content:    chunk.Content,
			Score:      score,
			Metadata: ResultMetadata{
				DocumentName:   chunk.Metadata.DocumentName,
				MimeType:       chunk.Metadata.MimeType,
				ChunkIndex:     chunk.ChunkIndex,
				MatchType:      MatchVector,
				RelevanceScore: score,
				SemanticMatch:  true,
			},
		})
	}
	return results
}
