// Package store provides chunk persistence (SQLite) and vector storage (HNSW).
// This is the persistence layer for all indexed document data.
package store

import (
	"context"
	"fmt"
	"time"
)

// MaxChunkContent is the chunking policy's upper bound on chunk content length.
const MaxChunkContent = 1000

// ChunkMetadata carries presentation and provenance data for a chunk.
type ChunkMetadata struct {
	DocumentName string // Display name of the owning document
	OriginalName string // Name of the uploaded source file
	MimeType     string // Source MIME type (text/plain, text/markdown, ...)
	PageNumber   int    // 1-indexed page, 0 if unknown
	StartChar    int    // Offset into the extracted source text
	EndChar      int    // Exclusive end offset
}

// DocumentChunk is a contiguous slice of extracted document text, the
// unit of retrieval. Chunks are created in bulk at ingest time and are
// immutable thereafter; deleting a document cascades to its chunks.
type DocumentChunk struct {
	ID         string // Opaque unique identifier
	DocumentID string // Owning document reference
	Content    string // Bounded by MaxChunkContent
	ChunkIndex int    // Ordinal within the document, strictly increasing from 0
	Metadata   ChunkMetadata
	CreatedAt  time.Time
}

// ChunkStore persists document chunks and serves the lookups the search
// core needs. The core only reads chunks; writes happen at ingest time.
type ChunkStore interface {
	// SaveChunks stores chunks in bulk. Existing IDs are replaced.
	SaveChunks(ctx context.Context, chunks []*DocumentChunk) error

	// Match returns chunks whose content contains pattern,
	// case-insensitively. Results are capped by limit (<=0 means no cap).
	Match(ctx context.Context, pattern string, limit int) ([]*DocumentChunk, error)

	// ByID returns the chunk with the given id, or ErrChunkNotFound.
	ByID(ctx context.Context, id string) (*DocumentChunk, error)

	// ByDocumentID returns all chunks of a document ordered by ChunkIndex.
	ByDocumentID(ctx context.Context, documentID string) ([]*DocumentChunk, error)

	// DeleteDocument removes a document's chunks (cascade delete).
	DeleteDocument(ctx context.Context, documentID string) error

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// Close releases resources.
	Close() error
}

// ErrChunkNotFound is returned by ByID when no chunk matches.
var ErrChunkNotFound = fmt.Errorf("chunk not found")

// VectorResult is a single nearest-neighbor match.
type VectorResult struct {
	ID        string  // Chunk ID
	Distance  float32 // Lower is more similar (0-2 for cosine)
	Score     float32 // Normalized similarity (0-1), higher is better
	Namespace string  // Index partition the vector belongs to
}

// VectorStoreConfig configures the vector store.
type VectorStoreConfig struct {
	// Dimensions is the embedding vector dimension.
	Dimensions int

	// Metric is the distance metric: "cos" (cosine), "l2" (euclidean).
	Metric string

	// M is HNSW max connections per layer (default: 16).
	M int

	// EfSearch is HNSW query-time search width (default: 20).
	EfSearch int
}

// DefaultVectorStoreConfig returns sensible defaults for the vector store.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   20,
	}
}

// VectorStore provides nearest-neighbor search over chunk embeddings.
// Vectors are partitioned into namespaces (logical document collections);
// a search may be scoped to a namespace subset.
type VectorStore interface {
	// Add inserts vectors under a namespace. Existing IDs are replaced.
	Add(ctx context.Context, ids []string, vectors [][]float32, namespace string) error

	// Search finds the k nearest neighbors of query. An empty namespaces
	// slice searches all namespaces.
	Search(ctx context.Context, query []float32, k int, namespaces []string) ([]*VectorResult, error)

	// Delete removes vectors by ID.
	Delete(ctx context.Context, ids []string) error

	// Count returns the number of vectors.
	Count() int

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// ErrDimensionMismatch indicates an embedding dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
