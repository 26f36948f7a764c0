// Package ingest loads plain-text and markdown documents into the chunk
// store and the vector index.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jacc-ai/jacc-core/internal/chunk"
	"github.com/jacc-ai/jacc-core/internal/provider"
	"github.com/jacc-ai/jacc-core/internal/store"
)

// Supported source extensions and their mime types.
var mimeTypes = map[string]string{
	".txt":      "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
}

// Ingestor turns source files into indexed chunks. Embedding is best
// effort: without a usable embedder the chunks are still stored and the
// keyword passes can search them.
type Ingestor struct {
	chunker  *chunk.SentenceChunker
	chunks   store.ChunkStore
	vectors  store.VectorStore
	embedder provider.Embedder
	logger   *slog.Logger
}

// New creates an ingestor. vectors and embedder may be nil for a
// keyword-only index.
func New(chunker *chunk.SentenceChunker, chunks store.ChunkStore, vectors store.VectorStore, embedder provider.Embedder, logger *slog.Logger) (*Ingestor, error) {
	if chunker == nil || chunks == nil {
		return nil, fmt.Errorf("nil dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		chunker:  chunker,
		chunks:   chunks,
		vectors:  vectors,
		embedder: embedder,
		logger:   logger,
	}, nil
}

// DocumentID derives a stable document identifier from the source path,
// so re-ingesting a changed file replaces its previous chunks.
func DocumentID(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	sum := sha256.Sum256([]byte(abs))
	return hex.EncodeToString(sum[:8])
}

// Supported reports whether the file extension is ingestable.
func Supported(path string) bool {
	_, ok := mimeTypes[strings.ToLower(filepath.Ext(path))]
	return ok
}

// IngestFile loads one file, replacing any chunks from a previous ingest
// of the same path. Returns the chunk count.
func (in *Ingestor) IngestFile(ctx context.Context, path, namespace string) (int, error) {
	mime, ok := mimeTypes[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return 0, fmt.Errorf("unsupported file type: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}

	docID := DocumentID(path)
	if err := in.RemoveDocument(ctx, docID); err != nil {
		return 0, err
	}

	chunks := in.chunker.Chunk(chunk.Document{
		ID:           docID,
		Name:         strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		OriginalName: filepath.Base(path),
		MimeType:     mime,
		Content:      string(data),
	})
	if len(chunks) == 0 {
		return 0, nil
	}

	ptrs := make([]*store.DocumentChunk, len(chunks))
	for i := range chunks {
		ptrs[i] = &chunks[i]
	}
	if err := in.chunks.SaveChunks(ctx, ptrs); err != nil {
		return 0, fmt.Errorf("save chunks for %s: %w", path, err)
	}

	in.embedChunks(ctx, ptrs, namespace)

	in.logger.Info("document ingested",
		slog.String("path", path),
		slog.String("document_id", docID),
		slog.Int("chunks", len(chunks)))
	return len(chunks), nil
}

// embedChunks adds chunk vectors to the index. Failures are logged and
// absorbed; the chunks remain keyword-searchable.
func (in *Ingestor) embedChunks(ctx context.Context, chunks []*store.DocumentChunk, namespace string) {
	if in.vectors == nil || in.embedder == nil || !in.embedder.Available(ctx) {
		return
	}

	texts := make([]string, len(chunks))
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
		ids[i] = c.ID
	}

	vecs, err := in.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		in.logger.Warn("chunk embedding failed, index stays keyword-only for this document",
			slog.Any("error", err))
		return
	}
	if err := in.vectors.Add(ctx, ids, vecs, namespace); err != nil {
		in.logger.Warn("vector index update failed", slog.Any("error", err))
	}
}

// RemoveDocument drops a document's chunks and vectors.
func (in *Ingestor) RemoveDocument(ctx context.Context, docID string) error {
	old, err := in.chunks.ByDocumentID(ctx, docID)
	if err != nil {
		return fmt.Errorf("lookup document %s: %w", docID, err)
	}
	if len(old) == 0 {
		return nil
	}

	if in.vectors != nil {
		ids := make([]string, len(old))
		for i, c := range old {
			ids[i] = c.ID
		}
		if err := in.vectors.Delete(ctx, ids); err != nil {
			in.logger.Warn("vector delete failed", slog.Any("error", err))
		}
	}
	return in.chunks.DeleteDocument(ctx, docID)
}

// IngestDir walks a directory tree and ingests every supported file.
// Per-file failures are logged and skipped; the walk continues.
func (in *Ingestor) IngestDir(ctx context.Context, dir, namespace string) (files, totalChunks int, err error) {
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if !Supported(path) {
			return nil
		}

		n, ferr := in.IngestFile(ctx, path, namespace)
		if ferr != nil {
			in.logger.Warn("skipping file", slog.String("path", path), slog.Any("error", ferr))
			return nil
		}
		files++
		totalChunks += n
		return nil
	})
	return files, totalChunks, err
}
