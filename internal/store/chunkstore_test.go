package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkStoreUnderTest runs the same contract against every ChunkStore
// implementation.
func chunkStoreUnderTest(t *testing.T) map[string]ChunkStore {
	t.Helper()

	sqlite, err := NewSQLiteChunkStore(filepath.Join(t.TempDir(), "chunks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]ChunkStore{
		"memory": NewMemoryChunkStore(),
		"sqlite": sqlite,
	}
}

func storeChunk(id, docID, content string, idx int) *DocumentChunk {
	return &DocumentChunk{
		ID:         id,
		DocumentID: docID,
		Content:    content,
		ChunkIndex: idx,
		Metadata: ChunkMetadata{
			DocumentName: docID + ".md",
			OriginalName: docID + ".md",
			MimeType:     "text/markdown",
		},
	}
}

func TestChunkStore_SaveAndByID(t *testing.T) {
	for name, s := range chunkStoreUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.SaveChunks(ctx, []*DocumentChunk{
				storeChunk("c1", "doc1", "Clearent support hours", 0),
			}))

			got, err := s.ByID(ctx, "c1")
			require.NoError(t, err)
			assert.Equal(t, "doc1", got.DocumentID)
			assert.Equal(t, "Clearent support hours", got.Content)
			assert.Equal(t, "doc1.md", got.Metadata.DocumentName)
		})
	}
}

func TestChunkStore_ByIDNotFound(t *testing.T) {
	for name, s := range chunkStoreUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.ByID(context.Background(), "missing")
			assert.ErrorIs(t, err, ErrChunkNotFound)
		})
	}
}

func TestChunkStore_SaveReplacesExistingIDs(t *testing.T) {
	for name, s := range chunkStoreUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.SaveChunks(ctx, []*DocumentChunk{
				storeChunk("c1", "doc1", "old content", 0),
			}))
			require.NoError(t, s.SaveChunks(ctx, []*DocumentChunk{
				storeChunk("c1", "doc1", "new content", 0),
			}))

			got, err := s.ByID(ctx, "c1")
			require.NoError(t, err)
			assert.Equal(t, "new content", got.Content)

			n, err := s.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestChunkStore_MatchCaseInsensitive(t *testing.T) {
	for name, s := range chunkStoreUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.SaveChunks(ctx, []*DocumentChunk{
				storeChunk("c1", "doc1", "Clearent SUPPORT hours are 24/7.", 0),
				storeChunk("c2", "doc2", "TracerPay settlement details.", 0),
			}))

			got, err := s.Match(ctx, "clearent support", 10)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "c1", got[0].ID)
		})
	}
}

func TestChunkStore_MatchHonorsLimit(t *testing.T) {
	for name, s := range chunkStoreUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			chunks := make([]*DocumentChunk, 6)
			for i := range chunks {
				chunks[i] = storeChunk(
					string(rune('a'+i)), "doc1", "shared phrase in every chunk", i)
			}
			require.NoError(t, s.SaveChunks(ctx, chunks))

			got, err := s.Match(ctx, "shared phrase", 4)
			require.NoError(t, err)
			assert.Len(t, got, 4)
		})
	}
}

func TestChunkStore_MatchEmptyPattern(t *testing.T) {
	for name, s := range chunkStoreUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			got, err := s.Match(context.Background(), "   ", 10)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestChunkStore_MatchLiteralWildcards(t *testing.T) {
	// LIKE metacharacters in a query must match literally.
	for name, s := range chunkStoreUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.SaveChunks(ctx, []*DocumentChunk{
				storeChunk("c1", "doc1", "Qualified rate is 2.9% plus fees", 0),
				storeChunk("c2", "doc2", "Qualified rate is 299 basis points", 0),
			}))

			got, err := s.Match(ctx, "2.9%", 10)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "c1", got[0].ID)
		})
	}
}

func TestChunkStore_ByDocumentIDOrdered(t *testing.T) {
	for name, s := range chunkStoreUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.SaveChunks(ctx, []*DocumentChunk{
				storeChunk("c3", "doc1", "third", 2),
				storeChunk("c1", "doc1", "first", 0),
				storeChunk("c2", "doc1", "second", 1),
				storeChunk("x1", "doc2", "other doc", 0),
			}))

			got, err := s.ByDocumentID(ctx, "doc1")
			require.NoError(t, err)
			require.Len(t, got, 3)
			for i, c := range got {
				assert.Equal(t, i, c.ChunkIndex)
			}
		})
	}
}

func TestChunkStore_DeleteDocumentCascades(t *testing.T) {
	for name, s := range chunkStoreUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.SaveChunks(ctx, []*DocumentChunk{
				storeChunk("c1", "doc1", "a", 0),
				storeChunk("c2", "doc1", "b", 1),
				storeChunk("x1", "doc2", "c", 0),
			}))

			require.NoError(t, s.DeleteDocument(ctx, "doc1"))

			n, err := s.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
			_, err = s.ByID(ctx, "c1")
			assert.ErrorIs(t, err, ErrChunkNotFound)
		})
	}
}

func TestSQLiteChunkStore_ClosedStoreErrors(t *testing.T) {
	s, err := NewSQLiteChunkStore(filepath.Join(t.TempDir(), "chunks.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Match(context.Background(), "anything", 10)
	assert.Error(t, err)
	// Closing twice is fine.
	assert.NoError(t, s.Close())
}

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"plain", "plain"},
		{"100%", `100\%`},
		{"under_score", `under\_score`},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, escapeLike(tt.input))
	}
}
