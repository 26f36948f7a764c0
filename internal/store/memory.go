package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryChunkStore is an in-memory ChunkStore for tests and small corpora.
type MemoryChunkStore struct {
	mu     sync.RWMutex
	chunks map[string]*DocumentChunk
}

// NewMemoryChunkStore creates an empty in-memory chunk store.
func NewMemoryChunkStore() *MemoryChunkStore {
	return &MemoryChunkStore{chunks: make(map[string]*DocumentChunk)}
}

// SaveChunks stores chunks. Existing IDs are replaced.
func (m *MemoryChunkStore) SaveChunks(ctx context.Context, chunks []*DocumentChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		cc := *c
		m.chunks[c.ID] = &cc
	}
	return nil
}

// Match returns chunks containing pattern, case-insensitively.
// Results are ordered by (document, chunk index) for determinism.
func (m *MemoryChunkStore) Match(ctx context.Context, pattern string, limit int) ([]*DocumentChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if pattern == "" {
		return []*DocumentChunk{}, nil
	}

	var results []*DocumentChunk
	for _, c := range m.chunks {
		if strings.Contains(strings.ToLower(c.Content), pattern) {
			results = append(results, c)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].DocumentID != results[j].DocumentID {
			return results[i].DocumentID < results[j].DocumentID
		}
		return results[i].ChunkIndex < results[j].ChunkIndex
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	if results == nil {
		results = []*DocumentChunk{}
	}
	return results, nil
}

// ByID returns a chunk by id or ErrChunkNotFound.
func (m *MemoryChunkStore) ByID(ctx context.Context, id string) (*DocumentChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chunks[id]
	if !ok {
		return nil, ErrChunkNotFound
	}
	return c, nil
}

// ByDocumentID returns a document's chunks ordered by ChunkIndex.
func (m *MemoryChunkStore) ByDocumentID(ctx context.Context, documentID string) ([]*DocumentChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := []*DocumentChunk{}
	for _, c := range m.chunks {
		if c.DocumentID == documentID {
			results = append(results, c)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].ChunkIndex < results[j].ChunkIndex
	})
	return results, nil
}

// DeleteDocument removes a document's chunks.
func (m *MemoryChunkStore) DeleteDocument(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.chunks {
		if c.DocumentID == documentID {
			delete(m.chunks, id)
		}
	}
	return nil
}

// Count returns the number of stored chunks.
func (m *MemoryChunkStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks), nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryChunkStore) Close() error { return nil }

var _ ChunkStore = (*MemoryChunkStore)(nil)
