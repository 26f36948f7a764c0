package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHNSW(t *testing.T, dims int) *HNSWStore {
	t.Helper()
	s, err := NewHNSWStore(DefaultVectorStoreConfig(dims))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestHNSWStore_AddAndSearch(t *testing.T) {
	ctx := context.Background()
	s := newHNSW(t, 3)

	// Given: three vectors at distinct angles
	require.NoError(t, s.Add(ctx,
		[]string{"a", "b", "c"},
		[][]float32{
			{1, 0, 0},
			{0.9, 0.1, 0},
			{0, 0, 1},
		},
		"default"))

	// When: querying near vector a
	results, err := s.Search(ctx, []float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)

	// Then: the closest vector comes first with the higher score
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "b", results[1].ID)
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.Less(t, results[0].Distance, results[1].Distance)
}

func TestHNSWStore_NamespaceScoping(t *testing.T) {
	ctx := context.Background()
	s := newHNSW(t, 2)

	require.NoError(t, s.Add(ctx, []string{"a"}, [][]float32{{1, 0}}, "docs"))
	require.NoError(t, s.Add(ctx, []string{"b"}, [][]float32{{0.9, 0.1}}, "faq"))

	// Scoped search only sees its namespace.
	results, err := s.Search(ctx, []float32{1, 0}, 10, []string{"faq"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ID)
	assert.Equal(t, "faq", results[0].Namespace)

	// Unscoped search sees everything.
	results, err = s.Search(ctx, []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestHNSWStore_DeleteHidesVectors(t *testing.T) {
	ctx := context.Background()
	s := newHNSW(t, 2)

	require.NoError(t, s.Add(ctx, []string{"a", "b"}, [][]float32{{1, 0}, {0, 1}}, "default"))
	require.NoError(t, s.Delete(ctx, []string{"a"}))

	assert.Equal(t, 1, s.Count())
	results, err := s.Search(ctx, []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ID)
}

func TestHNSWStore_ReplaceExistingID(t *testing.T) {
	ctx := context.Background()
	s := newHNSW(t, 2)

	require.NoError(t, s.Add(ctx, []string{"a"}, [][]float32{{1, 0}}, "default"))
	require.NoError(t, s.Add(ctx, []string{"a"}, [][]float32{{0, 1}}, "default"))

	assert.Equal(t, 1, s.Count())
	results, err := s.Search(ctx, []float32{0, 1}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}

func TestHNSWStore_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := newHNSW(t, 3)

	err := s.Add(ctx, []string{"a"}, [][]float32{{1, 0}}, "default")
	var mismatch ErrDimensionMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 3, mismatch.Expected)
	assert.Equal(t, 2, mismatch.Got)

	_, err = s.Search(ctx, []float32{1, 0}, 5, nil)
	assert.ErrorAs(t, err, &mismatch)
}

func TestHNSWStore_EmptyIndexSearch(t *testing.T) {
	s := newHNSW(t, 2)

	results, err := s.Search(context.Background(), []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWStore_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.idx")

	s := newHNSW(t, 2)
	require.NoError(t, s.Add(ctx, []string{"a", "b"}, [][]float32{{1, 0}, {0, 1}}, "docs"))
	require.NoError(t, s.Save(path))

	restored := newHNSW(t, 2)
	require.NoError(t, restored.Load(path))

	assert.Equal(t, 2, restored.Count())
	results, err := restored.Search(ctx, []float32{1, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "docs", results[0].Namespace)
}

func TestDistanceToScore_Monotonic(t *testing.T) {
	// Closer always scores higher, for both metrics.
	for _, metric := range []string{"cos", "l2"} {
		near := distanceToScore(0.1, metric)
		far := distanceToScore(0.8, metric)
		assert.Greater(t, near, far, "metric %s", metric)
	}
	// Cosine endpoints
	assert.InDelta(t, 1.0, distanceToScore(0, "cos"), 1e-6)
	assert.InDelta(t, 0.0, distanceToScore(2, "cos"), 1e-6)
}
