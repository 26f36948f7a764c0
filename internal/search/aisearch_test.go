package search

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacc-ai/jacc-core/internal/provider"
	"github.com/jacc-ai/jacc-core/internal/store"
)

func newAITestEngine(t *testing.T, completer *scriptedCompleter, neighbors []*store.VectorResult, chunks store.ChunkStore) *AIEnhancedEngine {
	t.Helper()

	vectors := &fakeVectorStore{neighbors: neighbors}
	vec, err := NewVectorEngine(&fakeEmbedder{vector: []float32{1, 0}, available: true}, vectors, chunks, nil)
	require.NoError(t, err)

	// A typed nil must not masquerade as a non-nil Completer interface.
	var comp provider.Completer
	if completer != nil {
		comp = completer
	}
	engine, err := NewAIEnhancedEngine(NewQueryEnhancer(comp, 0, nil), vec, comp, DefaultAIEnhancedConfig(), nil)
	require.NoError(t, err)
	return engine
}

func TestAIEnhancedEngine_NeutralScoresWithoutCompleter(t *testing.T) {
	// Given: two retrievable chunks and no LLM
	chunks := seedStore(t,
		testChunk("c1", "doc1", "first passage", 0),
		testChunk("c2", "doc1", "second passage", 1),
	)
	neighbors := []*store.VectorResult{
		{ID: "c1", Score: 0.9},
		{ID: "c2", Score: 0.7},
	}
	e := newAITestEngine(t, nil, neighbors, chunks)

	// When: searching
	results := e.Search(context.Background(), "some question", nil)

	// Then: every candidate carries the neutral relevance
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, float64(50), r.Relevance)
		assert.Equal(t, 0.5, r.Score)
		assert.Equal(t, MatchAIEnhanced, r.Metadata.MatchType)
		assert.Empty(t, r.ExtractedInsights)
		assert.Empty(t, r.SuggestedQuestions)
	}
}

func TestAIEnhancedEngine_RescoreOrdersByRelevance(t *testing.T) {
	chunks := seedStore(t,
		testChunk("c1", "doc1", "weak passage", 0),
		testChunk("c2", "doc1", "strong passage", 1),
	)
	neighbors := []*store.VectorResult{
		{ID: "c1", Score: 0.9},
		{ID: "c2", Score: 0.7},
	}
	completer := &scriptedCompleter{responses: map[string]string{
		"Rephrase the question": `{"queries":["variant one"]}`,
		"Score how relevant":    `{"scores":[{"index":0,"relevance":20},{"index":1,"relevance":140}]}`,
		"extract exactly 3":     `{"insights":["a","b","c"],"questions":["q1","q2","q3"]}`,
	}}
	e := newAITestEngine(t, completer, neighbors, chunks)

	results := e.Search(context.Background(), "question", nil)

	// Then: re-scored order wins over retrieval order, values clamped to 0-100
	require.Len(t, results, 2)
	assert.Equal(t, "c2", results[0].ID)
	assert.Equal(t, float64(100), results[0].Relevance)
	assert.Equal(t, float64(1), results[0].Score)
	assert.Equal(t, "c1", results[1].ID)
	assert.Equal(t, float64(20), results[1].Relevance)
	// and the top candidates carry enrichment
	assert.Equal(t, []string{"a", "b", "c"}, results[0].ExtractedInsights)
	assert.Equal(t, []string{"q1", "q2", "q3"}, results[0].SuggestedQuestions)
}

func TestAIEnhancedEngine_RescoreFailureFallsBackToNeutral(t *testing.T) {
	chunks := seedStore(t,
		testChunk("c1", "doc1", "a passage", 0),
	)
	neighbors := []*store.VectorResult{{ID: "c1", Score: 0.9}}
	// No "Score how relevant" script: that call fails.
	completer := &scriptedCompleter{responses: map[string]string{
		"Rephrase the question": `{"queries":["variant"]}`,
		"extract exactly 3":     `{"insights":[],"questions":[]}`,
	}}
	e := newAITestEngine(t, completer, neighbors, chunks)

	results := e.Search(context.Background(), "question", nil)

	require.Len(t, results, 1)
	assert.Equal(t, float64(50), results[0].Relevance)
}

func TestAIEnhancedEngine_EnrichmentFailureKeepsCandidates(t *testing.T) {
	// Given: re-scoring works but every enrichment call fails
	chunks := seedStore(t,
		testChunk("c1", "doc1", "a passage", 0),
		testChunk("c2", "doc1", "another passage", 1),
	)
	neighbors := []*store.VectorResult{
		{ID: "c1", Score: 0.9},
		{ID: "c2", Score: 0.8},
	}
	completer := &scriptedCompleter{responses: map[string]string{
		"Rephrase the question": `{"queries":["variant"]}`,
		"Score how relevant":    `{"scores":[{"index":0,"relevance":90},{"index":1,"relevance":70}]}`,
	}}
	e := newAITestEngine(t, completer, neighbors, chunks)

	results := e.Search(context.Background(), "question", nil)

	// Then: both candidates survive with empty enrichment fields
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Empty(t, r.ExtractedInsights)
		assert.Empty(t, r.SuggestedQuestions)
	}
	assert.Equal(t, float64(90), results[0].Relevance)
}

func TestAIEnhancedEngine_EmptyRetrievalYieldsNil(t *testing.T) {
	chunks := store.NewMemoryChunkStore()
	e := newAITestEngine(t, nil, nil, chunks)

	assert.Nil(t, e.Search(context.Background(), "question", nil))
}

func TestAIEnhancedEngine_GenerateSmartSummary(t *testing.T) {
	chunks := seedStore(t, testChunk("c1", "doc1", "passage", 0))
	completer := &scriptedCompleter{responses: map[string]string{
		"Summarize what the sources say": "  Sources agree: funding arrives next day [1].  ",
	}}
	e := newAITestEngine(t, completer, nil, chunks)

	results := []EnhancedSearchResult{{
		SearchResult: SearchResult{ID: "c1", Content: "passage", Metadata: ResultMetadata{DocumentName: "doc1.md"}},
		Relevance:    80,
	}}

	got := e.GenerateSmartSummary(context.Background(), results, "funding timing")

	assert.Equal(t, "Sources agree: funding arrives next day [1].", got)
}

func TestAIEnhancedEngine_SmartSummaryFallbacks(t *testing.T) {
	chunks := store.NewMemoryChunkStore()
	results := []EnhancedSearchResult{{
		SearchResult: SearchResult{ID: "c1", Content: "passage"},
	}}

	// Failing LLM
	failing := &scriptedCompleter{err: fmt.Errorf("timeout")}
	e := newAITestEngine(t, failing, nil, chunks)
	assert.Equal(t, SummaryFallback, e.GenerateSmartSummary(context.Background(), results, "q"))

	// No LLM
	e = newAITestEngine(t, nil, nil, chunks)
	assert.Equal(t, SummaryFallback, e.GenerateSmartSummary(context.Background(), results, "q"))

	// No results
	withLLM := &scriptedCompleter{responses: map[string]string{"Summarize": "text"}}
	e = newAITestEngine(t, withLLM, nil, chunks)
	assert.Equal(t, SummaryFallback, e.GenerateSmartSummary(context.Background(), nil, "q"))
}

func TestAIEnhancedEngine_RescoreExcerptKeepsRunesWhole(t *testing.T) {
	// Given: a candidate whose multi-byte content crosses the excerpt cap
	long := "x" + strings.Repeat("é", 200)
	chunks := seedStore(t, testChunk("c1", "doc1", long, 0))
	neighbors := []*store.VectorResult{{ID: "c1", Score: 0.9}}
	completer := &scriptedCompleter{responses: map[string]string{
		"Score how relevant": `{"scores":[{"index":0,"relevance":80}]}`,
	}}
	e := newAITestEngine(t, completer, neighbors, chunks)

	// When: searching
	results := e.Search(context.Background(), "question", nil)
	require.NotEmpty(t, results)

	// Then: the re-score prompt never carries a split rune
	var rescore string
	for _, req := range completer.requests() {
		if strings.Contains(req.System, "Score how relevant") {
			rescore = req.Messages[len(req.Messages)-1].Content
		}
	}
	require.NotEmpty(t, rescore)
	assert.True(t, utf8.ValidString(rescore))
}
