package orchestrator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacc-ai/jacc-core/internal/cache"
	"github.com/jacc-ai/jacc-core/internal/search"
	"github.com/jacc-ai/jacc-core/internal/store"
)

// offlineEmbedder reports unavailable, keeping the vector and AI-enhanced
// strategies quiet so tests exercise a deterministic keyword-only path.
type offlineEmbedder struct{}

func (offlineEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("offline")
}

func (offlineEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("offline")
}

func (offlineEmbedder) Dimensions() int { return 0 }

func (offlineEmbedder) ModelName() string { return "offline" }

func (offlineEmbedder) Available(ctx context.Context) bool { return false }

func (offlineEmbedder) Close() error { return nil }

type noopVectorStore struct{}

func (noopVectorStore) Add(ctx context.Context, ids []string, vectors [][]float32, namespace string) error {
	return nil
}

func (noopVectorStore) Search(ctx context.Context, query []float32, k int, namespaces []string) ([]*store.VectorResult, error) {
	return nil, nil
}

func (noopVectorStore) Delete(ctx context.Context, ids []string) error { return nil }

func (noopVectorStore) Count() int { return 0 }

func (noopVectorStore) Save(path string) error { return nil }

func (noopVectorStore) Load(path string) error { return nil }

func (noopVectorStore) Close() error { return nil }

func seedChunks(t *testing.T, contents ...string) *store.MemoryChunkStore {
	t.Helper()
	s := store.NewMemoryChunkStore()
	chunks := make([]*store.DocumentChunk, len(contents))
	for i, content := range contents {
		chunks[i] = &store.DocumentChunk{
			ID:         fmt.Sprintf("chunk-%d", i),
			DocumentID: fmt.Sprintf("doc-%d", i),
			Content:    content,
			ChunkIndex: 0,
			Metadata: store.ChunkMetadata{
				DocumentName: fmt.Sprintf("doc-%d.md", i),
				MimeType:     "text/markdown",
			},
		}
	}
	require.NoError(t, s.SaveChunks(context.Background(), chunks))
	return s
}

// newTestOrchestrator builds the full stack over an in-memory corpus. The
// completer serves synthesis; JSON-mode enhancement calls fail into their
// fallbacks so runs stay deterministic.
func newTestOrchestrator(t *testing.T, chunks store.ChunkStore, completer *stubCompleter, opts ...Option) *Orchestrator {
	t.Helper()

	keyword, err := search.NewKeywordEngine(chunks, search.DefaultKeywordConfig(), nil)
	require.NoError(t, err)
	vector, err := search.NewVectorEngine(offlineEmbedder{}, noopVectorStore{}, chunks, nil)
	require.NoError(t, err)
	enhancer := search.NewQueryEnhancer(completer, 0, nil)
	aiEnhanced, err := search.NewAIEnhancedEngine(enhancer, vector, completer, search.DefaultAIEnhancedConfig(), nil)
	require.NoError(t, err)
	synthesizer, err := NewSynthesizer(completer, nil)
	require.NoError(t, err)

	o, err := New(keyword, vector, aiEnhanced, enhancer, synthesizer, opts...)
	require.NoError(t, err)
	return o
}

func TestOrchestrateSearch_EndToEnd(t *testing.T) {
	// Given: a support document holding the Clearent contact details
	chunks := seedChunks(t,
		"What are Clearent support hours? Clearent support hours are 24/7. Call 866.435.0666 Option 1.",
		"TracerPay settlement happens next business day.",
	)
	completer := &stubCompleter{echo: true, jsonErr: true}
	o := newTestOrchestrator(t, chunks, completer)

	// When: orchestrating the canonical support question
	answer, results, err := o.OrchestrateSearchDetailed(context.Background(), &WorkflowContext{
		UserID: "agent-1",
		Query:  "What are Clearent support hours",
		Format: FormatDetailed,
	})

	// Then: every dispatched task settled exactly once
	require.NoError(t, err)
	require.Len(t, results, 4)
	seen := map[string]int{}
	for _, r := range results {
		seen[r.AgentID]++
	}
	for agent, n := range seen {
		assert.Equal(t, 1, n, "agent %s settled more than once", agent)
	}

	// And: the answer carries the phone number from the source verbatim
	assert.Contains(t, answer.Response, "866.435.0666")
	require.NotEmpty(t, answer.Sources)
	assert.Equal(t, "doc-0.md", answer.Sources[0].DocumentName)
	assert.Greater(t, answer.Confidence, 0.0)
}

func TestOrchestrateSearch_OneFailingTaskDoesNotCancelSiblings(t *testing.T) {
	chunks := seedChunks(t, "Clearent batch cutoff is 10pm EST.")
	completer := &stubCompleter{echo: true, jsonErr: true}
	o := newTestOrchestrator(t, chunks, completer)

	// Given: the vector task is rigged to fail outright
	o.handlers[TaskVectorSearch] = func(ctx context.Context, task AgentTask) (*TaskData, error) {
		return nil, fmt.Errorf("index corrupted")
	}

	answer, results, err := o.OrchestrateSearchDetailed(context.Background(), &WorkflowContext{
		Query:  "clearent batch cutoff",
		Format: FormatConcise,
	})

	// Then: exactly one error result, and the answer still stands
	require.NoError(t, err)
	require.Len(t, results, 4)
	var errored int
	for _, r := range results {
		if r.Status == StatusError {
			errored++
			assert.Equal(t, string(TaskVectorSearch)+"-agent", r.AgentID)
			assert.Contains(t, r.Error, "index corrupted")
		}
	}
	assert.Equal(t, 1, errored)
	assert.Contains(t, answer.Response, "batch cutoff")
}

func TestOrchestrateSearch_TotalFailureResolvesEmpty(t *testing.T) {
	chunks := seedChunks(t, "anything")
	completer := &stubCompleter{echo: true, jsonErr: true}
	o := newTestOrchestrator(t, chunks, completer)

	// Given: every task fails
	for taskType := range o.handlers {
		o.handlers[taskType] = func(ctx context.Context, task AgentTask) (*TaskData, error) {
			return nil, fmt.Errorf("hard down")
		}
	}

	answer, results, err := o.OrchestrateSearchDetailed(context.Background(), &WorkflowContext{Query: "anything"})

	// Then: a resolved empty answer, not an error
	require.NoError(t, err)
	require.Len(t, results, 4)
	for _, r := range results {
		assert.Equal(t, StatusError, r.Status)
	}
	assert.Equal(t, NoResultsMessage, answer.Response)
	assert.Equal(t, float64(0), answer.Confidence)
}

func TestOrchestrateSearch_NoMatchesResolvesEmpty(t *testing.T) {
	// A corpus with nothing relevant is the same outcome as total failure.
	chunks := seedChunks(t, "completely unrelated content")
	completer := &stubCompleter{echo: true, jsonErr: true}
	o := newTestOrchestrator(t, chunks, completer)

	answer, _, err := o.OrchestrateSearchDetailed(context.Background(), &WorkflowContext{Query: "zzz qqq xxx"})

	require.NoError(t, err)
	assert.Equal(t, NoResultsMessage, answer.Response)
}

func TestOrchestrateSearch_SynthesisFailurePropagates(t *testing.T) {
	chunks := seedChunks(t, "Clearent support details")
	completer := &stubCompleter{err: fmt.Errorf("model down")}
	o := newTestOrchestrator(t, chunks, completer)

	_, err := o.OrchestrateSearch(context.Background(), &WorkflowContext{Query: "clearent support details"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "multi-agent search workflow failed")
}

func TestOrchestrateSearch_TaskTimeoutSettles(t *testing.T) {
	chunks := seedChunks(t, "Clearent support details")
	completer := &stubCompleter{echo: true, jsonErr: true}
	o := newTestOrchestrator(t, chunks, completer, WithTaskTimeouts(TaskTimeouts{
		Vector:     10 * time.Millisecond,
		Keyword:    5 * time.Second,
		AIEnhanced: 5 * time.Second,
		Expansion:  5 * time.Second,
	}))

	// Given: a vector task that never finishes
	o.handlers[TaskVectorSearch] = func(ctx context.Context, task AgentTask) (*TaskData, error) {
		<-make(chan struct{})
		return nil, nil
	}

	answer, results, err := o.OrchestrateSearchDetailed(context.Background(), &WorkflowContext{
		Query: "clearent support details",
	})

	// Then: the hung task settles as a timeout, the rest succeed
	require.NoError(t, err)
	require.Len(t, results, 4)
	var timedOut int
	for _, r := range results {
		if r.Status == StatusTimeout {
			timedOut++
			assert.Equal(t, string(TaskVectorSearch)+"-agent", r.AgentID)
		}
	}
	assert.Equal(t, 1, timedOut)
	assert.NotEqual(t, NoResultsMessage, answer.Response)
}

func TestOrchestrateSearch_ResponseCacheRoundTrip(t *testing.T) {
	chunks := seedChunks(t, "Clearent support hours are 24/7.")
	completer := &stubCompleter{echo: true, jsonErr: true}
	responses := cache.New(10, 1<<20, time.Minute)
	o := newTestOrchestrator(t, chunks, completer, WithResponseCache(responses))

	wctx := &WorkflowContext{Query: "clearent support hours"}
	first, err := o.OrchestrateSearch(context.Background(), wctx)
	require.NoError(t, err)
	callsAfterFirst := completer.callCount()

	// When: repeating the query with cosmetic differences
	second, err := o.OrchestrateSearch(context.Background(), &WorkflowContext{Query: "  Clearent SUPPORT hours "})
	require.NoError(t, err)

	// Then: the cached answer is served with no further LLM calls
	assert.Equal(t, first.Response, second.Response)
	assert.Equal(t, callsAfterFirst, completer.callCount())
	assert.Equal(t, 1, responses.GetStats().TotalHits)
}

func TestOrchestrator_UnknownTaskTypePanics(t *testing.T) {
	chunks := seedChunks(t, "anything")
	o := newTestOrchestrator(t, chunks, &stubCompleter{reply: "x"})

	assert.Panics(t, func() {
		o.execute(context.Background(), AgentTask{ID: "t1", Type: TaskType("telepathy-search")})
	})
}

func TestOrchestrator_PerformanceStats(t *testing.T) {
	chunks := seedChunks(t, "Clearent support hours are 24/7.")
	completer := &stubCompleter{echo: true, jsonErr: true}
	o := newTestOrchestrator(t, chunks, completer)

	_, err := o.OrchestrateSearch(context.Background(), &WorkflowContext{Query: "clearent support hours"})
	require.NoError(t, err)

	stats := o.GetPerformanceStats()
	require.Len(t, stats, 4)
	kw, ok := stats[string(TaskKeywordSearch)+"-agent"]
	require.True(t, ok)
	assert.Equal(t, 1, kw.TotalExecutions)
	assert.Equal(t, 1, kw.SuccessCount)
}

func TestOrchestrator_CacheStatsNilWithoutCache(t *testing.T) {
	chunks := seedChunks(t, "anything")
	o := newTestOrchestrator(t, chunks, &stubCompleter{reply: "x"})

	assert.Nil(t, o.CacheStats())
}

func TestTaskConfidence(t *testing.T) {
	tests := []struct {
		name string
		data *TaskData
		want float64
	}{
		{"nil data", nil, 0},
		{"empty results", &TaskData{Results: []search.SearchResult{}}, 0.2},
		{
			"mean of scores plus bonus",
			&TaskData{Results: []search.SearchResult{{Score: 0.6}, {Score: 0.8}}},
			0.8,
		},
		{
			"zero scores default to half",
			&TaskData{Results: []search.SearchResult{{Score: 0}}},
			0.6,
		},
		{
			"capped at one",
			&TaskData{Results: []search.SearchResult{{Score: 0.95}, {Score: 0.99}}},
			1.0,
		},
		{
			"expansion uses classifier confidence",
			&TaskData{Expansion: &search.EnhancedQuery{Intent: search.Intent{Confidence: 0.42}}},
			0.42,
		},
		{
			"expansion without confidence defaults",
			&TaskData{Expansion: &search.EnhancedQuery{}},
			0.7,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, taskConfidence(tt.data), 1e-9)
		})
	}
}

func TestMergeResults_DedupKeepsBestScore(t *testing.T) {
	// Given: two successful tasks that both found chunk c1
	results := []AgentResult{
		{Status: StatusSuccess, Data: &TaskData{Results: []search.SearchResult{
			{ID: "c1", Score: 0.6},
			{ID: "c2", Score: 0.5},
		}}},
		{Status: StatusSuccess, Data: &TaskData{Results: []search.SearchResult{
			{ID: "c1", Score: 0.9},
		}}},
		{Status: StatusError},
	}

	merged := mergeResults(results)

	require.Len(t, merged, 2)
	byID := map[string]float64{}
	for _, m := range merged {
		byID[m.ID] = m.Score
	}
	assert.Equal(t, 0.9, byID["c1"])
	assert.Equal(t, 0.5, byID["c2"])
}
