package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jacc-ai/jacc-core/internal/provider"
)

const (
	// neutralRelevance is assigned to every candidate when the re-score
	// call fails or returns garbage.
	neutralRelevance = 50

	// rescoreExcerptChars bounds the excerpt sent per candidate in the
	// batched re-score prompt.
	rescoreExcerptChars = 300

	// SummaryFallback is returned when the summary call fails.
	SummaryFallback = "I'm sorry, I couldn't generate a summary for these results right now. Please review the sources directly."
)

// AIEnhancedConfig tunes the enhanced pipeline.
type AIEnhancedConfig struct {
	MaxResults   int
	EnrichTopN   int
	MaxVariants  int // expanded query variants searched beyond the original
	VectorTopK   int
}

// DefaultAIEnhancedConfig returns the standard tuning.
func DefaultAIEnhancedConfig() AIEnhancedConfig {
	return AIEnhancedConfig{
		MaxResults:  10,
		EnrichTopN:  5,
		MaxVariants: 2,
		VectorTopK:  DefaultVectorTopK,
	}
}

// AIEnhancedEngine chains query expansion, vector retrieval, a batched
// LLM re-score and per-candidate enrichment. Each stage has a typed
// fallback; enrichment failure in particular never drops a candidate.
type AIEnhancedEngine struct {
	enhancer  *QueryEnhancer
	vector    *VectorEngine
	completer provider.Completer
	config    AIEnhancedConfig
	logger    *slog.Logger
}

// NewAIEnhancedEngine creates the engine. completer may be nil; all LLM
// stages then resolve to their fallbacks.
func NewAIEnhancedEngine(enhancer *QueryEnhancer, vector *VectorEngine, completer provider.Completer, config AIEnhancedConfig, logger *slog.Logger) (*AIEnhancedEngine, error) {
	if enhancer == nil || vector == nil {
		return nil, ErrNilDependency
	}
	if config.MaxResults <= 0 {
		config = DefaultAIEnhancedConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AIEnhancedEngine{
		enhancer:  enhancer,
		vector:    vector,
		completer: completer,
		config:    config,
		logger:    logger,
	}, nil
}

// Search runs the enhanced pipeline. Never returns an error; the worst
// outcome is an empty list.
func (e *AIEnhancedEngine) Search(ctx context.Context, query string, namespaces []string) []EnhancedSearchResult {
	variants := e.enhancer.ExpandQuery(ctx, query, DefaultIntent(), nil)
	queries := append([]string{query}, variants...)
	if len(queries) > 1+e.config.MaxVariants {
		queries = queries[:1+e.config.MaxVariants]
	}

	candidates := e.retrieve(ctx, queries, namespaces)
	if len(candidates) == 0 {
		return nil
	}

	relevances := e.rescore(ctx, query, candidates)

	enhanced := make([]EnhancedSearchResult, len(candidates))
	for i, c := range candidates {
		c.Score = relevances[i] / 100
		c.Metadata.MatchType = MatchAIEnhanced
		c.Metadata.RelevanceScore = c.Score
		enhanced[i] = EnhancedSearchResult{
			SearchResult: c,
			Relevance:    relevances[i],
		}
	}

	sort.SliceStable(enhanced, func(i, j int) bool {
		return enhanced[i].Relevance > enhanced[j].Relevance
	})
	if len(enhanced) > e.config.MaxResults {
		enhanced = enhanced[:e.config.MaxResults]
	}

	e.enrich(ctx, query, enhanced)
	return enhanced
}

// retrieve runs one vector search per query variant and deduplicates by
// chunk id, keeping the best score.
func (e *AIEnhancedEngine) retrieve(ctx context.Context, queries []string, namespaces []string) []SearchResult {
	byID := make(map[string]int)
	var merged []SearchResult
	for _, q := range queries {
		for _, r := range e.vector.Search(ctx, q, e.config.VectorTopK, namespaces) {
			if idx, ok := byID[r.ID]; ok {
				if r.Score > merged[idx].Score {
					merged[idx].Score = r.Score
				}
				continue
			}
			byID[r.ID] = len(merged)
			merged = append(merged, r)
		}
	}
	return merged
}

// rescore asks the LLM for a 0-100 relevance per candidate in a single
// batched call. On any failure every candidate gets the neutral score.
func (e *AIEnhancedEngine) rescore(ctx context.Context, query string, candidates []SearchResult) []float64 {
	relevances := make([]float64, len(candidates))
	for i := range relevances {
		relevances[i] = neutralRelevance
	}
	if e.completer == nil {
		return relevances
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Question: %s\n\nCandidates:\n", query)
	for i, c := range candidates {
		excerpt := TruncateUTF8(c.Content, rescoreExcerptChars)
		fmt.Fprintf(&prompt, "[%d] %s\n", i, excerpt)
	}

	raw, err := e.completer.Complete(ctx, provider.CompletionRequest{
		System: "Score how relevant each candidate passage is to the question, 0-100. " +
			`Respond with a JSON object: {"scores": [{"index": 0, "relevance": 85}, ...]} covering every index.`,
		Messages:     []provider.Message{{Role: "user", Content: prompt.String()}},
		MaxTokens:    400,
		Temperature:  0,
		JSONResponse: true,
	})
	if err != nil {
		e.logger.Warn("relevance re-score failed, using neutral scores", slog.Any("error", err))
		return relevances
	}

	var out struct {
		Scores []struct {
			Index     int     `json:"index"`
			Relevance float64 `json:"relevance"`
		} `json:"scores"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil || len(out.Scores) == 0 {
		e.logger.Warn("relevance re-score unparsable, using neutral scores", slog.Any("error", err))
		return relevances
	}

	for _, s := range out.Scores {
		if s.Index < 0 || s.Index >= len(relevances) {
			continue
		}
		relevances[s.Index] = max(0, min(100, s.Relevance))
	}
	return relevances
}

// enrich adds insights and follow-up questions to the top candidates.
// Failures leave the fields empty and the candidate in place.
func (e *AIEnhancedEngine) enrich(ctx context.Context, query string, results []EnhancedSearchResult) {
	if e.completer == nil {
		return
	}
	n := min(e.config.EnrichTopN, len(results))

	g, gctx := errgroup.WithContext(ctx)
	for i := range n {
		g.Go(func() error {
			insights, questions, err := e.enrichOne(gctx, query, results[i].Content)
			if err != nil {
				e.logger.Debug("enrichment failed",
					slog.String("chunk_id", results[i].ID),
					slog.Any("error", err))
				return nil
			}
			results[i].ExtractedInsights = insights
			results[i].SuggestedQuestions = questions
			return nil
		})
	}
	_ = g.Wait()
}

func (e *AIEnhancedEngine) enrichOne(ctx context.Context, query, content string) ([]string, []string, error) {
	raw, err := e.completer.Complete(ctx, provider.CompletionRequest{
		System: "Given a question and a source passage, extract exactly 3 key insights and " +
			`suggest 3 follow-up questions. Respond with a JSON object: {"insights": ["..."], "questions": ["..."]}.`,
		Messages: []provider.Message{{
			Role:    "user",
			Content: "Question: " + query + "\n\nPassage: " + content,
		}},
		MaxTokens:    300,
		Temperature:  0.3,
		JSONResponse: true,
	})
	if err != nil {
		return nil, nil, err
	}

	var out struct {
		Insights  []string `json:"insights"`
		Questions []string `json:"questions"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, nil, err
	}
	return out.Insights, out.Questions, nil
}

// GenerateSmartSummary composes a narrative answer from enriched results
// in one LLM call. On failure it returns a fixed apology rather than an
// error.
func (e *AIEnhancedEngine) GenerateSmartSummary(ctx context.Context, results []EnhancedSearchResult, query string) string {
	if e.completer == nil || len(results) == 0 {
		return SummaryFallback
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Question: %s\n\nSources:\n", query)
	for i, r := range results {
		excerpt := r.Content
		if len(excerpt) > rescoreExcerptChars {
			excerpt = excerpt[:rescoreExcerptChars]
		}
		fmt.Fprintf(&prompt, "[%d] %s: %s\n", i+1, r.Metadata.DocumentName, excerpt)
	}

	raw, err := e.completer.Complete(ctx, provider.CompletionRequest{
		System: "Summarize what the sources say about the question for a payment-processing " +
			"sales agent. Cite sources by their bracketed number. Be concise and factual.",
		Messages:    []provider.Message{{Role: "user", Content: prompt.String()}},
		MaxTokens:   400,
		Temperature: 0.3,
	})
	if err != nil {
		e.logger.Warn("smart summary failed", slog.Any("error", err))
		return SummaryFallback
	}
	return strings.TrimSpace(raw)
}
