package search

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/jacc-ai/jacc-core/internal/provider"
)

// Intent classification vocabularies.
const (
	IntentSearch          = "search"
	IntentComparison      = "comparison"
	IntentCalculation     = "calculation"
	IntentRecommendation  = "recommendation"
	IntentTroubleshooting = "troubleshooting"
)

// Intent is the classified shape of a query.
type Intent struct {
	Type       string   `json:"type"`
	Entities   []string `json:"entities"`
	Confidence float64  `json:"confidence"`
	Domain     string   `json:"domain"`
	Urgency    string   `json:"urgency"`
}

// DefaultIntent is the fallback classification used whenever the LLM is
// unavailable or returns garbage.
func DefaultIntent() Intent {
	return Intent{
		Type:       IntentSearch,
		Entities:   []string{},
		Confidence: 0.5,
		Domain:     "payments",
		Urgency:    "medium",
	}
}

// EnhancedQuery is the full enhancement output.
type EnhancedQuery struct {
	Original        string   `json:"original"`
	Intent          Intent   `json:"intent"`
	Entities        []string `json:"entities"`
	SemanticContext string   `json:"semanticContext"`
	ExpandedQueries []string `json:"expandedQueries"`
	SearchTerms     []string `json:"searchTerms"`
}

// DefaultEnhancerCacheSize bounds the per-process enhancement cache.
const DefaultEnhancerCacheSize = 256

// QueryEnhancer expands a raw query into intent, entities, semantic
// context and alternative phrasings. Every LLM-backed sub-operation has
// its own typed fallback, so one failed call degrades that facet only.
type QueryEnhancer struct {
	completer provider.Completer
	cache     *lru.Cache[string, EnhancedQuery]
	logger    *slog.Logger
}

// NewQueryEnhancer creates an enhancer. completer may be nil, in which
// case every facet resolves to its fallback immediately.
func NewQueryEnhancer(completer provider.Completer, cacheSize int, logger *slog.Logger) *QueryEnhancer {
	if cacheSize <= 0 {
		cacheSize = DefaultEnhancerCacheSize
	}
	cache, _ := lru.New[string, EnhancedQuery](cacheSize)
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryEnhancer{completer: completer, cache: cache, logger: logger}
}

// Enhance runs all enhancement facets for the query. Results are cached
// per (query, userID) so repeated questions skip the LLM spend.
func (e *QueryEnhancer) Enhance(ctx context.Context, query, userID string) EnhancedQuery {
	key := userID + "\x00" + strings.ToLower(strings.TrimSpace(query))
	if cached, ok := e.cache.Get(key); ok {
		return cached
	}

	var (
		intent   Intent
		entities []string
	)

	// Intent and entities have no inter-dependency; fetch them in
	// parallel. Both helpers absorb their own failures.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		intent = e.ClassifyIntent(gctx, query)
		return nil
	})
	g.Go(func() error {
		entities = e.ExtractEntities(gctx, query)
		return nil
	})
	_ = g.Wait()

	var (
		semanticContext string
		expanded        []string
	)
	g2, g2ctx := errgroup.WithContext(ctx)
	g2.Go(func() error {
		semanticContext = e.GenerateSemanticContext(g2ctx, query, intent)
		return nil
	})
	g2.Go(func() error {
		expanded = e.ExpandQuery(g2ctx, query, intent, entities)
		return nil
	})
	_ = g2.Wait()

	result := EnhancedQuery{
		Original:        query,
		Intent:          intent,
		Entities:        entities,
		SemanticContext: semanticContext,
		ExpandedQueries: expanded,
		SearchTerms:     GenerateSearchTerms(query, entities, intent),
	}
	e.cache.Add(key, result)
	return result
}

// ClassifyIntent classifies the query. Falls back to DefaultIntent.
func (e *QueryEnhancer) ClassifyIntent(ctx context.Context, query string) Intent {
	if e.completer == nil {
		return DefaultIntent()
	}

	raw, err := e.completer.Complete(ctx, provider.CompletionRequest{
		System: "You classify questions from payment-processing sales agents. " +
			"Respond with a JSON object with fields: type (search|comparison|calculation|recommendation|troubleshooting), " +
			"entities (array of strings), confidence (0-1), " +
			"domain (payments|processors|rates|technical|compliance), urgency (high|medium|low).",
		Messages:     []provider.Message{{Role: "user", Content: query}},
		MaxTokens:    200,
		Temperature:  0,
		JSONResponse: true,
	})
	if err != nil {
		e.logger.Debug("intent classification failed", slog.Any("error", err))
		return DefaultIntent()
	}

	var intent Intent
	if err := json.Unmarshal([]byte(raw), &intent); err != nil || intent.Type == "" {
		e.logger.Debug("intent classification unparsable", slog.Any("error", err))
		return DefaultIntent()
	}
	if intent.Entities == nil {
		intent.Entities = []string{}
	}
	return intent
}

// ExtractEntities pulls processor names, business types and technical
// terms out of the query. Falls back to an empty list.
func (e *QueryEnhancer) ExtractEntities(ctx context.Context, query string) []string {
	if e.completer == nil {
		return []string{}
	}

	raw, err := e.completer.Complete(ctx, provider.CompletionRequest{
		System: "Extract named entities from payment-industry questions: processor names, " +
			"business types, hardware, technical terms. " +
			`Respond with a JSON object: {"entities": ["..."]}.`,
		Messages:     []provider.Message{{Role: "user", Content: query}},
		MaxTokens:    150,
		Temperature:  0,
		JSONResponse: true,
	})
	if err != nil {
		e.logger.Debug("entity extraction failed", slog.Any("error", err))
		return []string{}
	}

	var out struct {
		Entities []string `json:"entities"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil || out.Entities == nil {
		return []string{}
	}
	return out.Entities
}

// GenerateSemanticContext produces a short blob of related terminology to
// widen downstream matching. Falls back to the empty string.
func (e *QueryEnhancer) GenerateSemanticContext(ctx context.Context, query string, intent Intent) string {
	if e.completer == nil {
		return ""
	}

	raw, err := e.completer.Complete(ctx, provider.CompletionRequest{
		System: "Given a payment-industry question and its domain, list related terminology " +
			"in at most 50 words. Plain text, no preamble.",
		Messages: []provider.Message{{
			Role:    "user",
			Content: "Question: " + query + "\nDomain: " + intent.Domain,
		}},
		MaxTokens:   120,
		Temperature: 0.3,
	})
	if err != nil {
		e.logger.Debug("semantic context generation failed", slog.Any("error", err))
		return ""
	}
	return strings.TrimSpace(raw)
}

// ExpandQuery produces alternative phrasings of the query. Falls back to
// the identity expansion; never returns zero variants.
func (e *QueryEnhancer) ExpandQuery(ctx context.Context, query string, intent Intent, entities []string) []string {
	fallback := []string{query}
	if e.completer == nil {
		return fallback
	}

	raw, err := e.completer.Complete(ctx, provider.CompletionRequest{
		System: "Rephrase the question 3 to 5 different ways a payment-industry document might " +
			`answer it. Respond with a JSON object: {"queries": ["..."]}.`,
		Messages: []provider.Message{{
			Role: "user",
			Content: "Question: " + query +
				"\nIntent: " + intent.Type +
				"\nEntities: " + strings.Join(entities, ", "),
		}},
		MaxTokens:    250,
		Temperature:  0.5,
		JSONResponse: true,
	})
	if err != nil {
		e.logger.Debug("query expansion failed", slog.Any("error", err))
		return fallback
	}

	var out struct {
		Queries []string `json:"queries"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil || len(out.Queries) == 0 {
		return fallback
	}
	return out.Queries
}
