package search

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/jacc-ai/jacc-core/internal/store"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Per-pass candidate caps.
const (
	exactPassCap    = 10
	expandedPassCap = 15
	partialPassCap  = 20
)

// KeywordConfig holds the pass scores and short-circuit thresholds.
type KeywordConfig struct {
	// ExactScore, ExpandedScore and PartialScore are assigned to results
	// of the corresponding pass. They must be strictly decreasing.
	ExactScore    float64
	ExpandedScore float64
	PartialScore  float64

	// ExactThreshold stops the search after the exact pass when at least
	// this many results accumulated. ExpandedThreshold does the same
	// after the expanded pass.
	ExactThreshold    int
	ExpandedThreshold int

	// MaxResults bounds the final result list.
	MaxResults int
}

// DefaultKeywordConfig returns the standard pass tuning.
func DefaultKeywordConfig() KeywordConfig {
	return KeywordConfig{
		ExactScore:        0.95,
		ExpandedScore:     0.80,
		PartialScore:      0.60,
		ExactThreshold:    5,
		ExpandedThreshold: 3,
		MaxResults:        10,
	}
}

// KeywordEngine runs three substring-matching passes against the chunk
// store: exact phrase, synonym-expanded terms, then partial words. Later
// passes only run to fill gaps, and every pass is fault-isolated so a
// storage hiccup in one pass never discards another pass's results.
type KeywordEngine struct {
	chunks store.ChunkStore
	config KeywordConfig
	logger *slog.Logger
}

// NewKeywordEngine creates a keyword engine over the given chunk store.
func NewKeywordEngine(chunks store.ChunkStore, config KeywordConfig, logger *slog.Logger) (*KeywordEngine, error) {
	if chunks == nil {
		return nil, ErrNilDependency
	}
	if config.MaxResults <= 0 {
		config = DefaultKeywordConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &KeywordEngine{chunks: chunks, config: config, logger: logger}, nil
}

// Search executes the three passes. It never returns an error: when all
// passes fail the result list is empty and the failures are logged.
func (e *KeywordEngine) Search(ctx context.Context, query string) []SearchResult {
	normalized := strings.TrimSpace(CorrectVendorTypos(query))
	if normalized == "" {
		return nil
	}

	acc := newResultAccumulator()

	// Pass 1: exact phrase.
	if err := e.exactPass(ctx, normalized, acc); err != nil {
		e.logger.Warn("exact keyword pass failed", slog.Any("error", err))
	}
	if acc.len() >= e.config.ExactThreshold {
		return e.finalize(acc)
	}

	// Pass 2: synonym-expanded terms.
	if err := e.expandedPass(ctx, normalized, acc); err != nil {
		e.logger.Warn("expanded keyword pass failed", slog.Any("error", err))
	}
	if acc.len() >= e.config.ExpandedThreshold {
		return e.finalize(acc)
	}

	// Pass 3: partial words.
	if err := e.partialPass(ctx, normalized, acc); err != nil {
		e.logger.Warn("partial keyword pass failed", slog.Any("error", err))
	}
	return e.finalize(acc)
}

func (e *KeywordEngine) exactPass(ctx context.Context, query string, acc *resultAccumulator) error {
	chunks, err := e.chunks.Match(ctx, query, exactPassCap)
	if err != nil {
		return err
	}
	for _, c := range chunks {
		acc.add(c, e.config.ExactScore, MatchExact, []string{query})
	}
	return nil
}

func (e *KeywordEngine) expandedPass(ctx context.Context, query string, acc *resultAccumulator) error {
	terms := ExpandTerms(Tokenize(query), 3)
	var errs []error
	for _, term := range terms {
		if acc.len() >= expandedPassCap {
			break
		}
		chunks, err := e.chunks.Match(ctx, term, expandedPassCap)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, c := range chunks {
			acc.add(c, e.config.ExpandedScore, MatchExpanded, []string{term})
		}
	}
	// Only a fully failed pass is reported; partial term failures are
	// absorbed as long as something matched.
	if len(errs) > 0 && len(errs) == len(terms) {
		return errors.Join(errs...)
	}
	return nil
}

func (e *KeywordEngine) partialPass(ctx context.Context, query string, acc *resultAccumulator) error {
	tokens := Tokenize(query)
	var errs []error
	attempted := 0
	for _, tok := range tokens {
		if len(tok) <= 2 {
			continue
		}
		if acc.len() >= partialPassCap {
			break
		}
		attempted++
		chunks, err := e.chunks.Match(ctx, tok, partialPassCap)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, c := range chunks {
			acc.add(c, e.config.PartialScore, MatchPartial, []string{tok})
		}
	}
	if len(errs) > 0 && len(errs) == attempted {
		return errors.Join(errs...)
	}
	return nil
}

func (e *KeywordEngine) finalize(acc *resultAccumulator) []SearchResult {
	results := acc.results()
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > e.config.MaxResults {
		results = results[:e.config.MaxResults]
	}
	return results
}

// resultAccumulator deduplicates candidates across passes by chunk id.
// A chunk found by an earlier, higher-scoring pass keeps its original
// score and matchType; later sightings only contribute matched terms.
type resultAccumulator struct {
	order []string
	byID  map[string]*SearchResult
}

func newResultAccumulator() *resultAccumulator {
	return &resultAccumulator{byID: make(map[string]*SearchResult)}
}

func (a *resultAccumulator) len() int { return len(a.order) }

func (a *resultAccumulator) add(c *store.DocumentChunk, score float64, mt MatchType, terms []string) {
	if existing, ok := a.byID[c.ID]; ok {
		existing.Metadata.KeywordMatches = mergeTerms(existing.Metadata.KeywordMatches, terms)
		if mt.Rank() > existing.Metadata.MatchType.Rank() {
			existing.Metadata.MatchType = mt
			existing.Score = score
		}
		return
	}

	a.order = append(a.order, c.ID)
	a.byID[c.ID] = &SearchResult{
		ID:         c.ID,
		DocumentID: c.DocumentID,
		Content:    c.Content,
		Score:      score,
		Metadata: ResultMetadata{
			DocumentName:   c.Metadata.DocumentName,
			MimeType:       c.Metadata.MimeType,
			ChunkIndex:     c.ChunkIndex,
			MatchType:      mt,
			RelevanceScore: score,
			KeywordMatches: append([]string(nil), terms...),
		},
	}
}

func (a *resultAccumulator) results() []SearchResult {
	out := make([]SearchResult, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, *a.byID[id])
	}
	return out
}

func mergeTerms(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, t := range existing {
		seen[t] = true
	}
	for _, t := range incoming {
		if !seen[t] {
			seen[t] = true
			existing = append(existing, t)
		}
	}
	return existing
}
