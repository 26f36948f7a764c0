package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	jaccerrors "github.com/jacc-ai/jacc-core/internal/errors"
	"github.com/jacc-ai/jacc-core/internal/provider"
	"github.com/jacc-ai/jacc-core/internal/search"
)

const (
	// NoResultsMessage is the fixed answer for the empty-result
	// condition. Reaching it is not an error.
	NoResultsMessage = "I couldn't find relevant documents to answer your question. Try rephrasing it or asking about a specific processor, rate, or piece of equipment."

	// contextCharsPerResult bounds how much of each chunk goes into the
	// synthesis prompt.
	contextCharsPerResult = 800
)

// Synthesizer turns a ranked candidate set into one cited answer. The
// final completion call is the single place in the pipeline where
// failure is fatal: with no retrieved answer text there is nothing to
// degrade to, and a fabricated answer would be worse than an error.
type Synthesizer struct {
	completer provider.Completer
	logger    *slog.Logger
}

// NewSynthesizer creates a synthesizer.
func NewSynthesizer(completer provider.Completer, logger *slog.Logger) (*Synthesizer, error) {
	if completer == nil {
		return nil, search.ErrNilDependency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{completer: completer, logger: logger}, nil
}

// EmptyAnswer is the short-circuit result when no strategy produced
// anything usable.
func EmptyAnswer() SynthesizedAnswer {
	return SynthesizedAnswer{
		Response:   NoResultsMessage,
		Sources:    []Attribution{},
		Confidence: 0,
	}
}

// Synthesize builds the final answer from the merged candidate set.
func (s *Synthesizer) Synthesize(ctx context.Context, results []search.SearchResult, query, format string, maxResults int) (SynthesizedAnswer, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	if len(results) == 0 {
		return EmptyAnswer(), nil
	}

	response, err := s.complete(ctx, results, query, format)
	if err != nil {
		return SynthesizedAnswer{}, jaccerrors.SynthesisError(err)
	}

	return SynthesizedAnswer{
		Response:           response,
		Sources:            buildAttributions(results),
		Confidence:         synthesisConfidence(results),
		SearchResultsCount: len(results),
	}, nil
}

func (s *Synthesizer) complete(ctx context.Context, results []search.SearchResult, query, format string) (string, error) {
	var contextBlock strings.Builder
	for i, r := range results {
		content := search.TruncateUTF8(r.Content, contextCharsPerResult)
		name := r.Metadata.DocumentName
		if name == "" {
			name = "unknown source"
		}
		fmt.Fprintf(&contextBlock, "[%d] %s:\n%s\n\n", i+1, name, content)
	}

	formatInstruction := "Answer in a detailed, well-structured way."
	switch format {
	case FormatConcise:
		formatInstruction = "Answer in at most three sentences."
	case FormatBullet:
		formatInstruction = "Answer as a short bullet list."
	}

	return s.completer.Complete(ctx, provider.CompletionRequest{
		System: "You answer questions for payment-processing sales agents using only the " +
			"provided sources. Cite sources by their bracketed number. If the sources do not " +
			"contain the answer, say so. Never invent rates, phone numbers, or policy details.",
		Messages: []provider.Message{{
			Role: "user",
			Content: "Sources:\n" + contextBlock.String() +
				"Question: " + query + "\n\n" + formatInstruction,
		}},
		MaxTokens:   600,
		Temperature: 0.2,
	})
}

// synthesisConfidence averages a result-count-quality term with the mean
// per-result relevance, capped at 1.0.
func synthesisConfidence(results []search.SearchResult) float64 {
	countQuality := 0.9
	if len(results) < 3 {
		countQuality = float64(len(results)) * 0.3
	}

	var sum float64
	for _, r := range results {
		sum += r.Score
	}
	meanRelevance := sum / float64(len(results))

	confidence := (countQuality + meanRelevance) / 2
	return min(confidence, 1.0)
}

func buildAttributions(results []search.SearchResult) []Attribution {
	sources := make([]Attribution, 0, len(results))
	seen := make(map[string]bool, len(results))
	for _, r := range results {
		name := r.Metadata.DocumentName
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		sources = append(sources, Attribution{
			DocumentName: name,
			Relevance:    r.Score,
		})
	}
	return sources
}
