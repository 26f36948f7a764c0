// Package search implements the retrieval strategies: multi-pass keyword
// matching, vector similarity, LLM query enhancement and AI-enhanced
// re-scoring. Every strategy maps its candidates into the canonical
// SearchResult shape so downstream ranking only ever sees one type.
package search

// MatchType records which strategy or keyword pass produced a result.
type MatchType string

const (
	MatchExact      MatchType = "exact"
	MatchExpanded   MatchType = "expanded"
	MatchPartial    MatchType = "partial"
	MatchVector     MatchType = "vector"
	MatchAIEnhanced MatchType = "ai-enhanced"
)

// matchRank orders match types for deduplication: a chunk matched by an
// earlier, higher-scoring pass keeps that tag.
var matchRank = map[MatchType]int{
	MatchExact:      5,
	MatchAIEnhanced: 4,
	MatchVector:     3,
	MatchExpanded:   2,
	MatchPartial:    1,
}

// Rank returns the dedup precedence of the match type, higher wins.
func (m MatchType) Rank() int { return matchRank[m] }

// ResultMetadata carries presentation and provenance fields.
type ResultMetadata struct {
	DocumentName   string    `json:"documentName,omitempty"`
	MimeType       string    `json:"mimeType,omitempty"`
	ChunkIndex     int       `json:"chunkIndex"`
	MatchType      MatchType `json:"matchType"`
	RelevanceScore float64   `json:"relevanceScore,omitempty"`
	SemanticMatch  bool      `json:"semanticMatch,omitempty"`
	KeywordMatches []string  `json:"keywordMatches,omitempty"`
}

// SearchResult is a scored candidate chunk. Score is normalized to
// "higher is better" in roughly [0,1] across every strategy, which is
// what lets the synthesis stage rank a mixed candidate set.
type SearchResult struct {
	ID                 string         `json:"id"`
	DocumentID         string         `json:"documentId"`
	Content            string         `json:"content"`
	HighlightedContent string         `json:"highlightedContent,omitempty"`
	Score              float64        `json:"score"`
	Metadata           ResultMetadata `json:"metadata"`
}

// EnhancedSearchResult is a SearchResult plus LLM enrichment. Enrichment
// fields stay empty when the enrichment call fails; the candidate itself
// is never dropped for that.
type EnhancedSearchResult struct {
	SearchResult
	Relevance          float64  `json:"relevance"`
	ExtractedInsights  []string `json:"extractedInsights,omitempty"`
	SuggestedQuestions []string `json:"suggestedQuestions,omitempty"`
}
