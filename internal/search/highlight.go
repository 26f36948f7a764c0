package search

import (
	"strings"
	"unicode/utf8"
)

// TruncateUTF8 shortens s to at most limit bytes, backing off the cut so
// a multi-byte rune is never split.
func TruncateUTF8(s string, limit int) string {
	if limit < 0 || len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// Tokenize splits a query on whitespace, lowercased, punctuation-trimmed.
func Tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()[]{}")
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// FindKeywordMatches returns the subset of terms present in content,
// case-insensitive, preserving term order. Pure string work, no I/O.
func FindKeywordMatches(content string, terms []string) []string {
	lower := strings.ToLower(content)
	var matched []string
	seen := make(map[string]bool, len(terms))
	for _, term := range terms {
		t := strings.ToLower(strings.TrimSpace(term))
		if t == "" || seen[t] {
			continue
		}
		if strings.Contains(lower, t) {
			matched = append(matched, t)
			seen[t] = true
		}
	}
	return matched
}

// HighlightSearchTerms wraps each case-insensitive occurrence of the
// matched terms in ** markers. Longer terms are applied first so a term
// that contains another term is not mangled by the shorter one.
func HighlightSearchTerms(content string, matches []string) string {
	if content == "" || len(matches) == 0 {
		return content
	}

	ordered := append([]string(nil), matches...)
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && len(ordered[j]) > len(ordered[j-1]); j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}

	for _, term := range ordered {
		if term == "" {
			continue
		}
		content = highlightTerm(content, term)
	}
	return content
}

func highlightTerm(content, term string) string {
	lower := strings.ToLower(content)
	needle := strings.ToLower(term)

	var b strings.Builder
	start := 0
	for {
		idx := strings.Index(lower[start:], needle)
		if idx < 0 {
			b.WriteString(content[start:])
			return b.String()
		}
		abs := start + idx
		end := abs + len(needle)

		// Skip occurrences already inside markers from a longer term: an
		// odd number of preceding delimiters means we are inside a span.
		if strings.Count(content[:abs], "**")%2 == 1 {
			b.WriteString(content[start:end])
			start = end
			continue
		}

		b.WriteString(content[start:abs])
		b.WriteString("**")
		b.WriteString(content[abs:end])
		b.WriteString("**")
		start = end
	}
}
