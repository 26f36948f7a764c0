package search

import "strings"

// domainTerms keys off Intent.Domain. These supplement the user's own
// words with vocabulary the documents actually use.
var domainTerms = map[string][]string{
	"payments":   {"processing", "transaction", "merchant", "settlement"},
	"processors": {"processor", "acquirer", "gateway", "platform"},
	"rates":      {"pricing", "interchange", "fees", "basis points"},
	"technical":  {"integration", "api", "terminal", "configuration"},
	"compliance": {"pci", "regulation", "underwriting", "risk"},
}

// intentTerms keys off Intent.Type.
var intentTerms = map[string][]string{
	IntentSearch:          {"overview", "details"},
	IntentComparison:      {"versus", "difference", "comparison"},
	IntentCalculation:     {"rate", "cost", "calculation", "formula"},
	IntentRecommendation:  {"best", "recommended", "options"},
	IntentTroubleshooting: {"error", "fix", "troubleshoot", "resolve"},
}

// GenerateSearchTerms builds the deterministic term set for a query:
// query tokens over 2 chars, entity tokens over 2 chars, plus the static
// domain and intent vocabularies. Pure, no network, no failure mode.
func GenerateSearchTerms(query string, entities []string, intent Intent) []string {
	seen := make(map[string]bool)
	var terms []string
	add := func(t string) {
		t = strings.ToLower(strings.TrimSpace(t))
		if len(t) <= 2 || seen[t] {
			return
		}
		seen[t] = true
		terms = append(terms, t)
	}

	for _, tok := range Tokenize(query) {
		add(tok)
	}
	for _, entity := range entities {
		for _, tok := range Tokenize(entity) {
			add(tok)
		}
	}
	for _, t := range domainTerms[strings.ToLower(intent.Domain)] {
		add(t)
	}
	for _, t := range intentTerms[strings.ToLower(intent.Type)] {
		add(t)
	}
	return terms
}
