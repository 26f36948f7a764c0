package search

import "strings"

// Payment-domain synonym dictionary for the expanded keyword pass.
//
// Support agents and documentation rarely share vocabulary: an agent asks
// about "pricing" while the rate sheet says "interchange" or "basis
// points". The tables map agent vocabulary to document vocabulary, they
// are not symmetric.
var DomainSynonyms = map[string][]string{
	// Pricing and fees
	"pricing":     {"rates", "fees", "costs", "interchange", "markup"},
	"rates":       {"pricing", "fees", "interchange", "basis points"},
	"fees":        {"pricing", "rates", "costs", "charges", "surcharge"},
	"cost":        {"fee", "rate", "pricing", "charge"},
	"interchange": {"rates", "pricing", "pass-through", "basis points"},
	"surcharge":   {"fee", "cash discount", "dual pricing"},

	// Hardware and terminals
	"terminal":  {"device", "machine", "equipment", "pos", "reader"},
	"pos":       {"terminal", "point of sale", "register", "device"},
	"equipment": {"terminal", "device", "hardware", "machine"},
	"reader":    {"terminal", "swiper", "device"},

	// Processing lifecycle
	"settlement": {"batch", "deposit", "funding", "payout"},
	"batch":      {"settlement", "close", "deposit"},
	"funding":    {"deposit", "settlement", "payout", "next day"},
	"decline":    {"declined", "rejection", "failed", "error code"},
	"refund":     {"return", "credit", "reversal"},
	"chargeback": {"dispute", "reversal", "retrieval request"},
	"dispute":    {"chargeback", "retrieval", "representment"},

	// Merchant lifecycle
	"application": {"onboarding", "boarding", "signup", "merchant agreement"},
	"onboarding":  {"application", "boarding", "underwriting", "setup"},
	"account":     {"merchant", "mid", "profile"},
	"merchant":    {"account", "business", "mid"},
	"statement":   {"bill", "invoice", "monthly statement"},

	// Support
	"support":  {"help", "assistance", "customer service", "helpdesk"},
	"help":     {"support", "assistance", "customer service"},
	"contact":  {"phone", "support", "email", "hours"},
	"hours":    {"support", "availability", "contact"},
	"phone":    {"contact", "number", "support line"},
	"problem":  {"issue", "error", "trouble", "failure"},
	"issue":    {"problem", "error", "trouble"},

	// Integrations
	"gateway":     {"processor", "integration", "api", "virtual terminal"},
	"integration": {"gateway", "api", "connection"},
	"compliance":  {"pci", "regulation", "requirements", "kyc"},
	"pci":         {"compliance", "security", "certification"},
}

// VendorCorrections fixes common misspellings of processor and vendor
// names seen in agent queries. Keys are lowercase.
var VendorCorrections = map[string]string{
	"clearant":   "clearent",
	"clearnt":    "clearent",
	"klairent":   "clearent",
	"tracer pay": "tracerpay",
	"tracer-pay": "tracerpay",
	"traserpay":  "tracerpay",
	"shift 4":    "shift4",
	"shift four": "shift4",
	"fiserve":       "fiserv",
	"first data":    "fiserv",
	"global pay":    "global payments",
	"authorizenet":  "authorize.net",
	"authorize net": "authorize.net",
	"quantic pay":   "quantic",
}

// CorrectVendorTypos rewrites known vendor misspellings in a lowercase
// query. Longer patterns are applied via simple substring replacement;
// with tables this small that is cheap enough per query.
func CorrectVendorTypos(query string) string {
	lower := strings.ToLower(query)
	for typo, fixed := range VendorCorrections {
		if strings.Contains(lower, typo) {
			lower = strings.ReplaceAll(lower, typo, fixed)
		}
	}
	return lower
}

// ExpandTerms returns the synonym expansions for a tokenized query,
// original terms excluded, deduplicated in first-seen order.
func ExpandTerms(terms []string, maxPerTerm int) []string {
	if maxPerTerm <= 0 {
		maxPerTerm = 3
	}
	seen := make(map[string]bool, len(terms))
	for _, t := range terms {
		seen[strings.ToLower(t)] = true
	}

	var expanded []string
	for _, t := range terms {
		syns, ok := DomainSynonyms[strings.ToLower(t)]
		if !ok {
			continue
		}
		added := 0
		for _, s := range syns {
			if added >= maxPerTerm {
				break
			}
			if seen[s] {
				continue
			}
			seen[s] = true
			expanded = append(expanded, s)
			added++
		}
	}
	return expanded
}
