package keywords

import (
	"context"
	"strings"
	"unicode"
)

// RulesLayer extracts candidate terms without any model call: acronyms,
// capitalized phrases, and frequent long tokens. Fast and always available.
type RulesLayer struct{}

// NewRulesLayer creates a new rules layer.
func NewRulesLayer() *RulesLayer {
	return &RulesLayer{}
}

// Name returns the layer name.
func (l *RulesLayer) Name() string {
	return "rules"
}

var stopwords = map[string]bool{
	"about": true, "after": true, "again": true, "being": true, "below": true,
	"between": true, "could": true, "every": true, "from": true, "have": true,
	"please": true, "should": true, "their": true, "there": true, "these": true,
	"thing": true, "this": true, "those": true, "using": true, "what": true,
	"when": true, "where": true, "which": true, "while": true, "will": true,
	"with": true, "would": true, "your": true,
}

// Extract returns rules-based candidate terms, ordered by first appearance.
func (l *RulesLayer) Extract(_ context.Context, req *ExtractRequest) []string {
	max := req.MaxTerms
	if max <= 0 {
		max = defaultMaxTerms
	}

	seen := make(map[string]bool)
	var terms []string
	add := func(term string) {
		key := strings.ToLower(term)
		if !seen[key] {
			seen[key] = true
			terms = append(terms, term)
		}
	}

	tokens := strings.FieldsFunc(req.Message, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})

	// Acronyms first: they are the strongest signal in enterprise chat.
	for _, tok := range tokens {
		if len(tok) >= 2 && len(tok) <= 6 && tok == strings.ToUpper(tok) && hasLetter(tok) {
			add(tok)
		}
	}

	// Capitalized runs ("Quarterly Report") read as named entities.
	for i := 0; i < len(tokens); i++ {
		if !isCapitalized(tokens[i]) || i == 0 {
			continue
		}
		j := i
		for j+1 < len(tokens) && isCapitalized(tokens[j+1]) {
			j++
		}
		if j > i {
			add(strings.Join(tokens[i:j+1], " "))
			i = j
		}
	}

	// Long tokens as a fallback.
	for _, tok := range tokens {
		lower := strings.ToLower(tok)
		if len(tok) >= 5 && !stopwords[lower] && tok != strings.ToUpper(tok) {
			add(lower)
		}
	}

	if len(terms) > max {
		terms = terms[:max]
	}
	return terms
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func isCapitalized(s string) bool {
	if s == "" {
		return false
	}
	runes := []rune(s)
	return unicode.IsUpper(runes[0]) && len(runes) > 1 && !unicode.IsUpper(runes[1])
}
