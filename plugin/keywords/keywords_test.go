package keywords

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRulesLayer_Acronyms(t *testing.T) {
	layer := NewRulesLayer()

	terms := layer.Extract(context.Background(), &ExtractRequest{
		Message: "Can you summarize the CUI handling rules from the SOP document?",
	})

	assert.Contains(t, terms, "CUI")
	assert.Contains(t, terms, "SOP")
}

func TestRulesLayer_CapitalizedPhrases(t *testing.T) {
	layer := NewRulesLayer()

	terms := layer.Extract(context.Background(), &ExtractRequest{
		Message: "Please compare this against the Quarterly Budget Review from last month",
	})

	assert.Contains(t, terms, "Quarterly Budget Review")
}

func TestRulesLayer_FiltersStopwordsAndRespectsMax(t *testing.T) {
	layer := NewRulesLayer()

	terms := layer.Extract(context.Background(), &ExtractRequest{
		Message:  "should would could about things regarding compliance requirements documentation standards procedures",
		MaxTerms: 3,
	})

	assert.LessOrEqual(t, len(terms), 3)
	assert.NotContains(t, terms, "should")
	assert.NotContains(t, terms, "would")
}

func TestRulesLayer_EmptyMessage(t *testing.T) {
	layer := NewRulesLayer()
	terms := layer.Extract(context.Background(), &ExtractRequest{Message: ""})
	assert.Empty(t, terms)
}

// staticLayer is a test double returning fixed terms.
type staticLayer struct {
	name  string
	terms []string
}

func (l *staticLayer) Name() string { return l.name }

func (l *staticLayer) Extract(_ context.Context, _ *ExtractRequest) []string {
	return l.terms
}

func TestLayeredExtractor_DeduplicatesAcrossLayers(t *testing.T) {
	extractor := NewExtractor(
		&staticLayer{name: "a", terms: []string{"budget", "Compliance"}},
		&staticLayer{name: "b", terms: []string{"compliance", "audit"}},
	)

	terms := extractor.Extract(context.Background(), &ExtractRequest{Message: "x", MaxTerms: 5})
	assert.Equal(t, []string{"budget", "Compliance", "audit"}, terms)
}

func TestLayeredExtractor_StopsAtMax(t *testing.T) {
	extractor := NewExtractor(
		&staticLayer{name: "a", terms: []string{"one", "two", "three", "four"}},
	)

	terms := extractor.Extract(context.Background(), &ExtractRequest{Message: "x", MaxTerms: 2})
	assert.Equal(t, []string{"one", "two"}, terms)
}

func TestParseKeywordArray(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected []string
	}{
		{
			name:     "plain array",
			content:  `["alpha", "beta"]`,
			expected: []string{"alpha", "beta"},
		},
		{
			name:     "fenced array",
			content:  "```json\n[\"alpha\", \"beta\"]\n```",
			expected: []string{"alpha", "beta"},
		},
		{
			name:     "surrounding prose",
			content:  `Here are the keywords: ["alpha"] as requested.`,
			expected: []string{"alpha"},
		},
		{
			name:     "no array",
			content:  "no keywords found",
			expected: nil,
		},
		{
			name:     "invalid json",
			content:  `[alpha, beta]`,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseKeywordArray(tt.content, 5))
		})
	}
}
