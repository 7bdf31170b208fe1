package keywords

import (
	"context"
	"strings"
)

// layeredExtractor runs the rules layer first and tops up with the LLM
// layer when one is configured.
type layeredExtractor struct {
	layers   []Layer
	maxTerms int
}

// NewExtractor creates an extractor from the given layers, consulted in
// order until MaxTerms terms are gathered.
func NewExtractor(layers ...Layer) Extractor {
	return &layeredExtractor{
		layers:   layers,
		maxTerms: defaultMaxTerms,
	}
}

// Extract gathers deduplicated terms from all layers.
func (e *layeredExtractor) Extract(ctx context.Context, req *ExtractRequest) []string {
	max := req.MaxTerms
	if max <= 0 {
		max = e.maxTerms
	}

	seen := make(map[string]bool)
	var terms []string
	for _, layer := range e.layers {
		for _, term := range layer.Extract(ctx, req) {
			key := strings.ToLower(term)
			if seen[key] {
				continue
			}
			seen[key] = true
			terms = append(terms, term)
			if len(terms) >= max {
				return terms
			}
		}
	}
	return terms
}

var _ Extractor = (*layeredExtractor)(nil)
