// Package keywords provides semantic-term extraction for chat turns.
// The chat orchestration layer normally supplies extracted keywords with
// the turn artifacts; this package backfills them when it does not, using
// a cheap rules layer and an optional LLM layer.
package keywords

import "context"

// Extractor produces semantic terms for a turn's message text.
type Extractor interface {
	// Extract returns up to req.MaxTerms keywords for the message.
	Extract(ctx context.Context, req *ExtractRequest) []string
}

// ExtractRequest contains parameters for keyword extraction.
type ExtractRequest struct {
	Message  string // Turn message text
	MaxTerms int    // Maximum terms to return (default: 5)
}

// Layer is a single extraction strategy in the pipeline.
type Layer interface {
	// Name returns the layer name for logging.
	Name() string
	// Extract returns this layer's candidate terms.
	Extract(ctx context.Context, req *ExtractRequest) []string
}

const defaultMaxTerms = 5
