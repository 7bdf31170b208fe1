package keywords

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// LLMConfig configures the LLM extraction layer.
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	// RequestsPerMinute caps extraction calls; keyword backfill must never
	// dominate the account's completion quota.
	RequestsPerMinute int
}

// LLMLayer extracts keywords with a chat-completion call. Optional layer
// with graceful degradation: any failure yields nil, never an error.
type LLMLayer struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	limiter *rate.Limiter
}

// NewLLMLayer creates a new LLM layer.
func NewLLMLayer(cfg LLMConfig) *LLMLayer {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 30
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &LLMLayer{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), cfg.RequestsPerMinute),
	}
}

// Name returns the layer name.
func (l *LLMLayer) Name() string {
	return "llm"
}

const extractPrompt = `Extract the %d most important keywords or key phrases from the following message.

## Message
%s

## Requirements
1. Keywords should be short, 1-4 words each
2. Prefer domain terms, named entities, and topics over generic words
3. Return ONLY a JSON array of strings, e.g.: ["keyword one", "keyword two"]
4. Do not return anything besides the JSON array`

// Extract returns LLM-suggested keywords, or nil when the call fails or
// the rate limit is saturated.
func (l *LLMLayer) Extract(ctx context.Context, req *ExtractRequest) []string {
	if l.client == nil {
		return nil
	}
	if !l.limiter.Allow() {
		slog.Debug("keyword extraction rate limit reached, skipping llm layer")
		return nil
	}

	max := req.MaxTerms
	if max <= 0 {
		max = defaultMaxTerms
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	message := req.Message
	if len(message) > 2000 {
		message = message[:2000] + "..."
	}

	resp, err := l.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: l.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(extractPrompt, max, message)},
		},
		Temperature: 0.1,
	})
	if err != nil {
		slog.Warn("llm keyword extraction failed", "error", err)
		return nil
	}
	if len(resp.Choices) == 0 {
		return nil
	}

	return parseKeywordArray(resp.Choices[0].Message.Content, max)
}

// parseKeywordArray pulls a JSON string array out of a model response,
// tolerating surrounding prose and code fences.
func parseKeywordArray(content string, max int) []string {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return nil
	}

	var raw []string
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		slog.Warn("failed to parse llm keyword response", "error", err)
		return nil
	}

	var terms []string
	for _, term := range raw {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		terms = append(terms, term)
		if len(terms) >= max {
			break
		}
	}
	return terms
}
