// Package utils provides tiktoken-based token estimation for backends that do
// not report usage.
package utils

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"ganesha/pkg/agent/llm"
)

// TokenCounter counts tokens with the cl100k encoding used by GPT-4. Local and
// Claude models tokenize differently; the count is an estimate for accounting.
type TokenCounter struct {
	codec tokenizer.Codec
}

//nolint:gochecknoglobals // codec construction is expensive, share one
var (
	defaultCounter     *TokenCounter
	defaultCounterOnce sync.Once
)

// NewTokenCounter returns a counter. It never fails: a missing codec degrades
// to the 4-characters-per-token heuristic.
func NewTokenCounter() *TokenCounter {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return &TokenCounter{}
	}
	return &TokenCounter{codec: codec}
}

// CountTokens returns the number of tokens in text.
func (tc *TokenCounter) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	if tc == nil || tc.codec == nil {
		return len(text) / 4
	}
	count, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

// CountTokens counts with the shared default counter.
func CountTokens(text string) int {
	defaultCounterOnce.Do(func() {
		defaultCounter = NewTokenCounter()
	})
	return defaultCounter.CountTokens(text)
}

// EstimateUsage fills in usage for a completion when the backend left it empty.
func EstimateUsage(req llm.CompletionRequest, resp llm.CompletionResponse) llm.Usage {
	if resp.Usage.Total() > 0 {
		return resp.Usage
	}
	prompt := 0
	for i := range req.Messages {
		prompt += CountTokens(req.Messages[i].Content)
	}
	return llm.Usage{PromptTokens: prompt, CompletionTokens: CountTokens(resp.Content)}
}
