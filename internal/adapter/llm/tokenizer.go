// Package llm provides model provider adapters.
package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	defaultEncoder *tiktoken.Tiktoken
	encoderOnce    sync.Once
	encoderErr     error
)

// getEncoder returns the shared tiktoken encoder, initializing it lazily.
// cl100k_base is the GPT-4 encoding and a reasonable approximation for
// other modern models.
func getEncoder() (*tiktoken.Tiktoken, error) {
	encoderOnce.Do(func() {
		defaultEncoder, encoderErr = tiktoken.GetEncoding("cl100k_base")
	})
	return defaultEncoder, encoderErr
}

// EstimateTokens returns an estimated token count for the given text.
// Falls back to a character-based estimate if the encoder is unavailable.
func EstimateTokens(text string) int {
	enc, err := getEncoder()
	if err != nil {
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// Byte budget bounds derived from a token ceiling. Code-heavy text runs
// about 3 bytes per token, which keeps chunk prompts safely under the
// model's input limit; the clamp keeps degenerate configs workable.
const (
	bytesPerToken  = 3
	minChunkBudget = 8 << 10
	maxChunkBudget = 512 << 10
)

// ChunkBudgetBytes converts a model's token ceiling into the chunker's byte
// budget.
func ChunkBudgetBytes(maxTokens int) int {
	budget := maxTokens * bytesPerToken
	if budget < minChunkBudget {
		return minChunkBudget
	}
	if budget > maxChunkBudget {
		return maxChunkBudget
	}
	return budget
}
