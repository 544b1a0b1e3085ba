package ai

import (
	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// NewTiktokenCounter counts tokens with the encoding of model, falling back
// to cl100k_base for models tiktoken does not know (e.g. local Ollama ones).
// If no encoding can be loaded it degrades to a 4-bytes-per-token estimate.
func NewTiktokenCounter(model string, logger *zap.Logger) TokenCounter {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		logger.Warn("Token encoding unavailable, estimating prompt size", zap.String("model", model), zap.Error(err))
		return EstimateTokens
	}
	return func(text string) int {
		return len(enc.Encode(text, nil, nil))
	}
}

// EstimateTokens is a coarse upper-bound-ish estimate for when no encoder is loaded.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
