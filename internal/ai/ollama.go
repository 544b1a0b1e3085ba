package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"template_shop_server/internal/apperr"
)

var _ Completer = (*OllamaClient)(nil)

// OllamaClient runs generation against a local Ollama server.
type OllamaClient struct {
	client      *api.Client
	model       string
	temperature float32
	logger      *zap.Logger
}

// NewOllamaClient expects the server root (http://localhost:11434); a
// trailing /v1 from an OpenAI-style URL is tolerated.
func NewOllamaClient(baseURL, model string, temperature float32, timeout time.Duration, logger *zap.Logger) (*OllamaClient, error) {
	base := strings.TrimSuffix(strings.TrimSuffix(baseURL, "/"), "/v1")
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse ollama url %q: %w", baseURL, err)
	}
	return &OllamaClient{
		client:      api.NewClient(parsed, &http.Client{Timeout: timeout}),
		model:       model,
		temperature: temperature,
		logger:      logger.Named("OllamaClient"),
	}, nil
}

func (c *OllamaClient) Provider() string { return "ollama" }

func (c *OllamaClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	stream := false
	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Stream:  &stream,
		Options: map[string]interface{}{"temperature": c.temperature},
	}

	var content strings.Builder
	var last api.ChatResponse
	err := c.client.Chat(ctx, req, func(r api.ChatResponse) error {
		content.WriteString(r.Message.Content)
		last = r
		return nil
	})
	if err != nil {
		return "", classify(err)
	}

	if strings.TrimSpace(content.String()) == "" {
		c.logger.Warn("Empty completion", zap.String("model", c.model))
		return "", apperr.Generation(msgEmptyResponse, errors.New("empty message content"))
	}

	c.logger.Debug("Completion received",
		zap.String("model", c.model),
		zap.Int("prompt_tokens", last.PromptEvalCount),
		zap.Int("completion_tokens", last.EvalCount),
	)
	return content.String(), nil
}
