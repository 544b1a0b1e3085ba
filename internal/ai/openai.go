package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"template_shop_server/internal/apperr"
	"template_shop_server/internal/utils"
)

var _ Completer = (*OpenAIClient)(nil)

// OpenAIClient talks to OpenAI or any API-compatible gateway (BaseURL).
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
	logger      *zap.Logger
}

type OpenAIConfig struct {
	APIKey      string
	BaseURL     string // optional, e.g. https://openrouter.ai/api/v1
	Model       string
	Temperature float32
	Timeout     time.Duration
}

func NewOpenAIClient(cfg OpenAIConfig, logger *zap.Logger) *OpenAIClient {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       model,
		temperature: cfg.Temperature,
		logger:      logger.Named("OpenAIClient"),
	}
}

func (c *OpenAIClient) Provider() string { return "openai" }

func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
			Temperature: c.temperature,
		},
	)
	if err != nil {
		return "", classify(err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		c.logger.Warn("Empty completion", zap.String("model", c.model), zap.Int("total_tokens", resp.Usage.TotalTokens))
		return "", apperr.Generation(msgEmptyResponse, errors.New("no choices or empty content"))
	}

	c.logger.Debug("Completion received",
		zap.String("model", c.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return resp.Choices[0].Message.Content, nil
}

// classify maps a provider error onto the error taxonomy.
func classify(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case utils.IsAuthFailure(err):
		return apperr.Generation("The generation service rejected our credentials. Please check the API key configuration.", err)
	case utils.IsTransient(err):
		return apperr.Network("Could not reach the generation service. Please try again.", err)
	default:
		return apperr.Generation("Failed to generate the website template. Please try again.", err)
	}
}
