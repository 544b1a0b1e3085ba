package ai

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"template_shop_server/internal/types"
)

// Generator turns a set of preferences into a previewable template.
type Generator interface {
	Generate(ctx context.Context, prefs types.UserPreferences) (*types.GeneratedTemplate, error)
}

// Completer is one chat-completion backend. Implementations return
// *apperr.Error values classified as Network or Generation.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Provider() string
}

// Mode selects the response contract asked of the model.
type Mode string

const (
	ModeDocument   Mode = "document"   // one raw HTML document
	ModeStructured Mode = "structured" // JSON {name, html, css, javascript?}
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDocument, ModeStructured:
		return Mode(s), nil
	case "":
		return ModeDocument, nil
	}
	return "", fmt.Errorf("unknown generation mode %q", s)
}

// TokenCounter estimates the prompt size in model tokens.
type TokenCounter func(text string) int

var _ Generator = (*Service)(nil)

// Service is the Generator used by the flow controller.
type Service struct {
	completer       Completer
	mode            Mode
	maxPromptTokens int
	countTokens     TokenCounter
	logger          *zap.Logger
}

type Option func(*Service)

// WithPromptLimit rejects prompts above max tokens as a validation error.
// A max of zero disables the check.
func WithPromptLimit(max int, counter TokenCounter) Option {
	return func(s *Service) {
		s.maxPromptTokens = max
		s.countTokens = counter
	}
}

func NewService(completer Completer, mode Mode, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		completer: completer,
		mode:      mode,
		logger:    logger.Named("Generator"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Mode() Mode { return s.mode }
