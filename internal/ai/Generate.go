package ai

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"template_shop_server/internal/ai/prompts"
	"template_shop_server/internal/apperr"
	"template_shop_server/internal/metrics"
	"template_shop_server/internal/types"
)

// Generate builds the prompt for prefs, calls the completer once and
// validates the answer for the configured mode. Nothing is retried here.
func (s *Service) Generate(ctx context.Context, prefs types.UserPreferences) (*types.GeneratedTemplate, error) {
	if prefs.Subject() == "" {
		return nil, apperr.Validation("Please describe the website you want (topic is required).")
	}

	var userPrompt string
	switch s.mode {
	case ModeStructured:
		userPrompt = prompts.GetStructuredPrompt(prefs)
	default:
		userPrompt = prompts.GetDocumentPrompt(prefs)
	}

	if s.maxPromptTokens > 0 && s.countTokens != nil {
		if n := s.countTokens(prompts.SystemPrompt + userPrompt); n > s.maxPromptTokens {
			s.logger.Info("Prompt over token budget", zap.Int("tokens", n), zap.Int("max", s.maxPromptTokens))
			return nil, apperr.Validation("Your description is too long. Please shorten it and try again.")
		}
	}

	provider := s.completer.Provider()
	start := time.Now()
	raw, err := s.completer.Complete(ctx, prompts.SystemPrompt, userPrompt)
	metrics.GenerationDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GenerationRequests.WithLabelValues(provider, statusLabel(err)).Inc()
		s.logger.Warn("Generation call failed", zap.String("provider", provider), zap.Error(err))
		return nil, err
	}

	tpl := &types.GeneratedTemplate{
		ID:          uuid.NewString(),
		Preferences: prefs,
		CreatedAt:   time.Now().UTC(),
	}
	switch s.mode {
	case ModeStructured:
		st, err := ParseStructured(raw)
		if err != nil {
			metrics.GenerationRequests.WithLabelValues(provider, statusLabel(err)).Inc()
			s.logger.Warn("Unexpected structured response", zap.Error(err), zap.Int("length", len(raw)))
			return nil, err
		}
		tpl.Name = strings.TrimSpace(st.Name)
		if tpl.Name == "" {
			tpl.Name = types.DefaultTemplateName(prefs)
		}
		tpl.Format = types.FormatStructured
		tpl.HTMLContent, tpl.CSS, tpl.JavaScript = st.HTML, st.CSS, st.JavaScript
	default:
		html, err := ParseDocument(raw)
		if err != nil {
			metrics.GenerationRequests.WithLabelValues(provider, statusLabel(err)).Inc()
			s.logger.Warn("Invalid document response", zap.Error(err), zap.Int("length", len(raw)))
			return nil, err
		}
		tpl.Format = types.FormatDocument
		tpl.Name = types.DefaultTemplateName(prefs)
		tpl.HTMLContent = html
	}

	metrics.GenerationRequests.WithLabelValues(provider, "success").Inc()
	s.logger.Info("Template generated",
		zap.String("template_id", tpl.ID),
		zap.String("provider", provider),
		zap.String("mode", string(s.mode)),
		zap.Duration("latency", time.Since(start)),
	)
	return tpl, nil
}

func statusLabel(err error) string {
	return string(apperr.KindOf(err)) + "_error"
}
