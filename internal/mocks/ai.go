package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"template_shop_server/internal/types"
)

// Completer mocks ai.Completer.
type Completer struct {
	mock.Mock
}

func (m *Completer) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	args := m.Called(ctx, systemPrompt, userPrompt)
	return args.String(0), args.Error(1)
}

func (m *Completer) Provider() string {
	return "mock"
}

// Generator mocks ai.Generator.
type Generator struct {
	mock.Mock
}

func (m *Generator) Generate(ctx context.Context, prefs types.UserPreferences) (*types.GeneratedTemplate, error) {
	args := m.Called(ctx, prefs)
	tpl, _ := args.Get(0).(*types.GeneratedTemplate)
	return tpl, args.Error(1)
}
