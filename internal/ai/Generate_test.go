package ai_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"template_shop_server/internal/ai"
	"template_shop_server/internal/apperr"
	"template_shop_server/internal/mocks"
	"template_shop_server/internal/types"
)

var bakery = types.UserPreferences{
	WebsiteType: "Business",
	Topic:       "Artisan bakery",
	Sections:    []string{"Hero", "Menu", "Contact"},
	ColorScheme: "warm pastels",
}

func TestGenerateDocumentMode(t *testing.T) {
	completer := &mocks.Completer{}
	completer.On("Complete", mock.Anything, mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "Artisan bakery") && strings.Contains(p, "Hero, Menu, Contact")
	})).Return("<!DOCTYPE html><html><body>Bread</body></html>", nil).Once()

	svc := ai.NewService(completer, ai.ModeDocument, zap.NewNop())
	tpl, err := svc.Generate(context.Background(), bakery)

	require.NoError(t, err)
	assert.NotEmpty(t, tpl.ID)
	assert.Equal(t, "Website for Artisan bakery", tpl.Name)
	assert.Equal(t, "<!DOCTYPE html><html><body>Bread</body></html>", tpl.HTMLContent)
	assert.Equal(t, bakery, tpl.Preferences)
	assert.False(t, tpl.Structured())
	completer.AssertExpectations(t)
}

func TestGenerateStructuredMode(t *testing.T) {
	completer := &mocks.Completer{}
	completer.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return("```json\n{\"name\":\"Crumb\",\"html\":\"<h1>Crumb</h1>\",\"css\":\"h1{}\"}\n```", nil)

	svc := ai.NewService(completer, ai.ModeStructured, zap.NewNop())
	tpl, err := svc.Generate(context.Background(), types.UserPreferences{Description: "a bakery landing page"})

	require.NoError(t, err)
	assert.Equal(t, "Crumb", tpl.Name)
	assert.Equal(t, "h1{}", tpl.CSS)
	assert.True(t, tpl.Structured())
}

func TestGenerateStructuredModeWithoutStyles(t *testing.T) {
	completer := &mocks.Completer{}
	completer.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return(`{"name":"Plain","html":"<h1>Plain</h1>","css":""}`, nil)

	svc := ai.NewService(completer, ai.ModeStructured, zap.NewNop())
	tpl, err := svc.Generate(context.Background(), types.UserPreferences{Description: "a plain page"})

	require.NoError(t, err)
	assert.Equal(t, types.FormatStructured, tpl.Format)
	assert.True(t, tpl.Structured())
}

func TestGenerateRequiresTopic(t *testing.T) {
	completer := &mocks.Completer{}
	svc := ai.NewService(completer, ai.ModeDocument, zap.NewNop())

	_, err := svc.Generate(context.Background(), types.UserPreferences{Topic: "   "})

	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	completer.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
}

func TestGeneratePromptLimit(t *testing.T) {
	completer := &mocks.Completer{}
	svc := ai.NewService(completer, ai.ModeDocument, zap.NewNop(),
		ai.WithPromptLimit(10, func(string) int { return 11 }))

	_, err := svc.Generate(context.Background(), bakery)

	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	completer.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateInvalidDocument(t *testing.T) {
	completer := &mocks.Completer{}
	completer.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("I cannot help with that.", nil)

	_, err := ai.NewService(completer, ai.ModeDocument, zap.NewNop()).Generate(context.Background(), bakery)

	assert.Equal(t, apperr.KindGeneration, apperr.KindOf(err))
}

func TestGeneratePassesCompleterErrorsThrough(t *testing.T) {
	completer := &mocks.Completer{}
	netErr := apperr.Network("Could not reach the generation service.", errors.New("dial tcp"))
	completer.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("", netErr)

	_, err := ai.NewService(completer, ai.ModeDocument, zap.NewNop()).Generate(context.Background(), bakery)

	assert.ErrorIs(t, err, netErr)
}

func TestOpenAIClientComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":"<!DOCTYPE html><p>ok</p>"},"finish_reason":"stop"}],"usage":{"prompt_tokens":5,"completion_tokens":3,"total_tokens":8}}`))
	}))
	defer srv.Close()

	client := ai.NewOpenAIClient(ai.OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1", Timeout: 5 * time.Second}, zap.NewNop())
	out, err := client.Complete(context.Background(), "sys", "user")

	require.NoError(t, err)
	assert.Equal(t, "<!DOCTYPE html><p>ok</p>", out)
}

func TestOpenAIClientClassifiesErrors(t *testing.T) {
	cases := []struct {
		status int
		kind   apperr.Kind
	}{
		{http.StatusServiceUnavailable, apperr.KindNetwork},
		{http.StatusTooManyRequests, apperr.KindNetwork},
		{http.StatusUnauthorized, apperr.KindGeneration},
		{http.StatusBadRequest, apperr.KindGeneration},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"error"}}`))
			}))
			defer srv.Close()

			client := ai.NewOpenAIClient(ai.OpenAIConfig{APIKey: "k", BaseURL: srv.URL, Timeout: 5 * time.Second}, zap.NewNop())
			_, err := client.Complete(context.Background(), "sys", "user")

			require.Error(t, err)
			assert.Equal(t, tc.kind, apperr.KindOf(err))
		})
	}
}

func TestOpenAIClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := ai.NewOpenAIClient(ai.OpenAIConfig{APIKey: "k", BaseURL: url, Timeout: time.Second}, zap.NewNop())
	_, err := client.Complete(context.Background(), "sys", "user")

	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(err))
}

func TestOllamaClientComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":"<!DOCTYPE html><p>local</p>"},"done":true}` + "\n"))
	}))
	defer srv.Close()

	client, err := ai.NewOllamaClient(srv.URL+"/v1", "llama3", 0.3, 5*time.Second, zap.NewNop())
	require.NoError(t, err)

	out, err := client.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "<!DOCTYPE html><p>local</p>", out)
}

func TestOllamaClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"model crashed"}`))
	}))
	defer srv.Close()

	client, err := ai.NewOllamaClient(srv.URL, "llama3", 0.3, 5*time.Second, zap.NewNop())
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "sys", "user")
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(err))
}

func TestParseMode(t *testing.T) {
	m, err := ai.ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ai.ModeDocument, m)

	_, err = ai.ParseMode("xml")
	assert.Error(t, err)
}
