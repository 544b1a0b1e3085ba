package utils

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/sashabaranov/go-openai"
)

// IsTransient reports whether err looks like a transport or provider
// capacity problem (worth a "try again") rather than a bad answer.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var openAIErr *openai.APIError
	if errors.As(err, &openAIErr) {
		return openAIErr.HTTPStatusCode >= 500 || openAIErr.HTTPStatusCode == 429
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode >= 500 || reqErr.HTTPStatusCode == 429
	}
	var ollamaErr api.StatusError
	if errors.As(err, &ollamaErr) {
		return ollamaErr.StatusCode >= 500 || ollamaErr.StatusCode == 429
	}

	errMsg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"rate limit",
		"502 bad gateway",
		"503 service unavailable",
		"504 gateway timeout",
		"timeout",
		"connection refused",
		"connection reset by peer",
		"no such host",
		"eof",
	} {
		if strings.Contains(errMsg, marker) {
			return true
		}
	}
	return false
}

// IsAuthFailure reports a rejected API key.
func IsAuthFailure(err error) bool {
	var openAIErr *openai.APIError
	if errors.As(err, &openAIErr) {
		return openAIErr.HTTPStatusCode == 401 || openAIErr.HTTPStatusCode == 403
	}
	var ollamaErr api.StatusError
	if errors.As(err, &ollamaErr) {
		return ollamaErr.StatusCode == 401 || ollamaErr.StatusCode == 403
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "invalid api key") || strings.Contains(msg, "api key not valid")
}

// MIMEType maps an exported artifact's extension to its download type.
func MIMEType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".html", ".htm":
		return "text/html; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	case ".js":
		return "application/javascript; charset=utf-8"
	case ".json":
		return "application/json; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

// Slug lowercases name and replaces runs of whitespace with underscores.
func Slug(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), "_"))
}
