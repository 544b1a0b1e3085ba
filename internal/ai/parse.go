package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"template_shop_server/internal/apperr"
)

const (
	msgEmptyResponse   = "The AI returned an empty or invalid response. Please try again."
	msgInvalidDocument = "The AI failed to generate a valid HTML document. The response might be incomplete, malformed, or not HTML after sanitization. Please try again with clearer instructions."
	msgUnexpectedShape = "Failed to parse template data from AI. The response format was unexpected. Please try a different prompt."
)

var (
	fenceRe   = regexp.MustCompile("(?s)^```(\\w*)?\\s*\\n?(.*?)\\n?\\s*```$")
	styleRe   = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	commentRe = regexp.MustCompile(`(?s)<!--.*?-->`)
)

// StructuredTemplate is the JSON object returned in structured mode.
type StructuredTemplate struct {
	Name       string
	HTML       string
	CSS        string
	JavaScript string
}

// StripFence returns the body of a ``` fenced block (any or no language
// tag), or the trimmed input when it is not fenced.
func StripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if m := fenceRe.FindStringSubmatch(s); m != nil && m[2] != "" {
		return strings.TrimSpace(m[2])
	}
	return s
}

// ParseDocument validates a raw HTML response. Embedded <style> blocks and
// comments are dropped, and what is left must start with <!doctype html>.
func ParseDocument(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", apperr.Generation(msgEmptyResponse, nil)
	}

	html := styleRe.ReplaceAllString(raw, "")
	html = commentRe.ReplaceAllString(html, "")
	html = strings.TrimSpace(html)

	if !strings.HasPrefix(strings.ToLower(html), "<!doctype html>") {
		// Models sometimes fence the document despite being told not to.
		unfenced := StripFence(html)
		if !strings.HasPrefix(strings.ToLower(unfenced), "<!doctype html>") {
			return "", apperr.Generation(msgInvalidDocument, nil)
		}
		html = unfenced
	}
	return html, nil
}

// wrapperKeys are the envelope keys models like to put the object under.
var wrapperKeys = []string{"template", "result", "data", "output"}

// ParseStructured decodes a {name, html, css, javascript?} response, fenced
// or not, bare or wrapped under one of the common envelope keys.
func ParseStructured(raw string) (*StructuredTemplate, error) {
	cleaned := StripFence(raw)
	if cleaned == "" {
		return nil, apperr.Generation(msgEmptyResponse, nil)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &obj); err != nil {
		return nil, apperr.Generation(msgUnexpectedShape, fmt.Errorf("decode response: %w", err))
	}

	if _, ok := obj["html"]; !ok {
		for _, key := range wrapperKeys {
			inner, ok := obj[key]
			if !ok {
				continue
			}
			var wrapped map[string]json.RawMessage
			if err := json.Unmarshal(inner, &wrapped); err == nil {
				obj = wrapped
				break
			}
		}
	}

	tpl := &StructuredTemplate{}
	fields := []struct {
		key      string
		dst      *string
		optional bool
	}{
		{"name", &tpl.Name, false},
		{"html", &tpl.HTML, false},
		{"css", &tpl.CSS, false},
		{"javascript", &tpl.JavaScript, true},
	}
	for _, f := range fields {
		v, ok := obj[f.key]
		if !ok || isNull(v) {
			if f.optional {
				continue
			}
			return nil, apperr.Generation(msgUnexpectedShape, fmt.Errorf("missing field %q", f.key))
		}
		if err := json.Unmarshal(v, f.dst); err != nil {
			return nil, apperr.Generation(msgUnexpectedShape, fmt.Errorf("field %q is not a string", f.key))
		}
	}
	return tpl, nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}
