package types

import (
	"strings"
	"time"
)

// UserPreferences is what the form collects before a generation call.
// Either Topic (structured form) or Description (free-text form) must be set.
type UserPreferences struct {
	WebsiteType      string   `json:"websiteType"`
	Topic            string   `json:"topic"`
	Sections         []string `json:"sections"`
	ColorScheme      string   `json:"colorScheme"`
	SpecificRequests string   `json:"specificRequests,omitempty"`
	Description      string   `json:"description,omitempty"`
}

// Subject returns the text that names the site: the topic, or the free-text
// description when the structured topic is empty.
func (p UserPreferences) Subject() string {
	if t := strings.TrimSpace(p.Topic); t != "" {
		return t
	}
	return strings.TrimSpace(p.Description)
}

// SplitSections turns the form's comma list into trimmed, non-empty entries.
func SplitSections(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Template formats.
const (
	FormatDocument   = "document"
	FormatStructured = "structured"
)

// GeneratedTemplate is one artifact returned by the generation service.
// Document-mode templates only fill HTMLContent; structured ones also carry
// CSS and, optionally, JavaScript. Either may be empty.
type GeneratedTemplate struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Format      string          `json:"format"`
	HTMLContent string          `json:"htmlContent"`
	CSS         string          `json:"css,omitempty"`
	JavaScript  string          `json:"javascript,omitempty"`
	Preferences UserPreferences `json:"preferences"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Structured reports whether the template was produced as separate artifacts.
func (t GeneratedTemplate) Structured() bool {
	return t.Format == FormatStructured
}

// DefaultTemplateName names a document-mode template after its subject.
func DefaultTemplateName(p UserPreferences) string {
	subject := strings.TrimSpace(p.Topic)
	if subject == "" {
		subject = "General Use"
	}
	return "Website for " + subject
}

// GeneratedFile is a single downloadable artifact of a template.
type GeneratedFile struct {
	Filename string `json:"filename"`
	Type     string `json:"type"` // MIME type, e.g. "text/css; charset=utf-8"
	Content  string `json:"content"`
}
