package prompts

import (
	"fmt"
	"strings"

	"template_shop_server/internal/types"
)

// SystemPrompt frames every generation call.
const SystemPrompt = "You are an expert web designer who produces complete, self-contained, responsive website templates."

// GetDocumentPrompt asks for a single HTML document. Styling is expected as
// utility classes, since embedded <style> blocks are stripped from the answer.
func GetDocumentPrompt(p types.UserPreferences) string {
	sections := "Hero, About, Services, Contact"
	if len(p.Sections) > 0 {
		sections = strings.Join(p.Sections, ", ")
	}
	websiteType := orDefault(p.WebsiteType, "general website")
	colors := orDefault(p.ColorScheme, "a modern, professional palette")
	subject := p.Subject()

	var extra string
	if r := strings.TrimSpace(p.SpecificRequests); r != "" {
		extra = fmt.Sprintf("\n\t\tAdditional requests from the user:\n\t\t---\n\t\t%s\n\t\t---\n", r)
	}

	return fmt.Sprintf(`
		Create a complete single-page website template.

		*   **Website type**: %s
		*   **Topic**: %s
		*   **Sections, in order**: %s
		*   **Color scheme**: %s
		%s
		Rules:
		1.  Return one HTML5 document that starts with <!DOCTYPE html>.
		2.  Load Tailwind CSS from its CDN and style with utility classes only. Do not emit <style> tags.
		3.  Give every section an id matching its name so the navigation can link to it.
		4.  Use semantic elements (header, nav, main, section, footer) and placeholder images from a public placeholder service.
		5.  Keep the HTML well-formatted and readable.

		Provide ONLY the HTML code as your response, with no explanations, comments, or markdown before or after it.
	`, websiteType, subject, sections, colors, extra)
}

// GetStructuredPrompt asks for a JSON object with separate artifacts.
func GetStructuredPrompt(p types.UserPreferences) string {
	description := p.Subject()
	if p.WebsiteType != "" {
		description = p.WebsiteType + ": " + description
	}
	if r := strings.TrimSpace(p.SpecificRequests); r != "" {
		description += ". " + r
	}

	return fmt.Sprintf(`
		Design a website template for the following description:

		---
		"%s"
		---

		Respond with a single JSON object and nothing else:
		{
		  "name": "short, catchy template name",
		  "html": "the body markup, without <html>, <head> or <body> tags",
		  "css": "all styles for the markup",
		  "javascript": "optional script for interactivity, or an empty string"
		}

		The markup must be responsive and accessible. Reference only classes defined in "css".
	`, description)
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}
