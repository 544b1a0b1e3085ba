// Package render turns generated artifacts into previewable documents that
// can only run script inside an isolated browsing context.
package render

import (
	"fmt"
	"html"
	"strings"

	"template_shop_server/internal/types"
)

// CSP is sent with every raw preview response. "sandbox" without
// allow-same-origin gives the document an opaque origin, so its scripts
// cannot read the shop's cookies or storage.
const CSP = "sandbox allow-scripts; frame-ancestors 'self'"

// SandboxFlags are the iframe sandbox tokens for embedded previews.
const SandboxFlags = "allow-scripts"

// Artifacts are the pieces of a template.
type Artifacts struct {
	HTML string
	CSS  string
	JS   string
}

func FromTemplate(t types.GeneratedTemplate) Artifacts {
	return Artifacts{HTML: t.HTMLContent, CSS: t.CSS, JS: t.JavaScript}
}

// Document assembles a standalone HTML document. A full document is kept
// as-is with CSS injected before </head> and JS before </body>; a fragment
// is wrapped in a minimal page.
func Document(a Artifacts, title string) string {
	if isFullDocument(a.HTML) {
		doc := a.HTML
		if a.CSS != "" {
			doc = insertBefore(doc, "</head>", styleTag(a.CSS))
		}
		if a.JS != "" {
			doc = insertBefore(doc, "</body>", scriptTag(a.JS))
		}
		return doc
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"UTF-8\">\n")
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(title))
	if a.CSS != "" {
		b.WriteString(styleTag(a.CSS))
	}
	b.WriteString("</head>\n<body>\n")
	b.WriteString(a.HTML)
	b.WriteString("\n")
	if a.JS != "" {
		b.WriteString(scriptTag(a.JS))
	}
	b.WriteString("</body>\n</html>\n")
	return b.String()
}

// Embed returns an iframe that renders the document from srcdoc under the
// sandbox flags. The whole document is attribute-escaped.
func Embed(a Artifacts, title string) string {
	return fmt.Sprintf(
		`<iframe title="%s" sandbox="%s" referrerpolicy="no-referrer" style="width:100%%;height:100%%;border:0" srcdoc="%s"></iframe>`,
		html.EscapeString(title), SandboxFlags, html.EscapeString(Document(a, title)),
	)
}

// LinkedDocument is Document for exported bundles: it references cssHref and
// jsHref (either may be empty) instead of inlining the code.
func LinkedDocument(body, title, cssHref, jsHref string) string {
	doc := Document(Artifacts{HTML: body}, title)
	if cssHref != "" {
		doc = insertBefore(doc, "</head>", fmt.Sprintf("<link rel=\"stylesheet\" href=\"%s\">\n", html.EscapeString(cssHref)))
	}
	if jsHref != "" {
		doc = insertBefore(doc, "</body>", fmt.Sprintf("<script src=\"%s\"></script>\n", html.EscapeString(jsHref)))
	}
	return doc
}

func isFullDocument(s string) bool {
	head := strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}

// insertBefore places snippet before the last case-insensitive occurrence
// of tag, or appends it when the tag is missing.
func insertBefore(doc, tag, snippet string) string {
	idx := strings.LastIndex(strings.ToLower(doc), tag)
	if idx < 0 {
		return doc + snippet
	}
	return doc[:idx] + snippet + doc[idx:]
}

func styleTag(css string) string {
	return "<style>\n" + css + "\n</style>\n"
}

// scriptTag breaks up any "</script" inside the code so it cannot end the
// element early.
func scriptTag(js string) string {
	js = strings.ReplaceAll(js, "</script", `<\/script`)
	return "<script>\n" + js + "\n</script>\n"
}
