// Package render produces the HTML document for an outbound email from a
// body fragment and template locals, using Liquid templates.
package render

import (
	"fmt"
	"html"
	"net/url"
	"strings"
	"sync"

	"github.com/osteele/liquid"
)

// DefaultLayout is the email layout used when a message arrives without an
// HTML part. The html_body local is pre-rendered HTML and is injected
// verbatim; everything else passes through Liquid.
const DefaultLayout = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>{{ site_title | escape }}</title>
</head>
<body>
<div class="email-body">
{{ html_body }}
</div>
<div class="email-footer">
<p>{{ site_title | escape }} &mdash; <a href="{{ base_url }}">{{ base_url }}</a></p>
</div>
</body>
</html>
`

// Service renders Liquid templates with a parse cache. Safe for
// concurrent use: parsing is memoized per template source.
type Service struct {
	engine *liquid.Engine
	cache  sync.Map // template source -> *liquid.Template
}

// NewService creates a render service with the email filter set.
func NewService() *Service {
	s := &Service{engine: liquid.NewEngine()}

	s.engine.RegisterFilter("escape", func(v string) string {
		return html.EscapeString(v)
	})
	s.engine.RegisterFilter("urlencode", func(v string) string {
		return url.QueryEscape(v)
	})
	s.engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		if s := fmt.Sprintf("%v", value); s == "" || s == "<nil>" {
			return defaultVal
		}
		return value
	})
	s.engine.RegisterFilter("newline_to_br", func(v string) string {
		return strings.ReplaceAll(v, "\n", "<br>\n")
	})

	return s
}

// Render renders a Liquid template with the given locals.
func (s *Service) Render(templateStr string, locals map[string]interface{}) (string, error) {
	if cached, ok := s.cache.Load(templateStr); ok {
		return cached.(*liquid.Template).RenderString(locals)
	}

	tpl, err := s.engine.ParseString(templateStr)
	if err != nil {
		return "", fmt.Errorf("render: parse template: %w", err)
	}
	s.cache.Store(templateStr, tpl)

	return tpl.RenderString(locals)
}

// RenderLayout wraps an HTML body fragment in the default email layout.
// Used by the enricher when a message has no HTML part yet: the text body
// is converted to minimal HTML first by the caller.
func (s *Service) RenderLayout(htmlBody, siteTitle, baseURL string) (string, error) {
	return s.Render(DefaultLayout, map[string]interface{}{
		"html_body":  htmlBody,
		"site_title": siteTitle,
		"base_url":   baseURL,
	})
}

// TextToHTML converts a plain-text body into a minimal HTML fragment
// suitable for the layout: escaped, with paragraph breaks preserved.
func TextToHTML(text string) string {
	escaped := html.EscapeString(text)
	var b strings.Builder
	for _, para := range strings.Split(escaped, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(para, "\n", "<br>\n"))
		b.WriteString("</p>\n")
	}
	return b.String()
}
