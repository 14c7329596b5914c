// File: internal/infra/markdown/renderer.go
package markdown

import (
	"bytes"
	"html"
	"html/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Renderer turns stored assistant markdown into sanitized HTML for display.
// It is a pure string transform: render failures fall back to escaped text so
// a malformed message can never break a page or smuggle markup through.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

func New() *Renderer {
	return &Renderer{
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy: bluemonday.UGCPolicy(),
	}
}

// Render converts markdown to sanitized HTML, safe to emit unescaped.
func (r *Renderer) Render(content string) template.HTML {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(content), &buf); err != nil {
		return template.HTML(html.EscapeString(content))
	}
	return template.HTML(r.policy.SanitizeBytes(buf.Bytes()))
}
