// File: internal/infra/web/render.go
package web

import (
	"embed"
	"encoding/json"
	"html/template"
	"net/http"

	"ollama-web-chat/internal/domain/model"
	"ollama-web-chat/internal/infra/markdown"
	"ollama-web-chat/internal/usecase"
)

//go:embed templates/*.html
var templateFS embed.FS

func parseTemplates(md *markdown.Renderer) *template.Template {
	return template.Must(template.New("").Funcs(template.FuncMap{
		// Stored assistant content is markdown; user content stays escaped by
		// html/template in the view itself.
		"markdown":     md.Render,
		"newSessionID": model.NewSessionID,
	}).ParseFS(templateFS, "templates/*.html"))
}

// themeFrom reads the theme cookie; the toggle form sets it server-side.
func themeFrom(r *http.Request) string {
	if c, err := r.Cookie("theme"); err == nil && c.Value == "light" {
		return "light"
	}
	return "dark"
}

func (s *Server) renderChat(w http.ResponseWriter, r *http.Request, status int, view *usecase.ChatView) {
	view.Theme = themeFrom(r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.tmpl.ExecuteTemplate(w, "chat.html", view); err != nil {
		s.log.Error().Err(err).Msg("render chat view")
	}
}

type errorPage struct {
	Theme   string
	Message string
}

// renderErrorPage is the generic error page for failures with no chat
// context, including double failures. It must never itself fail upward.
func (s *Server) renderErrorPage(w http.ResponseWriter, r *http.Request, status int, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.tmpl.ExecuteTemplate(w, "error.html", errorPage{Theme: themeFrom(r), Message: message}); err != nil {
		s.log.Error().Err(err).Msg("render error page")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("encode json response")
	}
}

type jsonError struct {
	Error string `json:"error"`
}
