package view

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/grantdesk/grantdesk/internal/shared"
)

// Responder bundles what every page handler needs to answer a request.
type Responder struct {
	Logger    *slog.Logger
	Templates Renderer
	CSRF      *shared.CSRFManager
}

// Render writes a page with the session flash, CSRF token and user.
func (rs Responder) Render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	sess := shared.SessionFromContext(r.Context())
	var csrfToken string
	if rs.CSRF != nil && sess != nil {
		csrfToken, _ = rs.CSRF.EnsureToken(r.Context(), sess)
	}
	var flash *shared.FlashMessage
	var user *shared.Identity
	if sess != nil {
		flash = sess.PopFlash()
		if id := sess.Identity(); id.Token != "" {
			user = &id
		}
	}
	viewData := TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		User:        user,
		Data:        data,
	}
	if err := rs.Templates.Render(w, status, name, viewData); err != nil {
		rs.Logger.Error("render template", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// RedirectWithFlash stores a notification and redirects with 303.
func (rs Responder) RedirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// Recorder is a Renderer that keeps the last rendered page, for handler tests.
type Recorder struct {
	mu     sync.Mutex
	Status int
	Name   string
	Data   TemplateData
}

// Render records the call and writes the page name as body.
func (rec *Recorder) Render(w http.ResponseWriter, status int, name string, data TemplateData) error {
	rec.mu.Lock()
	rec.Status, rec.Name, rec.Data = status, name, data
	rec.mu.Unlock()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := w.Write([]byte(name))
	return err
}

// Page returns the recorded data payload as a map.
func (rec *Recorder) Page() map[string]any {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	m, _ := rec.Data.Data.(map[string]any)
	return m
}
