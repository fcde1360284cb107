package view

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/grantdesk/grantdesk/internal/shared"
	"github.com/grantdesk/grantdesk/web"
)

// Renderer writes a named page.
type Renderer interface {
	Render(w http.ResponseWriter, status int, name string, data TemplateData) error
}

// Engine renders HTML templates. Every page gets its own clone of the
// layouts and partials so pages can define the same blocks.
type Engine struct {
	pages map[string]*template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	User        *shared.Identity
	Data        any
}

// NewEngine parses the embedded templates.
func NewEngine() (*Engine, error) {
	return NewEngineFS(web.Templates)
}

// NewEngineFS parses layouts, partials and pages below templates/ in fsys.
func NewEngineFS(fsys fs.FS) (*Engine, error) {
	base, err := template.New("root").Funcs(Funcs()).ParseFS(fsys, "templates/layouts/*.html", "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("view: parse layouts: %w", err)
	}
	pages := make(map[string]*template.Template)
	err = fs.WalkDir(fsys, "templates/pages", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".html") {
			return nil
		}
		clone, err := base.Clone()
		if err != nil {
			return err
		}
		page, err := clone.ParseFS(fsys, p)
		if err != nil {
			return fmt.Errorf("view: parse %s: %w", p, err)
		}
		pages[strings.TrimPrefix(p, "templates/")] = page
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Engine{pages: pages}, nil
}

// Has reports whether a page exists.
func (e *Engine) Has(name string) bool {
	_, ok := e.pages[name]
	return ok
}

// Render executes a page into a buffer and writes it with status.
func (e *Engine) Render(w http.ResponseWriter, status int, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	page, ok := e.pages[name]
	if !ok {
		return fmt.Errorf("view: unknown page %s", name)
	}
	var buf bytes.Buffer
	if err := page.ExecuteTemplate(&buf, path.Base(name), data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
