// Package dashboard renders the home page with record counts.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/grantdesk/grantdesk/internal/backend"
	"github.com/grantdesk/grantdesk/internal/shared"
	"github.com/grantdesk/grantdesk/internal/view"
)

// PageTemplate renders the home page.
const PageTemplate = "pages/dashboard/index.html"

// Unavailable replaces a count the backend could not provide.
const Unavailable = "—"

// Counter returns the total number of records behind a list endpoint.
type Counter func(ctx context.Context, token, endpoint string) (int, error)

// RemoteCounter asks the backend for a single row and reads the total.
func RemoteCounter(client *backend.Client) Counter {
	return func(ctx context.Context, token, endpoint string) (int, error) {
		res, err := backend.List[json.RawMessage](ctx, client, token, endpoint, backend.ListParams{Limit: 1})
		if err != nil {
			return 0, err
		}
		return res.Count, nil
	}
}

// Tile is one count on the home page.
type Tile struct {
	Label string
	Href  string
	Value string
}

type source struct {
	label    string
	endpoint string
	href     string
}

var sources = []source{
	{label: "Projects", endpoint: "/projects", href: "/projects"},
	{label: "Students", endpoint: "/students", href: "/students"},
	{label: "Centers", endpoint: "/centers", href: "/centers"},
	{label: "Instructors", endpoint: "/instructors", href: "/instructors"},
}

// Handler serves the dashboard.
type Handler struct {
	view.Responder
	count Counter
}

// NewHandler builds a dashboard handler.
func NewHandler(rs view.Responder, count Counter) *Handler {
	return &Handler{Responder: rs, count: count}
}

// MountRoutes registers the home page.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.index)
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	tiles, expired := h.Tiles(r.Context(), shared.SessionFromContext(r.Context()).Token())
	if expired {
		if sess := shared.SessionFromContext(r.Context()); sess != nil {
			sess.ClearIdentity()
		}
		h.RedirectWithFlash(w, r, "/auth/login", shared.FlashError, shared.UserSafeMessage(shared.ErrUnauthenticated))
		return
	}
	h.Render(w, r, http.StatusOK, PageTemplate, "Dashboard", map[string]any{"Tiles": tiles})
}

// Tiles fetches every count concurrently. A failed count renders as
// Unavailable and never fails the page; expired reports a 401 from any call.
func (h *Handler) Tiles(ctx context.Context, token string) (tiles []Tile, expired bool) {
	tiles = make([]Tile, len(sources))
	unauthorized := make([]bool, len(sources))
	var g errgroup.Group
	for i, src := range sources {
		tiles[i] = Tile{Label: src.label, Href: src.href, Value: Unavailable}
		g.Go(func() error {
			n, err := h.count(ctx, token, src.endpoint)
			if err != nil {
				unauthorized[i] = errors.Is(err, shared.ErrUnauthenticated)
				h.Logger.Debug("dashboard count", slog.String("endpoint", src.endpoint), slog.Any("error", err))
				return nil
			}
			tiles[i].Value = strconv.Itoa(n)
			return nil
		})
	}
	_ = g.Wait()
	for _, u := range unauthorized {
		expired = expired || u
	}
	return tiles, expired
}
