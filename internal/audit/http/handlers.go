// Package audithttp serves the audit log pages.
package audithttp

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/grantdesk/grantdesk/internal/audit"
	"github.com/grantdesk/grantdesk/internal/backend"
	"github.com/grantdesk/grantdesk/internal/listing"
	"github.com/grantdesk/grantdesk/internal/rbac"
	"github.com/grantdesk/grantdesk/internal/shared"
	"github.com/grantdesk/grantdesk/internal/view"
)

// ListTemplate renders the audit log page.
const ListTemplate = "pages/audit/list.html"

// Handler serves /logs.
type Handler struct {
	view.Responder
	fetch listing.Fetcher[audit.Log]
	rbac  rbac.Middleware
}

// NewHandler builds an audit handler.
func NewHandler(rs view.Responder, fetch listing.Fetcher[audit.Log], rb rbac.Middleware) *Handler {
	return &Handler{Responder: rs, fetch: fetch, rbac: rb}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	if target, ok := listing.Canonical("/logs", audit.ListConfig, r.URL.Query()); !ok {
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	q := listing.ParseQuery(r.URL.Query(), audit.ListConfig)
	filters, ferr := audit.ParseFilters(q)
	var verr *shared.ValidationError
	if ferr != nil && !errors.As(ferr, &verr) {
		h.handleServerError(w, "parse audit filters", ferr)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	notice := ""
	ctrl := listing.NewController[audit.Log](audit.ListConfig, h.fetch, shared.SessionToken{Session: sess}, listing.NotifierFunc(func(_, message string) {
		notice = message
	}))
	status := http.StatusOK
	if verr == nil {
		err := ctrl.Restore(r.Context(), q)
		switch {
		case errors.Is(err, listing.ErrTokenPending), errors.Is(err, shared.ErrUnauthenticated):
			h.expire(w, r)
			return
		case err != nil:
			h.Logger.Warn("load audit logs", slog.Any("error", err))
		}
	} else {
		status = http.StatusUnprocessableEntity
	}

	var fieldErrors map[string]string
	if verr != nil {
		fieldErrors = verr.Fields
	}
	page := ctrl.Page("/logs")
	h.Render(w, r, status, ListTemplate, "Audit logs", map[string]any{
		"List":      page,
		"Rows":      ctrl.Data(),
		"Filters":   filters,
		"Actions":   audit.Actions,
		"Errors":    fieldErrors,
		"Notice":    notice,
		"ExportURL": exportURL(q),
	})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	q := listing.ParseQuery(r.URL.Query(), audit.ListConfig)
	if _, err := audit.ParseFilters(q); err != nil {
		http.Error(w, shared.UserSafeMessage(err), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	rows, truncated, err := audit.Collect(r.Context(), h.fetch, sess.Token(), q)
	if err != nil {
		if errors.Is(err, shared.ErrUnauthenticated) {
			h.expire(w, r)
			return
		}
		h.Logger.Warn("export audit logs", slog.Any("error", err))
		http.Error(w, backend.Humanize(err), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=\"audit-logs.csv\"")
	w.Header().Set("X-Export-Rows", strconv.Itoa(len(rows)))
	if truncated {
		w.Header().Set("X-Export-Truncated", "true")
	}
	if err := audit.WriteCSV(w, rows); err != nil {
		h.Logger.Warn("write csv", slog.Any("error", err))
	}
}

func (h *Handler) expire(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.ClearIdentity()
	}
	h.RedirectWithFlash(w, r, "/auth/login", shared.FlashError, shared.UserSafeMessage(shared.ErrUnauthenticated))
}

func (h *Handler) handleServerError(w http.ResponseWriter, message string, err error) {
	h.Logger.Error(message, slog.Any("error", err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func exportURL(q listing.Query) string {
	values := q.Values(audit.ListConfig)
	values.Del("offset")
	values.Del("limit")
	if len(values) == 0 {
		return "/logs/export.csv"
	}
	return "/logs/export.csv?" + values.Encode()
}
