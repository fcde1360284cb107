package crud

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/grantdesk/grantdesk/internal/backend"
	"github.com/grantdesk/grantdesk/internal/listing"
	"github.com/grantdesk/grantdesk/internal/options"
	"github.com/grantdesk/grantdesk/internal/platform/httpx"
	"github.com/grantdesk/grantdesk/internal/rbac"
	"github.com/grantdesk/grantdesk/internal/shared"
	"github.com/grantdesk/grantdesk/internal/view"
)

// ListTemplate renders every CRUD page.
const ListTemplate = "pages/crud/list.html"

// returnField carries the list query through dialog forms.
const returnField = "_return"

// Backend is the part of the REST client used for mutations.
type Backend interface {
	Get(ctx context.Context, token, path string, out any) error
	Create(ctx context.Context, token, path string, body, out any) error
	Update(ctx context.Context, token, path string, body, out any) error
	Delete(ctx context.Context, token, path string) error
}

// OptionLookup resolves select choices.
type OptionLookup interface {
	LookupMany(ctx context.Context, token string, names ...string) map[string][]options.Option
	Invalidate(ctx context.Context, name string)
}

// Handler serves one resource: the list, the dialog and its mutations.
type Handler[T any] struct {
	view.Responder
	backend Backend
	fetch   listing.Fetcher[T]
	options OptionLookup
	rbac    rbac.Middleware
	res     Resource[T]
}

// NewHandler builds a Handler. opts may be nil.
func NewHandler[T any](rs view.Responder, be Backend, fetch listing.Fetcher[T], opts OptionLookup, rb rbac.Middleware, res Resource[T]) *Handler[T] {
	return &Handler[T]{Responder: rs, backend: be, fetch: fetch, options: opts, rbac: rb, res: res}
}

// MountRoutes registers the resource routes.
func (h *Handler[T]) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(h.res.Manage...))
		r.Post("/", h.create)
		r.Post("/{id}", h.update)
		r.Post("/{id}/delete", h.remove)
	})
}

func (h *Handler[T]) list(w http.ResponseWriter, r *http.Request) {
	q := listing.ParseQuery(r.URL.Query(), h.res.List)
	if wantsJSON(r) {
		h.listJSON(w, r, q)
		return
	}
	if target, ok := listing.Canonical(h.res.Path, h.res.List, r.URL.Query(), "dialog", "id"); !ok {
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}

	dialog := Closed()
	notice := ""
	params := r.URL.Query()
	switch params.Get("dialog") {
	case string(ModeCreate):
		if h.canManage(r) && h.res.NewHref == "" {
			dialog = Create()
		}
	case string(ModeEdit), string(ModeDelete):
		if !h.canManage(r) {
			break
		}
		entity, err := h.load(r.Context(), params.Get("id"))
		if err != nil {
			h.Logger.Warn("load entity", slog.String("resource", h.res.Name), slog.Any("error", err))
			notice = backend.Humanize(err)
			break
		}
		if params.Get("dialog") == string(ModeEdit) {
			dialog = Edit(h.res.ID(entity), h.res.Label(entity), h.res.Values(entity))
		} else {
			dialog = Delete(h.res.ID(entity), h.res.Label(entity))
		}
	}
	h.renderList(w, r, q, dialog, http.StatusOK, notice)
}

func (h *Handler[T]) listJSON(w http.ResponseWriter, r *http.Request, q listing.Query) {
	sess := shared.SessionFromContext(r.Context())
	ctrl := listing.NewController[T](h.res.List, h.fetch, shared.SessionToken{Session: sess}, nil)
	if err := ctrl.Restore(r.Context(), q); err != nil {
		if errors.Is(err, listing.ErrTokenPending) {
			err = shared.ErrUnauthenticated
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data":  ctrl.Data(),
		"count": ctrl.Count(),
		"pages": ctrl.Pages(),
		"query": q.Values(h.res.List),
	})
}

func (h *Handler[T]) load(ctx context.Context, id string) (T, error) {
	var entity T
	if strings.TrimSpace(id) == "" {
		return entity, shared.ErrNotFound
	}
	sess := shared.SessionFromContext(ctx)
	err := h.backend.Get(ctx, sess.Token(), h.entityPath(id), &entity)
	return entity, err
}

func (h *Handler[T]) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	q := h.returnQuery(r)
	values := h.formValues(r, ModeCreate)
	dialog := Create()
	dialog.Values = values

	body, err := h.res.Build(values, ModeCreate)
	if err == nil {
		err = h.backend.Create(r.Context(), h.token(r), h.res.List.Endpoint, body, nil)
	}
	if err != nil {
		h.fail(w, r, q, dialog, err)
		return
	}
	h.succeeded(w, r, q, h.res.Singular+" created.")
}

func (h *Handler[T]) update(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	q := h.returnQuery(r)
	values := h.formValues(r, ModeEdit)
	dialog := Edit(id, r.PostFormValue("_label"), values)

	body, err := h.res.Build(values, ModeEdit)
	if err == nil {
		err = h.backend.Update(r.Context(), h.token(r), h.entityPath(id), body, nil)
	}
	if err != nil {
		h.fail(w, r, q, dialog, err)
		return
	}
	h.succeeded(w, r, q, h.res.Singular+" updated.")
}

func (h *Handler[T]) remove(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	q := h.returnQuery(r)
	if err := h.backend.Delete(r.Context(), h.token(r), h.entityPath(id)); err != nil {
		h.fail(w, r, q, Delete(id, r.PostFormValue("_label")), err)
		return
	}
	h.succeeded(w, r, q, h.res.Singular+" deleted.")
}

// fail re-renders the list with the dialog still open and propagates the
// backend status.
func (h *Handler[T]) fail(w http.ResponseWriter, r *http.Request, q listing.Query, dialog Dialog, err error) {
	if errors.Is(err, shared.ErrUnauthenticated) {
		h.expireSession(w, r)
		return
	}
	var verr *shared.ValidationError
	if !errors.As(err, &verr) {
		h.Logger.Warn("mutation failed", slog.String("resource", h.res.Name), slog.String("mode", string(dialog.Mode)), slog.Any("error", err))
	}
	h.renderList(w, r, q, dialog.Fail(err), FailureStatus(err), "")
}

func (h *Handler[T]) succeeded(w http.ResponseWriter, r *http.Request, q listing.Query, message string) {
	if h.options != nil {
		for _, name := range h.res.Invalidates {
			h.options.Invalidate(r.Context(), name)
		}
	}
	h.RedirectWithFlash(w, r, h.listHref(q, nil), shared.FlashSuccess, message)
}

func (h *Handler[T]) expireSession(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.ClearIdentity()
	}
	h.RedirectWithFlash(w, r, "/auth/login", shared.FlashError, shared.UserSafeMessage(shared.ErrUnauthenticated))
}

func (h *Handler[T]) renderList(w http.ResponseWriter, r *http.Request, q listing.Query, dialog Dialog, status int, notice string) {
	ctx := r.Context()
	sess := shared.SessionFromContext(ctx)
	ctrl := listing.NewController[T](h.res.List, h.fetch, shared.SessionToken{Session: sess}, listing.NotifierFunc(func(_, message string) {
		notice = message
	}))
	err := ctrl.Restore(ctx, q)
	switch {
	case errors.Is(err, listing.ErrTokenPending), errors.Is(err, shared.ErrUnauthenticated):
		h.expireSession(w, r)
		return
	case err != nil:
		h.Logger.Warn("list fetch failed", slog.String("resource", h.res.Name), slog.Any("error", err))
	}

	var opts map[string][]options.Option
	if h.options != nil {
		opts = h.options.LookupMany(ctx, sess.Token(), h.res.sources()...)
	}
	page := ctrl.Page(h.res.Path)
	canManage := h.canManage(r)

	data := map[string]any{
		"Name":        h.res.Name,
		"Title":       h.res.Title,
		"Singular":    h.res.Singular,
		"Path":        h.res.Path,
		"List":        page,
		"Headers":     h.headers(page),
		"Rows":        h.rows(ctrl.Data(), q, opts),
		"Filters":     h.filters(q, opts),
		"Fields":      h.fields(dialog.Mode, opts),
		"Dialog":      dialog,
		"DialogTitle": dialog.Title(h.res.Singular),
		"Action":      h.dialogAction(dialog),
		"Return":      q.Values(h.res.List).Encode(),
		"CreateHref":  h.createHref(q),
		"CloseHref":   page.Self(),
		"CanManage":   canManage,
		"Notice":      notice,
	}
	h.Render(w, r, status, ListTemplate, h.res.Title, data)
}

func (h *Handler[T]) headers(page listing.Page) []HeaderView {
	out := make([]HeaderView, 0, len(h.res.Columns))
	for _, c := range h.res.Columns {
		hv := HeaderView{Key: c.Key, Label: c.Label, Sortable: c.Sortable}
		if c.Sortable {
			hv.Href = page.SortHref(c.Key)
			hv.Indicator = page.SortIndicator(c.Key)
		}
		out = append(out, hv)
	}
	return out
}

// RowView is a table row with its dialog links.
type RowView struct {
	Row
	EditHref   string
	DeleteHref string
}

func (h *Handler[T]) rows(items []T, q listing.Query, opts map[string][]options.Option) []RowView {
	out := make([]RowView, 0, len(items))
	for _, item := range items {
		id := h.res.ID(item)
		row := Row{ID: id, Label: h.res.Label(item), Cells: make([]Cell, 0, len(h.res.Columns))}
		for _, c := range h.res.Columns {
			text := c.Cell(item)
			if c.Source != "" && text != "" {
				text = options.Label(opts[c.Source], text)
			}
			row.Cells = append(row.Cells, Cell{Text: text, Kind: c.Kind})
		}
		out = append(out, RowView{
			Row:        row,
			EditHref:   h.listHref(q, url.Values{"dialog": {string(ModeEdit)}, "id": {id}}),
			DeleteHref: h.listHref(q, url.Values{"dialog": {string(ModeDelete)}, "id": {id}}),
		})
	}
	return out
}

func (h *Handler[T]) filters(q listing.Query, opts map[string][]options.Option) []FilterView {
	out := make([]FilterView, 0, len(h.res.Filters))
	for _, f := range h.res.Filters {
		choices := f.Choices
		if f.Source != "" {
			choices = opts[f.Source]
		}
		out = append(out, FilterView{Filter: f, Options: choices, Active: q.Filter(f.Name)})
	}
	return out
}

func (h *Handler[T]) fields(mode Mode, opts map[string][]options.Option) []FieldView {
	out := make([]FieldView, 0, len(h.res.Fields))
	for _, f := range h.res.Fields {
		if f.CreateOnly && mode != ModeCreate {
			continue
		}
		choices := f.Choices
		if f.Source != "" {
			choices = opts[f.Source]
		}
		out = append(out, FieldView{Field: f, Options: choices})
	}
	return out
}

func (h *Handler[T]) dialogAction(d Dialog) string {
	switch d.Mode {
	case ModeCreate:
		return h.res.Path
	case ModeEdit:
		return h.res.Path + "/" + url.PathEscape(d.EntityID)
	case ModeDelete:
		return h.res.Path + "/" + url.PathEscape(d.EntityID) + "/delete"
	}
	return ""
}

func (h *Handler[T]) formValues(r *http.Request, mode Mode) map[string]string {
	values := make(map[string]string, len(h.res.Fields))
	for _, f := range h.res.Fields {
		if f.CreateOnly && mode != ModeCreate {
			continue
		}
		values[f.Name] = strings.TrimSpace(r.PostFormValue(f.Name))
	}
	return values
}

func (h *Handler[T]) returnQuery(r *http.Request) listing.Query {
	values, err := url.ParseQuery(r.PostFormValue(returnField))
	if err != nil {
		values = url.Values{}
	}
	return listing.ParseQuery(values, h.res.List)
}

func (h *Handler[T]) listHref(q listing.Query, extra url.Values) string {
	values := q.Values(h.res.List)
	for k, v := range extra {
		values[k] = v
	}
	if len(values) == 0 {
		return h.res.Path
	}
	return h.res.Path + "?" + values.Encode()
}

func (h *Handler[T]) createHref(q listing.Query) string {
	if h.res.NewHref == "" {
		return h.listHref(q, url.Values{"dialog": {string(ModeCreate)}})
	}
	values := q.Values(h.res.List)
	if len(values) == 0 {
		return h.res.NewHref
	}
	return h.res.NewHref + "?" + url.Values{"return": {values.Encode()}}.Encode()
}

func (h *Handler[T]) entityPath(id string) string {
	return h.res.List.Endpoint + "/" + url.PathEscape(id)
}

func (h *Handler[T]) token(r *http.Request) string {
	return shared.SessionFromContext(r.Context()).Token()
}

func (h *Handler[T]) canManage(r *http.Request) bool {
	return h.rbac.Allowed(r, h.res.Manage...)
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
