// Package files serves the attachments page: list, upload, download and
// delete, with at most one transfer in flight per session.
package files

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/grantdesk/grantdesk/internal/backend"
	"github.com/grantdesk/grantdesk/internal/listing"
	"github.com/grantdesk/grantdesk/internal/options"
	"github.com/grantdesk/grantdesk/internal/rbac"
	"github.com/grantdesk/grantdesk/internal/shared"
	"github.com/grantdesk/grantdesk/internal/view"
)

// ListTemplate renders the attachments page.
const ListTemplate = "pages/files/list.html"

const (
	endpoint         = "/files"
	defaultMaxUpload = 32 << 20
)

// Attachment is a file stored by the backend for some entity.
type Attachment struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	EntityType  string    `json:"entity_type"`
	EntityID    string    `json:"entity_id"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// EntityTypes are the records attachments may belong to.
var EntityTypes = []options.Option{
	{Value: "project", Label: "Project"},
	{Value: "student", Label: "Student"},
	{Value: "center", Label: "Center"},
	{Value: "instructor", Label: "Instructor"},
}

// ListConfig is the attachments list configuration.
var ListConfig = listing.Config{
	Endpoint:          endpoint,
	DefaultSort:       "uploaded_at",
	DefaultDescending: true,
	Sortable:          []string{"name", "size", "uploaded_at"},
	Filters:           []string{"entity_type", "entity_id"},
}

// Backend is the part of the REST client used for transfers.
type Backend interface {
	Upload(ctx context.Context, token, path string, up backend.Upload) (backend.UploadResult, error)
	Download(ctx context.Context, token, path string) (*backend.Download, error)
	Delete(ctx context.Context, token, path string) error
}

type uploadForm struct {
	EntityType string `form:"entity_type" validate:"required,oneof=project student center instructor"`
	EntityID   string `form:"entity_id" validate:"required,max=64"`
}

// Handler serves the /files pages.
type Handler struct {
	view.Responder
	backend   Backend
	fetch     listing.Fetcher[Attachment]
	gate      *Gate
	validator *shared.Validator
	rbac      rbac.Middleware
	maxUpload int64
}

// NewHandler builds a Handler; maxUpload <= 0 uses 32 MiB.
func NewHandler(rs view.Responder, be Backend, fetch listing.Fetcher[Attachment], gate *Gate, v *shared.Validator, rb rbac.Middleware, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &Handler{Responder: rs, backend: be, fetch: fetch, gate: gate, validator: v, rbac: rb, maxUpload: maxUpload}
}

// MountRoutes registers the attachment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}/download", h.download)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.ManageFiles()...))
		r.Post("/", h.upload)
		r.Post("/{id}/delete", h.remove)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	if target, ok := listing.Canonical("/files", ListConfig, r.URL.Query()); !ok {
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	q := listing.ParseQuery(r.URL.Query(), ListConfig)
	h.renderList(w, r, q, http.StatusOK, nil)
}

func (h *Handler) renderList(w http.ResponseWriter, r *http.Request, q listing.Query, status int, formErrors map[string]string) {
	ctx := r.Context()
	sess := shared.SessionFromContext(ctx)
	notice := ""
	ctrl := listing.NewController[Attachment](ListConfig, h.fetch, shared.SessionToken{Session: sess}, listing.NotifierFunc(func(_, message string) {
		notice = message
	}))
	err := ctrl.Restore(ctx, q)
	switch {
	case errors.Is(err, listing.ErrTokenPending), errors.Is(err, shared.ErrUnauthenticated):
		h.expire(w, r)
		return
	case err != nil:
		h.Logger.Warn("list attachments", slog.Any("error", err))
	}
	page := ctrl.Page("/files")
	h.Render(w, r, status, ListTemplate, "Attachments", map[string]any{
		"List":        page,
		"Rows":        ctrl.Data(),
		"EntityTypes": EntityTypes,
		"Return":      q.Values(ListConfig).Encode(),
		"Errors":      formErrors,
		"Notice":      notice,
		"CanManage":   h.rbac.Allowed(r, shared.ManageFiles()...),
	})
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		h.RedirectWithFlash(w, r, "/files", shared.FlashError, "The file is too large or the upload was interrupted.")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()
	q := h.returnQuery(r)

	form := uploadForm{
		EntityType: strings.TrimSpace(r.FormValue("entity_type")),
		EntityID:   strings.TrimSpace(r.FormValue("entity_id")),
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.renderList(w, r, q, http.StatusUnprocessableEntity, map[string]string{"file": "Choose a file to upload."})
		return
	}
	defer func() { _ = file.Close() }()
	if header.Size > h.maxUpload {
		h.renderList(w, r, q, http.StatusUnprocessableEntity, map[string]string{"file": "The file is larger than " + view.FormatBytes(h.maxUpload) + "."})
		return
	}
	if err := h.validator.Struct(form); err != nil {
		var verr *shared.ValidationError
		if errors.As(err, &verr) {
			h.renderList(w, r, q, http.StatusUnprocessableEntity, verr.Fields)
			return
		}
		h.Logger.Error("validate upload", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	release, err := h.acquire(r)
	if err != nil {
		h.RedirectWithFlash(w, r, listHref(q), shared.FlashInfo, shared.UserSafeMessage(err))
		return
	}
	defer release()

	_, err = h.backend.Upload(r.Context(), h.token(r), endpoint, backend.Upload{
		Filename:    header.Filename,
		ContentType: uploadType(header.Filename, header.Header.Get("Content-Type")),
		Content:     file,
		Fields:      map[string]string{"entity_type": form.EntityType, "entity_id": form.EntityID},
	})
	if err != nil {
		if errors.Is(err, shared.ErrUnauthenticated) {
			h.expire(w, r)
			return
		}
		h.Logger.Warn("upload attachment", slog.Any("error", err))
		h.RedirectWithFlash(w, r, listHref(q), shared.FlashError, backend.Humanize(err))
		return
	}
	h.RedirectWithFlash(w, r, listHref(q), shared.FlashSuccess, header.Filename+" uploaded.")
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	back := "/files"
	if ret := r.URL.Query().Get("return"); ret != "" {
		if values, err := url.ParseQuery(ret); err == nil {
			back = listHref(listing.ParseQuery(values, ListConfig))
		}
	}
	release, err := h.acquire(r)
	if err != nil {
		h.RedirectWithFlash(w, r, back, shared.FlashInfo, shared.UserSafeMessage(err))
		return
	}
	defer release()

	dl, err := h.backend.Download(r.Context(), h.token(r), endpoint+"/"+url.PathEscape(id)+"/download")
	if err != nil {
		if errors.Is(err, shared.ErrUnauthenticated) {
			h.expire(w, r)
			return
		}
		h.Logger.Warn("download attachment", slog.String("id", id), slog.Any("error", err))
		h.RedirectWithFlash(w, r, back, shared.FlashError, backend.Humanize(err))
		return
	}
	defer func() { _ = dl.Body.Close() }()

	name := dl.Filename
	if name == "" {
		name = id
	}
	contentType := dl.ContentType
	if contentType == "" {
		contentType = uploadType(name, "")
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	if dl.ContentLength > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(dl.ContentLength, 10))
	}
	if _, err := io.Copy(w, dl.Body); err != nil {
		h.Logger.Warn("stream attachment", slog.String("id", id), slog.Any("error", err))
	}
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	q := h.returnQuery(r)
	if err := h.backend.Delete(r.Context(), h.token(r), endpoint+"/"+url.PathEscape(id)); err != nil {
		if errors.Is(err, shared.ErrUnauthenticated) {
			h.expire(w, r)
			return
		}
		h.Logger.Warn("delete attachment", slog.String("id", id), slog.Any("error", err))
		h.RedirectWithFlash(w, r, listHref(q), shared.FlashError, backend.Humanize(err))
		return
	}
	h.RedirectWithFlash(w, r, listHref(q), shared.FlashSuccess, "Attachment deleted.")
}

func (h *Handler) acquire(r *http.Request) (func(), error) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return nil, shared.ErrSessionMissing
	}
	release, err := h.gate.Acquire(r.Context(), sess.ID)
	if err != nil && !errors.Is(err, shared.ErrBusy) {
		h.Logger.Error("transfer gate", slog.Any("error", err))
	}
	return release, err
}

func (h *Handler) returnQuery(r *http.Request) listing.Query {
	values, err := url.ParseQuery(r.FormValue("_return"))
	if err != nil {
		values = url.Values{}
	}
	return listing.ParseQuery(values, ListConfig)
}

func (h *Handler) expire(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.ClearIdentity()
	}
	h.RedirectWithFlash(w, r, "/auth/login", shared.FlashError, shared.UserSafeMessage(shared.ErrUnauthenticated))
}

func (h *Handler) token(r *http.Request) string {
	return shared.SessionFromContext(r.Context()).Token()
}

func listHref(q listing.Query) string {
	values := q.Values(ListConfig)
	if len(values) == 0 {
		return "/files"
	}
	return "/files?" + values.Encode()
}

// uploadType prefers the browser's declared type, then the file extension.
func uploadType(filename, declared string) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if i := strings.LastIndexByte(filename, '.'); i >= 0 {
		if t := mime.TypeByExtension(strings.ToLower(filename[i:])); t != "" {
			return t
		}
	}
	return "application/octet-stream"
}
