package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/grantdesk/grantdesk/internal/backend"
	"github.com/grantdesk/grantdesk/internal/options"
	"github.com/grantdesk/grantdesk/internal/rbac"
	"github.com/grantdesk/grantdesk/internal/shared"
	"github.com/grantdesk/grantdesk/internal/view"
)

// PageTemplate renders every wizard step.
const PageTemplate = "pages/wizard/step.html"

const defaultMaxUpload = 32 << 20

// OptionLookup resolves select choices for step inputs.
type OptionLookup interface {
	LookupMany(ctx context.Context, token string, names ...string) map[string][]options.Option
}

type formStep interface{ FormFields() []Field }

type rowStep interface{ RowColumns() []Column }

type fileStep interface{ AcceptsFiles() bool }

// Handler serves the wizard dialog pages below /wizards.
type Handler struct {
	view.Responder
	ctrl      *Controller
	options   OptionLookup
	rbac      rbac.Middleware
	maxUpload int64
}

// NewHandler builds a Handler. opts may be nil; maxUpload <= 0 uses 32 MiB.
func NewHandler(rs view.Responder, ctrl *Controller, opts OptionLookup, rb rbac.Middleware, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &Handler{Responder: rs, ctrl: ctrl, options: opts, rbac: rb, maxUpload: maxUpload}
}

// MountRoutes registers the wizard routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/new/{kind}", h.open)
	r.Get("/{id}", h.show)
	r.Post("/{id}/steps/{step}", h.submit)
	r.Post("/{id}/steps/{step}/import", h.importRows)
	r.Post("/{id}/back", h.back)
	r.Post("/{id}/forward", h.forward)
	r.Post("/{id}/finish", h.finish)
	r.Post("/{id}/cancel", h.cancel)
}

// StepTab is one entry of the step indicator.
type StepTab struct {
	Index     int
	Title     string
	Committed bool
	Current   bool
}

// InputView is an info step input with its value and error.
type InputView struct {
	Field
	Options []options.Option
	Value   string
	Error   string
}

// ColumnView is a line item column with its resolved choices.
type ColumnView struct {
	Column
	Options []options.Option
}

// StepView is the template model of the current step.
type StepView struct {
	Index      int
	Key        string
	Title      string
	Layout     string // form, rows or files
	Inputs     []InputView
	Columns    []ColumnView
	Rows       []map[string]string
	Files      []string
	Importable bool
	Committed  bool
}

type outcome struct {
	status  int
	errors  map[string]string
	message string
	report  string
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	def, ok := h.ctrl.Definition(kind)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if !h.rbac.Allowed(r, def.Manage...) {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}
	st, err := h.ctrl.Open(r.Context(), kind, owner(r))
	if err == nil {
		if ret := r.URL.Query().Get("return"); ret != "" {
			st.Return = ret
			err = h.ctrl.store.Save(r.Context(), st)
		}
	}
	if err != nil {
		h.Logger.Error("open wizard", slog.String("kind", kind), slog.Any("error", err))
		h.RedirectWithFlash(w, r, def.ListPath, shared.FlashError, shared.GenericErrorMessage)
		return
	}
	http.Redirect(w, r, wizardPath(st.ID), http.StatusSeeOther)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	st, def, ok := h.load(w, r)
	if !ok {
		return
	}
	h.render(w, r, st, def, outcome{status: http.StatusOK})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	st, def, ok := h.load(w, r)
	if !ok {
		return
	}
	i, err := strconv.Atoi(chi.URLParam(r, "step"))
	if err != nil || i != st.CurrentStep {
		http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		return
	}
	sub, cleanup, err := h.submission(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	defer cleanup()
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sub.Session = sess.ID
	}

	if err := h.ctrl.SubmitStep(r.Context(), token(r), st, i, sub); err != nil {
		if errors.Is(err, shared.ErrUnauthenticated) {
			h.expire(w, r)
			return
		}
		h.render(w, r, st, def, failure(err))
		return
	}
	if !st.IsCommitted(st.Total - 1) {
		http.Redirect(w, r, wizardPath(st.ID), http.StatusSeeOther)
		return
	}
	h.render(w, r, st, def, outcome{status: http.StatusOK, message: def.Title + " saved. You can finish now."})
}

func (h *Handler) importRows(w http.ResponseWriter, r *http.Request) {
	st, def, ok := h.load(w, r)
	if !ok {
		return
	}
	i, err := strconv.Atoi(chi.URLParam(r, "step"))
	if err != nil || i != st.CurrentStep {
		http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		return
	}
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()
	file, header, err := r.FormFile("file")
	if err != nil {
		h.render(w, r, st, def, outcome{status: http.StatusUnprocessableEntity, message: "Choose a CSV or XLSX file to import."})
		return
	}
	defer func() { _ = file.Close() }()

	report, err := h.ctrl.Import(r.Context(), st, i, header.Filename, file)
	if err != nil {
		if errors.Is(err, ErrUnsupportedSheet) {
			h.render(w, r, st, def, outcome{status: http.StatusUnprocessableEntity, message: "Only CSV and XLSX files can be imported."})
			return
		}
		h.Logger.Warn("wizard import", slog.String("kind", st.Kind), slog.Any("error", err))
		h.render(w, r, st, def, outcome{status: http.StatusUnprocessableEntity, message: "The file could not be read."})
		return
	}
	h.render(w, r, st, def, outcome{status: http.StatusOK, report: report.String()})
}

func (h *Handler) back(w http.ResponseWriter, r *http.Request) {
	st, _, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := h.ctrl.GoBack(r.Context(), st); err != nil {
		h.Logger.Error("wizard back", slog.Any("error", err))
	}
	http.Redirect(w, r, wizardPath(st.ID), http.StatusSeeOther)
}

func (h *Handler) forward(w http.ResponseWriter, r *http.Request) {
	st, def, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := h.ctrl.GoForward(r.Context(), st); err != nil {
		msg := "Save this step before moving on."
		if errors.Is(err, ErrStepOutOfRange) {
			msg = "This is the last step."
		}
		h.render(w, r, st, def, outcome{status: http.StatusConflict, message: msg})
		return
	}
	http.Redirect(w, r, wizardPath(st.ID), http.StatusSeeOther)
}

func (h *Handler) finish(w http.ResponseWriter, r *http.Request) {
	st, def, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := h.ctrl.Finalize(r.Context(), st); err != nil {
		h.Logger.Error("wizard finalize", slog.Any("error", err))
	}
	h.RedirectWithFlash(w, r, returnPath(st, def), shared.FlashSuccess, def.Title+" completed.")
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	st, def, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := h.ctrl.Cancel(r.Context(), st); err != nil {
		h.RedirectWithFlash(w, r, returnPath(st, def), shared.FlashError, "The wizard was closed but its draft could not be removed.")
		return
	}
	http.Redirect(w, r, returnPath(st, def), http.StatusSeeOther)
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*State, Definition, bool) {
	st, err := h.ctrl.Load(r.Context(), chi.URLParam(r, "id"), owner(r))
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			h.Logger.Error("load wizard", slog.Any("error", err))
		}
		http.NotFound(w, r)
		return nil, Definition{}, false
	}
	def, _ := h.ctrl.Definition(st.Kind)
	if !h.rbac.Allowed(r, def.Manage...) {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return nil, Definition{}, false
	}
	return st, def, true
}

func (h *Handler) submission(r *http.Request) (Submission, func(), error) {
	noop := func() {}
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseForm(); err != nil {
			return Submission{}, noop, err
		}
		return Submission{Form: r.PostForm}, noop, nil
	}
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		return Submission{}, noop, err
	}
	var (
		uploads []backend.Upload
		opened  []multipart.File
	)
	cleanup := func() {
		for _, f := range opened {
			_ = f.Close()
		}
		_ = r.MultipartForm.RemoveAll()
	}
	for _, fh := range r.MultipartForm.File["file"] {
		f, err := fh.Open()
		if err != nil {
			cleanup()
			return Submission{}, noop, fmt.Errorf("wizard: open upload: %w", err)
		}
		opened = append(opened, f)
		uploads = append(uploads, backend.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Content:     f,
		})
	}
	return Submission{Form: r.MultipartForm.Value, Files: uploads}, cleanup, nil
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, st *State, def Definition, out outcome) {
	step := def.Steps[st.CurrentStep]
	opts := h.lookup(r, step)
	draft := st.Draft(step.Key())

	sv := StepView{
		Index:     st.CurrentStep,
		Key:       step.Key(),
		Title:     step.Title(),
		Committed: st.IsCommitted(st.CurrentStep),
	}
	switch s := step.(type) {
	case formStep:
		sv.Layout = "form"
		for _, f := range s.FormFields() {
			sv.Inputs = append(sv.Inputs, InputView{
				Field:   f,
				Options: choices(f.Choices, f.Source, opts),
				Value:   draft.Field(f.Name),
				Error:   out.errors[f.Name],
			})
		}
	case rowStep:
		sv.Layout = "rows"
		_, sv.Importable = step.(Importer)
		for _, c := range s.RowColumns() {
			sv.Columns = append(sv.Columns, ColumnView{Column: c, Options: choices(c.Choices, c.Source, opts)})
		}
		sv.Rows = draft.Rows
	case fileStep:
		sv.Layout = "files"
		sv.Files = draft.Files
	}

	tabs := make([]StepTab, len(def.Steps))
	for i, s := range def.Steps {
		tabs[i] = StepTab{Index: i, Title: s.Title(), Committed: st.IsCommitted(i), Current: i == st.CurrentStep}
	}
	base := wizardPath(st.ID)
	data := map[string]any{
		"Kind":       def.Kind,
		"Title":      def.Title,
		"State":      st,
		"Tabs":       tabs,
		"Step":       sv,
		"Errors":     out.errors,
		"Message":    out.message,
		"Report":     out.report,
		"Base":       base,
		"Action":     base + "/steps/" + strconv.Itoa(st.CurrentStep),
		"CanBack":    st.CurrentStep > 0,
		"CanForward": !st.IsLast() && sv.Committed,
		"CanFinish":  st.IsCommitted(st.Total - 1),
	}
	h.Render(w, r, out.status, PageTemplate, def.Title, data)
}

func (h *Handler) lookup(r *http.Request, step Step) map[string][]options.Option {
	if h.options == nil {
		return nil
	}
	var names []string
	if s, ok := step.(formStep); ok {
		for _, f := range s.FormFields() {
			if f.Source != "" {
				names = append(names, f.Source)
			}
		}
	}
	if s, ok := step.(rowStep); ok {
		for _, c := range s.RowColumns() {
			if c.Source != "" {
				names = append(names, c.Source)
			}
		}
	}
	if len(names) == 0 {
		return nil
	}
	return h.options.LookupMany(r.Context(), token(r), names...)
}

// returnPath rebuilds the list URL. Only a query string is accepted so the
// redirect cannot leave the console.
func returnPath(st *State, def Definition) string {
	values, err := url.ParseQuery(st.Return)
	if err != nil || len(values) == 0 {
		return def.ListPath
	}
	return def.ListPath + "?" + values.Encode()
}

func (h *Handler) expire(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.ClearIdentity()
	}
	h.RedirectWithFlash(w, r, "/auth/login", shared.FlashError, shared.UserSafeMessage(shared.ErrUnauthenticated))
}

func failure(err error) outcome {
	var verr *shared.ValidationError
	if errors.As(err, &verr) {
		msg := verr.Message
		if msg == "" {
			msg = "Please fix the highlighted fields."
		}
		return outcome{status: http.StatusUnprocessableEntity, errors: verr.Fields, message: msg}
	}
	if errors.Is(err, shared.ErrBusy) {
		return outcome{status: http.StatusConflict, message: shared.UserSafeMessage(err)}
	}
	if errors.Is(err, ErrEntityRequired) || errors.Is(err, ErrStepOutOfRange) {
		return outcome{status: http.StatusConflict, message: "Complete the first step before this one."}
	}
	status := backend.StatusOf(err)
	if status < http.StatusBadRequest {
		status = http.StatusBadGateway
	}
	return outcome{status: status, message: backend.Humanize(err)}
}

func choices(fixed []Choice, source string, opts map[string][]options.Option) []options.Option {
	if source != "" {
		return opts[source]
	}
	out := make([]options.Option, 0, len(fixed))
	for _, c := range fixed {
		out = append(out, options.Option{Value: c.Value, Label: c.Label})
	}
	return out
}

func wizardPath(id string) string {
	return "/wizards/" + id
}

func owner(r *http.Request) string {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return ""
	}
	return sess.Identity().UserID
}

func token(r *http.Request) string {
	return shared.SessionFromContext(r.Context()).Token()
}
