package crud_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantdesk/grantdesk/internal/backend"
	"github.com/grantdesk/grantdesk/internal/crud"
	"github.com/grantdesk/grantdesk/internal/listing"
	"github.com/grantdesk/grantdesk/internal/rbac"
	"github.com/grantdesk/grantdesk/internal/shared"
	"github.com/grantdesk/grantdesk/internal/view"
	testkit "github.com/grantdesk/grantdesk/testing"
)

type center struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	City string `json:"city"`
}

type centerForm struct {
	Name string `json:"name" validate:"required,min=2"`
	City string `json:"city"`
}

type centersAPI struct {
	mu    sync.Mutex
	calls []string
}

func (a *centersAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	a.calls = append(a.calls, r.Method+" "+r.URL.Path)
	a.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/centers":
		_, _ = w.Write([]byte(`{"data":[{"id":"c1","name":"North","city":"Quito"}],"count":1}`))
	case r.Method == http.MethodGet && r.URL.Path == "/centers/c1":
		_, _ = w.Write([]byte(`{"id":"c1","name":"North","city":"Quito"}`))
	case r.Method == http.MethodDelete && r.URL.Path == "/centers/c1":
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"Center has instructors"}`))
	case r.Method == http.MethodPost && r.URL.Path == "/centers":
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"c2"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (a *centersAPI) log() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

type harness struct {
	api      *centersAPI
	recorder *view.Recorder
	sessions *testkit.Sessions
	handler  *crud.Handler[center]
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	api := &centersAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	client := backend.New(backend.Options{BaseURL: srv.URL})

	validator := shared.NewValidator()
	cfg := listing.Config{Endpoint: "/centers", DefaultSort: "name", Filters: []string{"city"}}
	res := crud.Resource[center]{
		Name:     "centers",
		Title:    "Training centers",
		Singular: "Center",
		Path:     "/centers",
		List:     cfg,
		Columns: []crud.Column[center]{
			{Key: "name", Label: "Name", Sortable: true, Cell: func(c center) string { return c.Name }},
			{Key: "city", Label: "City", Cell: func(c center) string { return c.City }},
		},
		Fields: []crud.Field{{Name: "name", Label: "Name", Required: true}, {Name: "city", Label: "City"}},
		ID:     func(c center) string { return c.ID },
		Label:  func(c center) string { return c.Name },
		Values: func(c center) map[string]string { return map[string]string{"name": c.Name, "city": c.City} },
		Build: func(v map[string]string, _ crud.Mode) (any, error) {
			form := centerForm{Name: v["name"], City: v["city"]}
			if err := validator.Struct(form); err != nil {
				return nil, err
			}
			return form, nil
		},
		Manage: shared.ManageDirectory(),
	}
	rec := &view.Recorder{}
	rs := view.Responder{Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), Templates: rec, CSRF: shared.NewCSRFManager("csrf")}
	h := crud.NewHandler(rs, client, listing.RemoteFetcher[center](client, "/centers"), nil, rbac.Middleware{}, res)
	return &harness{api: api, recorder: rec, sessions: testkit.NewSessions(t), handler: h}
}

func (hs *harness) serve(t *testing.T, req *http.Request, role string) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	req, sess := hs.sessions.Attach(t, req, role)
	router := chi.NewRouter()
	router.Route("/centers", hs.handler.MountRoutes)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec, sess
}

func postForm(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestFailedDeleteKeepsDialogAndData(t *testing.T) {
	hs := newHarness(t)
	req := postForm("/centers/c1/delete", url.Values{"_return": {"search=nor"}, "_label": {"North"}})
	res, _ := hs.serve(t, req, shared.RoleAdmin)

	assert.Equal(t, http.StatusConflict, res.Code)
	assert.Equal(t, crud.ListTemplate, hs.recorder.Name)
	page := hs.recorder.Page()
	dialog := page["Dialog"].(crud.Dialog)
	assert.True(t, dialog.Open)
	assert.Equal(t, crud.ModeDelete, dialog.Mode)
	assert.Equal(t, "c1", dialog.EntityID)
	assert.Equal(t, "Center has instructors", dialog.Message)

	rows := page["Rows"].([]crud.RowView)
	require.Len(t, rows, 1)
	assert.Equal(t, "North", rows[0].Cells[0].Text)
	assert.Equal(t, "search=nor", page["Return"])
	assert.Equal(t, []string{"DELETE /centers/c1", "GET /centers"}, hs.api.log())
}

func TestCreateRedirectsPreservingQuery(t *testing.T) {
	hs := newHarness(t)
	req := postForm("/centers", url.Values{"_return": {"search=nor&offset=2"}, "name": {"South"}, "city": {"Lima"}})
	res, sess := hs.serve(t, req, shared.RoleCoordinator)

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/centers?offset=2&search=nor", res.Header().Get("Location"))
	flash := sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, shared.FlashSuccess, flash.Kind)
	assert.Equal(t, []string{"POST /centers"}, hs.api.log())
}

func TestCreateValidationMakesNoCall(t *testing.T) {
	hs := newHarness(t)
	req := postForm("/centers", url.Values{"name": {"S"}})
	res, _ := hs.serve(t, req, shared.RoleAdmin)

	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
	dialog := hs.recorder.Page()["Dialog"].(crud.Dialog)
	assert.Equal(t, crud.ModeCreate, dialog.Mode)
	assert.Contains(t, dialog.Errors, "name")
	assert.Equal(t, "S", dialog.Value("name"))
	assert.Equal(t, []string{"GET /centers"}, hs.api.log())
}

func TestViewerCannotMutate(t *testing.T) {
	hs := newHarness(t)
	res, _ := hs.serve(t, postForm("/centers/c1/delete", url.Values{}), shared.RoleViewer)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Empty(t, hs.api.log())
}

func TestEditDialogLoadsEntity(t *testing.T) {
	hs := newHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/centers?dialog=edit&id=c1&search=nor", nil)
	res, _ := hs.serve(t, req, shared.RoleAdmin)

	assert.Equal(t, http.StatusOK, res.Code)
	page := hs.recorder.Page()
	dialog := page["Dialog"].(crud.Dialog)
	assert.Equal(t, crud.ModeEdit, dialog.Mode)
	assert.Equal(t, "Quito", dialog.Value("city"))
	assert.Equal(t, "/centers/c1", page["Action"])
	assert.Equal(t, "/centers?search=nor", page["CloseHref"])
}

func TestListRedirectsToCanonicalURL(t *testing.T) {
	hs := newHarness(t)
	cases := map[string]string{
		"/centers?search=":                        "/centers",
		"/centers?search=+nor+&offset=0":          "/centers?search=nor",
		"/centers?sort=name&desc=asc&limit=10":    "/centers",
		"/centers?city=all&dialog=create":         "/centers?dialog=create",
		"/centers?limit=25&offset=2&unknown=true": "/centers?limit=25&offset=2",
	}
	for target, want := range cases {
		res, _ := hs.serve(t, httptest.NewRequest(http.MethodGet, target, nil), shared.RoleAdmin)
		assert.Equal(t, http.StatusSeeOther, res.Code, target)
		assert.Equal(t, want, res.Header().Get("Location"), target)
	}
	assert.Empty(t, hs.api.log(), "redirects happen before any fetch")

	res, _ := hs.serve(t, httptest.NewRequest(http.MethodGet, "/centers?search=nor", nil), shared.RoleAdmin)
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestListJSON(t *testing.T) {
	hs := newHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/centers?limit=25", nil)
	req.Header.Set("Accept", "application/json")
	res, _ := hs.serve(t, req, shared.RoleViewer)

	require.Equal(t, http.StatusOK, res.Code)
	var body struct {
		Data  []center `json:"data"`
		Count int      `json:"count"`
		Pages int      `json:"pages"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, 1, body.Pages)
	assert.Equal(t, "North", body.Data[0].Name)
}

func TestListWithoutTokenRedirectsToLogin(t *testing.T) {
	hs := newHarness(t)
	res, _ := hs.serve(t, httptest.NewRequest(http.MethodGet, "/centers", nil), "")
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/auth/login", res.Header().Get("Location"))
}
