package students

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantdesk/grantdesk/internal/backend"
	"github.com/grantdesk/grantdesk/internal/crud"
	"github.com/grantdesk/grantdesk/internal/shared"
	"github.com/grantdesk/grantdesk/internal/wizard"
)

func fixedNow() time.Time {
	return time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
}

func personalValues() map[string]string {
	return map[string]string{
		"first_name": "Ana", "last_name": "Paredes", "document_id": "1712345678",
		"birth_date": "2008-03-10", "email": "ana@example.org",
	}
}

func TestMinimumAge(t *testing.T) {
	v := NewValidator(fixedNow)

	p := personalFrom(personalValues())
	require.NoError(t, v.Struct(p))

	p.BirthDate = "2010-06-02"
	err := v.Struct(p)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "birth_date must be at least 14 years ago", verr.Fields["birth_date"])

	p.BirthDate = "2010-06-01"
	assert.NoError(t, v.Struct(p), "the fourteenth birthday itself is accepted")
}

func TestMinimumAgeAppliesToEdits(t *testing.T) {
	res := Resource(NewValidator(fixedNow))
	values := personalValues()
	values["birth_date"] = "2015-01-01"
	values["center_id"] = "c1"
	values["project_id"] = "p1"
	values["status"] = "enrolled"

	_, err := res.Build(values, crud.ModeEdit)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "birth_date")
	assert.Len(t, verr.Fields, 1)
}

func TestPersonalRequiresDocument(t *testing.T) {
	v := NewValidator(fixedNow)
	values := personalValues()
	values["document_id"] = "12-3"
	values["email"] = "not-an-email"
	err := v.Struct(personalFrom(values))
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "document_id")
	assert.Contains(t, verr.Fields, "email")
}

type enrollmentAPI struct {
	mu    sync.Mutex
	paths []string
	last  string
}

func (a *enrollmentAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	a.mu.Lock()
	a.paths = append(a.paths, r.Method+" "+r.URL.Path)
	a.last = string(body)
	a.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodPost {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":42}`))
		return
	}
	_, _ = w.Write([]byte(`{}`))
}

func TestWizardEnrollsAfterPersonalData(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	api := &enrollmentAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	ctrl := wizard.NewController(
		wizard.NewRedisStore(client, time.Hour),
		backend.New(backend.Options{BaseURL: srv.URL}),
		nil, nil, Wizard(NewValidator(fixedNow)),
	)
	ctx := context.Background()
	st, err := ctrl.Open(ctx, Kind, "u-1")
	require.NoError(t, err)

	form := url.Values{}
	for k, v := range personalValues() {
		form.Set(k, v)
	}
	require.NoError(t, ctrl.SubmitStep(ctx, "tok", st, 0, wizard.Submission{Form: form}))
	assert.Equal(t, "42", st.EntityID)

	err = ctrl.SubmitStep(ctx, "tok", st, 1, wizard.Submission{Form: url.Values{"center_id": {"c1"}}})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "project_id")

	require.NoError(t, ctrl.SubmitStep(ctx, "tok", st, 1, wizard.Submission{Form: url.Values{
		"center_id": {"c1"}, "project_id": {"p1"},
	}}))
	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, []string{"POST /students", "PUT /students/step/1/42"}, api.paths)
	assert.JSONEq(t, `{"center_id":"c1","project_id":"p1"}`, api.last)
}
