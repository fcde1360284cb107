package wizard_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantdesk/grantdesk/internal/backend"
	"github.com/grantdesk/grantdesk/internal/shared"
	"github.com/grantdesk/grantdesk/internal/wizard"
)

type recorded struct {
	Method string
	Path   string
	Body   string
}

type fakeAPI struct {
	mu       sync.Mutex
	requests []recorded
	failPath string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recorded{Method: r.Method, Path: r.URL.Path, Body: string(body)})
	fail := f.failPath != "" && r.URL.Path == f.failPath
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if fail {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"Duplicated donor"}`))
		return
	}
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/projects":
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"abc","name":"Water"}`))
	case r.Method == http.MethodPost && r.URL.Path == "/files":
		_, _ = w.Write([]byte(`{"file_id":"f-1"}`))
	default:
		_, _ = w.Write([]byte(`{}`))
	}
}

func (f *fakeAPI) failOn(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failPath = path
}

func (f *fakeAPI) calls() []recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recorded, len(f.requests))
	copy(out, f.requests)
	return out
}

type projectInfo struct {
	Name        string `json:"name" validate:"required,min=2"`
	Description string `json:"description" validate:"notblank"`
	StartDate   string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate     string `json:"end_date" validate:"required,datetime=2006-01-02,notbefore=StartDate"`
}

type donationRow struct {
	Donor  string `json:"donor"`
	Type   string `json:"type"`
	Amount string `json:"amount"`
}

func donationStep() *wizard.LineItemStep[donationRow] {
	return &wizard.LineItemStep[donationRow]{
		StepKey:   "donations",
		StepTitle: "Donations",
		Columns: []wizard.Column{
			{Name: "donor", Label: "Donor", Required: true},
			{Name: "type", Label: "Type", Required: true, Choices: []wizard.Choice{{Value: "cash", Label: "Cash"}, {Value: "in_kind", Label: "In kind"}}},
			{Name: "amount", Label: "Amount", Required: true, Amount: true},
		},
		Build: func(cells map[string]string) (donationRow, error) {
			return donationRow{Donor: cells["donor"], Type: cells["type"], Amount: cells["amount"]}, nil
		},
	}
}

func projectDefinition() wizard.Definition {
	return wizard.Definition{
		Kind:     "project",
		Title:    "New project",
		Resource: "/projects",
		ListPath: "/projects",
		Manage:   []string{shared.RoleAdmin, shared.RoleCoordinator},
		Steps: []wizard.Step{
			&wizard.InfoStep[projectInfo]{
				StepKey: "info",
				Fields: []wizard.Field{
					{Name: "name"}, {Name: "description"}, {Name: "start_date"}, {Name: "end_date"},
				},
				Build: func(v map[string]string) (projectInfo, error) {
					return projectInfo{Name: v["name"], Description: v["description"], StartDate: v["start_date"], EndDate: v["end_date"]}, nil
				},
				Validator: shared.NewValidator(),
			},
			donationStep(),
			&wizard.AttachmentStep{StepKey: "attachments", UploadPath: "/files", EntityType: "project"},
		},
	}
}

type discards struct {
	mu  sync.Mutex
	ids []string
}

func (d *discards) DiscardDraft(ctx context.Context, kind, resource, entityID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids = append(d.ids, kind+":"+resource+":"+entityID)
	return nil
}

type fixture struct {
	ctrl     *wizard.Controller
	api      *fakeAPI
	store    *wizard.RedisStore
	discards *discards
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	store := wizard.NewRedisStore(client, time.Hour)
	d := &discards{}
	be := backend.New(backend.Options{BaseURL: srv.URL})
	return fixture{
		ctrl:     wizard.NewController(store, be, d, nil, projectDefinition()),
		api:      api,
		store:    store,
		discards: d,
	}
}

func infoForm() wizard.Submission {
	return wizard.Submission{Form: url.Values{
		"name":        {"Water for all"},
		"description": {"Wells"},
		"start_date":  {"2024-01-01"},
		"end_date":    {"2024-12-31"},
	}}
}

func TestSubmitStepThreadsEntityID(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	st, err := fx.ctrl.Open(ctx, "project", "sess-1")
	require.NoError(t, err)

	require.NoError(t, fx.ctrl.SubmitStep(ctx, "tok", st, 0, infoForm()))
	assert.Equal(t, "abc", st.EntityID)
	assert.Equal(t, 1, st.CurrentStep)

	rows := wizard.Submission{Form: url.Values{
		"donor":  {"ACME", "Globex"},
		"type":   {"cash", "in_kind"},
		"amount": {"100.50", "20"},
	}}
	require.NoError(t, fx.ctrl.SubmitStep(ctx, "tok", st, 1, rows))

	calls := fx.api.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, http.MethodPost, calls[0].Method)
	assert.Equal(t, "/projects", calls[0].Path)
	assert.Equal(t, http.MethodPut, calls[1].Method)
	assert.Equal(t, "/projects/step/1/abc", calls[1].Path)

	var body map[string][]donationRow
	require.NoError(t, json.Unmarshal([]byte(calls[1].Body), &body))
	assert.Equal(t, []donationRow{
		{Donor: "ACME", Type: "cash", Amount: "100.50"},
		{Donor: "Globex", Type: "in_kind", Amount: "20.00"},
	}, body["donations"])
	assert.Equal(t, 2, st.CurrentStep)
}

func TestResubmittingInfoUpsertsByEntityID(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	st, err := fx.ctrl.Open(ctx, "project", "sess-1")
	require.NoError(t, err)
	require.NoError(t, fx.ctrl.SubmitStep(ctx, "tok", st, 0, infoForm()))
	require.NoError(t, fx.ctrl.GoBack(ctx, st))
	assert.Equal(t, "Water for all", st.Draft("info").Field("name"), "going back keeps the entered values")

	require.NoError(t, fx.ctrl.SubmitStep(ctx, "tok", st, 0, infoForm()))
	calls := fx.api.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, http.MethodPut, calls[1].Method)
	assert.Equal(t, "/projects/abc", calls[1].Path)
	assert.Equal(t, "abc", st.EntityID)
}

func TestLineItemsWithoutValidRowsMakeNoCall(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	st, err := fx.ctrl.Open(ctx, "project", "sess-1")
	require.NoError(t, err)
	require.NoError(t, fx.ctrl.SubmitStep(ctx, "tok", st, 0, infoForm()))
	before := len(fx.api.calls())

	rows := wizard.Submission{Form: url.Values{
		"donor":  {"ACME", "Globex"},
		"type":   {"cash", "cash"},
		"amount": {"abc", "1.234"},
	}}
	err = fx.ctrl.SubmitStep(ctx, "tok", st, 1, rows)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, fx.api.calls(), before)
	assert.Equal(t, 1, st.CurrentStep)
	assert.False(t, st.IsCommitted(1))
	assert.Len(t, st.Draft("donations").Rows, 2, "invalid rows stay in the form")
}

func TestInvalidRowsAreDroppedSilently(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	st, err := fx.ctrl.Open(ctx, "project", "sess-1")
	require.NoError(t, err)
	require.NoError(t, fx.ctrl.SubmitStep(ctx, "tok", st, 0, infoForm()))

	rows := wizard.Submission{Form: url.Values{
		"donor":  {"ACME", "Globex", "Initech"},
		"type":   {"cash", "cash", "cash"},
		"amount": {"10", "-5", "7.5"},
	}}
	require.NoError(t, fx.ctrl.SubmitStep(ctx, "tok", st, 1, rows))
	calls := fx.api.calls()
	var body map[string][]donationRow
	require.NoError(t, json.Unmarshal([]byte(calls[len(calls)-1].Body), &body))
	assert.Len(t, body["donations"], 2)
}

func TestInfoValidationReportsEndDate(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	st, err := fx.ctrl.Open(ctx, "project", "sess-1")
	require.NoError(t, err)

	sub := infoForm()
	sub.Form.Set("name", "W")
	sub.Form.Set("end_date", "2023-06-01")
	err = fx.ctrl.SubmitStep(ctx, "tok", st, 0, sub)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "end_date")
	assert.Empty(t, fx.api.calls())
	assert.Equal(t, "", st.EntityID)
}

func TestFailedStepKeepsPosition(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	st, err := fx.ctrl.Open(ctx, "project", "sess-1")
	require.NoError(t, err)
	require.NoError(t, fx.ctrl.SubmitStep(ctx, "tok", st, 0, infoForm()))

	fx.api.failOn("/projects/step/1/abc")
	err = fx.ctrl.SubmitStep(ctx, "tok", st, 1, wizard.Submission{Form: url.Values{
		"donor": {"ACME"}, "type": {"cash"}, "amount": {"5"},
	}})
	require.Error(t, err)
	assert.Equal(t, "Duplicated donor", backend.Humanize(err))
	assert.Equal(t, 1, st.CurrentStep)
	assert.True(t, st.IsCommitted(0))
	assert.False(t, st.IsCommitted(1))

	loaded, err := fx.ctrl.Load(ctx, st.ID, "sess-1")
	require.NoError(t, err)
	assert.Len(t, loaded.Draft("donations").Rows, 1)
}

func TestLaterStepRequiresEntity(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	st, err := fx.ctrl.Open(ctx, "project", "sess-1")
	require.NoError(t, err)

	err = fx.ctrl.SubmitStep(ctx, "tok", st, 1, wizard.Submission{Form: url.Values{}})
	assert.ErrorIs(t, err, wizard.ErrEntityRequired)
	assert.ErrorIs(t, fx.ctrl.GoForward(ctx, st), wizard.ErrNotCommitted)
	assert.ErrorIs(t, fx.ctrl.SubmitStep(ctx, "tok", st, 9, wizard.Submission{}), wizard.ErrStepOutOfRange)
}

func TestGoForwardAfterBack(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	st, err := fx.ctrl.Open(ctx, "project", "sess-1")
	require.NoError(t, err)
	require.NoError(t, fx.ctrl.SubmitStep(ctx, "tok", st, 0, infoForm()))
	require.NoError(t, fx.ctrl.GoBack(ctx, st))
	require.NoError(t, fx.ctrl.GoForward(ctx, st))
	assert.Equal(t, 1, st.CurrentStep)
	assert.Len(t, fx.api.calls(), 1, "navigation never resubmits")
}

func TestAttachmentsCommitWithAndWithoutFiles(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	st, err := fx.ctrl.Open(ctx, "project", "sess-1")
	require.NoError(t, err)
	require.NoError(t, fx.ctrl.SubmitStep(ctx, "tok", st, 0, infoForm()))
	require.NoError(t, fx.ctrl.SubmitStep(ctx, "tok", st, 1, wizard.Submission{Form: url.Values{
		"donor": {"ACME"}, "type": {"cash"}, "amount": {"5"},
	}}))

	require.NoError(t, fx.ctrl.SubmitStep(ctx, "tok", st, 2, wizard.Submission{}))
	assert.True(t, st.IsCommitted(2))
	assert.True(t, st.IsLast())

	require.NoError(t, fx.ctrl.SubmitStep(ctx, "tok", st, 2, wizard.Submission{Files: []backend.Upload{
		{Filename: "budget.pdf", ContentType: "application/pdf", Content: strings.NewReader("%PDF")},
	}}))
	calls := fx.api.calls()
	last := calls[len(calls)-1]
	assert.Equal(t, "/files", last.Path)
	assert.Contains(t, last.Body, "abc")
	assert.Contains(t, last.Body, "budget.pdf")
	assert.Equal(t, []string{"budget.pdf"}, st.Draft("attachments").Files)
}

type heldGate struct {
	mu       sync.Mutex
	busy     map[string]bool
	acquired []string
}

func (g *heldGate) Acquire(_ context.Context, sessionID string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy[sessionID] {
		return nil, shared.ErrBusy
	}
	g.busy[sessionID] = true
	g.acquired = append(g.acquired, sessionID)
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.busy, sessionID)
	}, nil
}

func TestAttachmentsWaitForTheTransferSlot(t *testing.T) {
	fx := newFixture(t)
	gate := &heldGate{busy: map[string]bool{"browser-1": true}}
	fx.ctrl.WithGate(gate)
	ctx := context.Background()
	st, err := fx.ctrl.Open(ctx, "project", "sess-1")
	require.NoError(t, err)
	require.NoError(t, fx.ctrl.SubmitStep(ctx, "tok", st, 0, infoForm()))
	require.NoError(t, fx.ctrl.SubmitStep(ctx, "tok", st, 1, wizard.Submission{Form: url.Values{
		"donor": {"ACME"}, "type": {"cash"}, "amount": {"5"},
	}}))
	before := len(fx.api.calls())

	upload := func() wizard.Submission {
		return wizard.Submission{Session: "browser-1", Files: []backend.Upload{
			{Filename: "budget.pdf", ContentType: "application/pdf", Content: strings.NewReader("%PDF")},
		}}
	}
	err = fx.ctrl.SubmitStep(ctx, "tok", st, 2, upload())
	assert.ErrorIs(t, err, shared.ErrBusy)
	assert.False(t, st.IsCommitted(2))
	assert.Len(t, fx.api.calls(), before, "nothing is uploaded while another transfer runs")

	gate.mu.Lock()
	delete(gate.busy, "browser-1")
	gate.mu.Unlock()
	require.NoError(t, fx.ctrl.SubmitStep(ctx, "tok", st, 2, upload()))
	assert.True(t, st.IsCommitted(2))
	assert.Equal(t, []string{"browser-1"}, gate.acquired)
	assert.Empty(t, gate.busy, "the slot is released after the upload")

	require.NoError(t, fx.ctrl.SubmitStep(ctx, "tok", st, 2, wizard.Submission{Session: "browser-1"}))
	assert.Len(t, gate.acquired, 1, "committing without files does not take the slot")
}

func TestCancelDiscardsFirstStepOnlyEntities(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	untouched, err := fx.ctrl.Open(ctx, "project", "sess-1")
	require.NoError(t, err)
	require.NoError(t, fx.ctrl.Cancel(ctx, untouched))
	assert.Empty(t, fx.discards.ids)

	st, err := fx.ctrl.Open(ctx, "project", "sess-1")
	require.NoError(t, err)
	require.NoError(t, fx.ctrl.SubmitStep(ctx, "tok", st, 0, infoForm()))
	require.NoError(t, fx.ctrl.Cancel(ctx, st))
	assert.Equal(t, []string{"project:/projects:abc"}, fx.discards.ids)

	_, err = fx.ctrl.Load(ctx, st.ID, "sess-1")
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestCancelKeepsFurtherConfiguredEntities(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	st, err := fx.ctrl.Open(ctx, "project", "sess-1")
	require.NoError(t, err)
	require.NoError(t, fx.ctrl.SubmitStep(ctx, "tok", st, 0, infoForm()))
	require.NoError(t, fx.ctrl.SubmitStep(ctx, "tok", st, 1, wizard.Submission{Form: url.Values{
		"donor": {"ACME"}, "type": {"cash"}, "amount": {"5"},
	}}))
	require.NoError(t, fx.ctrl.Cancel(ctx, st))
	assert.Empty(t, fx.discards.ids)
}

func TestLoadChecksOwner(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	st, err := fx.ctrl.Open(ctx, "project", "sess-1")
	require.NoError(t, err)

	_, err = fx.ctrl.Load(ctx, st.ID, "sess-2")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	loaded, err := fx.ctrl.Load(ctx, st.ID, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Total)

	require.NoError(t, fx.ctrl.Finalize(ctx, loaded))
	_, err = fx.ctrl.Load(ctx, st.ID, "sess-1")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestImportReplacesRows(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	st, err := fx.ctrl.Open(ctx, "project", "sess-1")
	require.NoError(t, err)
	require.NoError(t, fx.ctrl.SubmitStep(ctx, "tok", st, 0, infoForm()))
	require.NoError(t, fx.ctrl.SubmitStep(ctx, "tok", st, 1, wizard.Submission{Form: url.Values{
		"donor": {"Old"}, "type": {"cash"}, "amount": {"1"},
	}}))
	require.NoError(t, fx.ctrl.GoBack(ctx, st))

	csv := "Donor,Type,Amount\nACME,Cash,10\nGlobex,In kind,20.5\n"
	report, err := fx.ctrl.Import(ctx, st, 1, "donations.csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, "2 processed, 0 with errors", report.String())

	rows := st.Draft("donations").Rows
	require.Len(t, rows, 2)
	assert.Equal(t, "ACME", rows[0]["donor"])
	assert.Equal(t, "in_kind", rows[1]["type"])
	assert.Equal(t, "20.50", rows[1]["amount"])

	_, err = fx.ctrl.Import(ctx, st, 0, "info.csv", strings.NewReader(csv))
	assert.Error(t, err)
}
