package audithttp

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantdesk/grantdesk/internal/audit"
	"github.com/grantdesk/grantdesk/internal/backend"
	"github.com/grantdesk/grantdesk/internal/rbac"
	"github.com/grantdesk/grantdesk/internal/shared"
	"github.com/grantdesk/grantdesk/internal/view"
	testkit "github.com/grantdesk/grantdesk/testing"
)

type stubLogs struct {
	mu     sync.Mutex
	params []backend.ListParams
	rows   []audit.Log
}

func (s *stubLogs) fetch(_ context.Context, token string, p backend.ListParams) (backend.ListResult[audit.Log], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token == "" {
		return backend.ListResult[audit.Log]{}, shared.ErrUnauthenticated
	}
	s.params = append(s.params, p)
	end := min(p.Offset+p.Limit, len(s.rows))
	if p.Offset >= len(s.rows) {
		return backend.ListResult[audit.Log]{Count: len(s.rows)}, nil
	}
	return backend.ListResult[audit.Log]{Data: s.rows[p.Offset:end], Count: len(s.rows)}, nil
}

func sampleLogs(n int) []audit.Log {
	rows := make([]audit.Log, n)
	at := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	for i := range rows {
		rows[i] = audit.Log{ID: "l", At: at, Actor: "ana@example.org", Action: "update", Entity: "project", EntityID: "p1"}
	}
	return rows
}

type harness struct {
	logs     *stubLogs
	recorder *view.Recorder
	sessions *testkit.Sessions
	router   chi.Router
}

func newHarness(t *testing.T, rows []audit.Log) *harness {
	t.Helper()
	logs := &stubLogs{rows: rows}
	rec := &view.Recorder{}
	rs := view.Responder{Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), Templates: rec}
	h := NewHandler(rs, logs.fetch, rbac.Middleware{})
	router := chi.NewRouter()
	router.Route("/logs", h.MountRoutes)
	return &harness{logs: logs, recorder: rec, sessions: testkit.NewSessions(t), router: router}
}

func (hs *harness) get(t *testing.T, target, role string) *httptest.ResponseRecorder {
	t.Helper()
	req, _ := hs.sessions.Attach(t, httptest.NewRequest(http.MethodGet, target, nil), role)
	res := httptest.NewRecorder()
	hs.router.ServeHTTP(res, req)
	return res
}

func TestLogsRequireAdmin(t *testing.T) {
	hs := newHarness(t, sampleLogs(3))
	res := hs.get(t, "/logs", shared.RoleCoordinator)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Empty(t, hs.logs.params)
}

func TestLogsForwardFilters(t *testing.T) {
	hs := newHarness(t, sampleLogs(3))
	res := hs.get(t, "/logs?actor=ana&action=update&from=2024-03-01&to=2024-03-31", shared.RoleAdmin)
	require.Equal(t, http.StatusOK, res.Code)

	require.Len(t, hs.logs.params, 1)
	p := hs.logs.params[0]
	assert.Equal(t, "ana", p.Filters["actor"])
	assert.Equal(t, "2024-03-01", p.Filters["from"])
	assert.Equal(t, "at", p.Sort)
	assert.True(t, p.Descending)

	page := hs.recorder.Page()
	assert.Len(t, page["Rows"].([]audit.Log), 3)
	assert.Equal(t, "/logs/export.csv?action=update&actor=ana&from=2024-03-01&to=2024-03-31", page["ExportURL"])
}

func TestLogsRejectInvertedRange(t *testing.T) {
	hs := newHarness(t, sampleLogs(3))
	res := hs.get(t, "/logs?from=2024-04-01&to=2024-03-01", shared.RoleAdmin)
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
	assert.Contains(t, hs.recorder.Page()["Errors"], "to")
	assert.Empty(t, hs.logs.params, "invalid filters are not sent")
}

func TestExportRejectsInvalidDates(t *testing.T) {
	hs := newHarness(t, sampleLogs(3))
	res := hs.get(t, "/logs/export.csv?from=yesterday", shared.RoleAdmin)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "from: from must be a date (YYYY-MM-DD)\n", res.Body.String())
	assert.Empty(t, hs.logs.params)
}

func TestExportWalksEveryPage(t *testing.T) {
	hs := newHarness(t, sampleLogs(230))
	res := hs.get(t, "/logs/export.csv?action=update&offset=1", shared.RoleAdmin)
	require.Equal(t, http.StatusOK, res.Code)

	assert.Equal(t, "text/csv; charset=utf-8", res.Header().Get("Content-Type"))
	assert.Equal(t, "230", res.Header().Get("X-Export-Rows"))
	lines := strings.Split(strings.TrimRight(res.Body.String(), "\r\n"), "\r\n")
	assert.Len(t, lines, 231)
	assert.Equal(t, "at,actor,action,entity,entity_id,detail", lines[0])
	assert.Equal(t, "2024-03-15T09:00:00Z,ana@example.org,update,project,p1,", lines[1])

	require.Len(t, hs.logs.params, 3)
	assert.Equal(t, 0, hs.logs.params[0].Offset)
	assert.Equal(t, 200, hs.logs.params[2].Offset)
	assert.Equal(t, "update", hs.logs.params[2].Filters["action"])
}

func TestExportIsRateLimitedPerUser(t *testing.T) {
	hs := newHarness(t, sampleLogs(1))
	for i := 0; i < rateLimit; i++ {
		res := hs.get(t, "/logs/export.csv", shared.RoleAdmin)
		require.Equal(t, http.StatusOK, res.Code)
	}
	res := hs.get(t, "/logs/export.csv", shared.RoleAdmin)
	assert.Equal(t, http.StatusTooManyRequests, res.Code)
}
