package testing

import (
	"context"
	"net/http"
	stdtesting "testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/grantdesk/grantdesk/internal/shared"
)

// Sessions is a session manager over an in-memory Redis.
type Sessions struct {
	Manager *shared.SessionManager
	Redis   *redis.Client
	Server  *miniredis.Miniredis
}

// NewSessions starts miniredis and a session manager bound to it.
func NewSessions(t stdtesting.TB) *Sessions {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &Sessions{
		Manager: shared.NewSessionManager(client, "test_session", "secret", time.Hour, false),
		Redis:   client,
		Server:  mr,
	}
}

// Attach loads a session for req and stores it in the request context. A
// non-empty role signs the session in with a bearer token.
func (s *Sessions) Attach(t stdtesting.TB, req *http.Request, role string) (*http.Request, *shared.Session) {
	t.Helper()
	sess, err := s.Manager.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if role != "" {
		sess.SetIdentity(shared.Identity{
			UserID: "u-1",
			Name:   "Test User",
			Email:  "user@test.local",
			Role:   role,
			Token:  "test-token",
		})
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess)), sess
}
