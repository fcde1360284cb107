package shared

import "context"

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// SessionToken is a token source bound to the request session. The token may
// appear during the session lifetime, for example right after login.
type SessionToken struct {
	Session *Session
}

// Token returns the bearer token or an empty string.
func (t SessionToken) Token() string {
	return t.Session.Token()
}
