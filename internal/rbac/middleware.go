package rbac

import (
	"net/http"
	"strings"

	"log/slog"

	"github.com/grantdesk/grantdesk/internal/shared"
)

// Middleware wires role checks for HTTP handlers. Roles come from the user
// record the backend returned at login.
type Middleware struct {
	Logger *slog.Logger
}

// RequireAny ensures the current user holds at least one of the roles.
func (m Middleware) RequireAny(roles ...string) func(http.Handler) http.Handler {
	normalized := normalizeRoles(roles)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			role, ok := m.currentRole(r)
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			if hasAnyRole(role, normalized) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Debug("rbac denied", slog.String("role", role), slog.String("path", r.URL.Path))
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

// Allowed reports whether the request's user holds one of the roles. Handlers
// use it to hide actions the user cannot perform.
func (m Middleware) Allowed(r *http.Request, roles ...string) bool {
	normalized := normalizeRoles(roles)
	if len(normalized) == 0 {
		return true
	}
	role, ok := m.currentRole(r)
	return ok && hasAnyRole(role, normalized)
}

func (m Middleware) currentRole(r *http.Request) (string, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return "", false
	}
	role := strings.TrimSpace(strings.ToLower(sess.Identity().Role))
	if role == "" {
		return "", false
	}
	return role, true
}

func normalizeRoles(roles []string) []string {
	unique := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		role = strings.TrimSpace(strings.ToLower(role))
		if role == "" {
			continue
		}
		unique[role] = struct{}{}
	}
	normalized := make([]string, 0, len(unique))
	for role := range unique {
		normalized = append(normalized, role)
	}
	return normalized
}

func hasAnyRole(role string, required []string) bool {
	for _, r := range required {
		if r == role {
			return true
		}
	}
	return false
}
