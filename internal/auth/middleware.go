package auth

import (
	"net/http"
	"strings"

	"github.com/grantdesk/grantdesk/internal/shared"
)

// RequireAuth sends requests without a bearer token to the login page and
// keeps users with a pending forced password change on that screen.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess.Token() == "" {
			if strings.Contains(r.Header.Get("Accept"), "application/json") {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
			return
		}
		if sess.Identity().MustChangePassword {
			http.Redirect(w, r, "/auth/password", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
