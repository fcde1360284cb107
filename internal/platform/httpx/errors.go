// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/grantdesk/grantdesk/internal/backend"
	"github.com/grantdesk/grantdesk/internal/shared"
)

// RespondError maps console and backend errors to RFC7807 responses.
func RespondError(w http.ResponseWriter, err error) {
	var (
		verr   *shared.ValidationError
		apiErr *backend.APIError
	)
	switch {
	case errors.As(err, &verr):
		Problem(w, http.StatusUnprocessableEntity, "Validation Failed", verr.Error())
	case errors.Is(err, shared.ErrUnauthenticated):
		Problem(w, http.StatusUnauthorized, "Unauthorized", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", backend.Humanize(err))
	case errors.Is(err, shared.ErrBusy):
		Problem(w, http.StatusConflict, "Busy", shared.UserSafeMessage(err))
	case errors.As(err, &apiErr) && apiErr.Status >= http.StatusBadRequest:
		Problem(w, apiErr.Status, http.StatusText(apiErr.Status), backend.Humanize(err))
	case errors.As(err, &apiErr):
		Problem(w, http.StatusBadGateway, "Bad Gateway", backend.Humanize(err))
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
