package authz

import (
	"errors"
	"net/http"

	"github.com/convoy-fleet/convoy/internal/platform/httpx"
)

// deniedPayload extends the problem shape with the missing capability so
// the UI can render a specific message.
type deniedPayload struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
	Module string `json:"module"`
	Action string `json:"action"`
}

// RespondError maps engine errors onto HTTP responses. A degraded store
// yields a generic "try again", never a false "denied".
func RespondError(w http.ResponseWriter, err error) {
	var denied *PermissionDeniedError
	switch {
	case errors.Is(err, ErrAuthenticationRequired):
		httpx.Problem(w, http.StatusUnauthorized, "Authentication Required", "no principal supplied")
	case errors.As(err, &denied):
		httpx.JSON(w, http.StatusForbidden, deniedPayload{
			Title:  "Permission Denied",
			Status: http.StatusForbidden,
			Detail: "missing permission " + denied.Module + KeySeparator + denied.Action,
			Module: denied.Module,
			Action: denied.Action,
		})
	case errors.Is(err, ErrStoreUnavailable):
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Degraded", "authorization store unavailable, try again")
	case errors.Is(err, ErrUnknownPermission), errors.Is(err, ErrUnknownTemplate), errors.Is(err, ErrInvalidKey):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
