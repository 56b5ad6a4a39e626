package app

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/convoy-fleet/convoy/internal/authz"
)

// IdentityProvider supplies the authenticated principal for a request.
// Authentication mechanics live outside this service; the provider is the
// seam where they plug in.
type IdentityProvider interface {
	Identify(r *http.Request) (*authz.Principal, error)
}

// HeaderIdentity trusts principal headers set by an authenticating proxy
// in front of the service. A request without both headers is anonymous.
type HeaderIdentity struct {
	UserHeader string
	RoleHeader string
}

// Identify reads the principal from the configured headers.
func (h HeaderIdentity) Identify(r *http.Request) (*authz.Principal, error) {
	rawUser := r.Header.Get(h.UserHeader)
	role := r.Header.Get(h.RoleHeader)
	if rawUser == "" || role == "" {
		return nil, nil
	}
	id, err := uuid.Parse(rawUser)
	if err != nil {
		return nil, err
	}
	return &authz.Principal{ID: id, Role: role}, nil
}
