package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/convoy-fleet/convoy/internal/authz"
)

func TestHeaderIdentity(t *testing.T) {
	provider := HeaderIdentity{UserHeader: "X-Convoy-User", RoleHeader: "X-Convoy-Role"}
	userID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Convoy-User", userID.String())
	req.Header.Set("X-Convoy-Role", "dispatcher")

	principal, err := provider.Identify(req)
	require.NoError(t, err)
	require.NotNil(t, principal)
	require.Equal(t, userID, principal.ID)
	require.Equal(t, "dispatcher", principal.Role)
}

func TestHeaderIdentityAnonymous(t *testing.T) {
	provider := HeaderIdentity{UserHeader: "X-Convoy-User", RoleHeader: "X-Convoy-Role"}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	principal, err := provider.Identify(req)
	require.NoError(t, err)
	require.Nil(t, principal)

	// One header without the other is still anonymous.
	req.Header.Set("X-Convoy-User", uuid.NewString())
	principal, err = provider.Identify(req)
	require.NoError(t, err)
	require.Nil(t, principal)
}

func TestHeaderIdentityMalformedUser(t *testing.T) {
	provider := HeaderIdentity{UserHeader: "X-Convoy-User", RoleHeader: "X-Convoy-Role"}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Convoy-User", "not-a-uuid")
	req.Header.Set("X-Convoy-Role", "dispatcher")

	_, err := provider.Identify(req)
	require.Error(t, err)
}

func TestIdentityMiddlewareInjectsPrincipal(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	provider := HeaderIdentity{UserHeader: "X-Convoy-User", RoleHeader: "X-Convoy-Role"}
	stack := MiddlewareStack(MiddlewareConfig{Logger: logger, Identity: provider})

	var seen *authz.Principal
	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = authz.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	for i := len(stack) - 1; i >= 0; i-- {
		handler = stack[i](handler)
	}

	userID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Convoy-User", userID.String())
	req.Header.Set("X-Convoy-Role", "finance")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	require.Equal(t, http.StatusNoContent, res.Code)
	require.NotNil(t, seen)
	require.Equal(t, userID, seen.ID)
	require.Equal(t, "finance", seen.Role)

	// A bad user header is rejected at the edge.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Convoy-User", "garbage")
	req.Header.Set("X-Convoy-Role", "finance")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}
