package authz

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// RoleSuperadmin bypasses the stores and cache entirely: every key resolves
// to granted, including keys outside the catalog.
const RoleSuperadmin = "superadmin"

// KeySeparator joins module and action in the wire form of a permission key.
const KeySeparator = ":"

var (
	// ErrAuthenticationRequired indicates no principal was supplied.
	ErrAuthenticationRequired = errors.New("authz: authentication required")
	// ErrStoreUnavailable indicates the backing store failed or timed out.
	// Resolution fails closed on this condition; it is surfaced so callers
	// can distinguish "denied" from "degraded".
	ErrStoreUnavailable = errors.New("authz: store unavailable")
	// ErrUnknownPermission indicates a module/action pair outside the catalog.
	ErrUnknownPermission = errors.New("authz: permission not in catalog")
	// ErrUnknownTemplate indicates an unregistered template name.
	ErrUnknownTemplate = errors.New("authz: unknown template")
	// ErrInvalidKey indicates a malformed permission key string.
	ErrInvalidKey = errors.New("authz: invalid permission key")
)

// Key identifies a permission as a (module, action) pair. A Key is
// comparable and safe to use as a map key.
type Key struct {
	Module string
	Action string
}

// NewKey builds a normalized Key. Module and action names are stored
// lowercase; the stores and the catalog only ever see this form.
func NewKey(module, action string) Key {
	return Key{
		Module: strings.ToLower(strings.TrimSpace(module)),
		Action: strings.ToLower(strings.TrimSpace(action)),
	}
}

// ParseKey parses the "module:action" wire form.
func ParseKey(s string) (Key, error) {
	module, action, ok := strings.Cut(s, KeySeparator)
	if !ok {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	key := NewKey(module, action)
	if key.Module == "" || key.Action == "" {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	return key, nil
}

// String renders the "module:action" wire form.
func (k Key) String() string {
	return k.Module + KeySeparator + k.Action
}

// IsZero reports whether either half of the key is missing.
func (k Key) IsZero() bool {
	return k.Module == "" || k.Action == ""
}

// Principal is the authenticated caller on whose behalf checks are made.
// Identity establishment happens outside this package; the engine only
// trusts the (ID, Role) pair it is handed.
type Principal struct {
	ID   uuid.UUID
	Role string
}

// IsSuperadmin reports whether the principal holds the bypass role.
func (p Principal) IsSuperadmin() bool {
	return p.Role == RoleSuperadmin
}

// PermissionDeniedError carries the specific missing capability so the
// transport layer can render a message naming it.
type PermissionDeniedError struct {
	Module string
	Action string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("authz: permission denied: %s%s%s", e.Module, KeySeparator, e.Action)
}

// KeyError pairs a permission key with the failure it hit during a bulk
// template application.
type KeyError struct {
	Key Key
	Err string
}

// Report is the outcome of a template application. The batch is not
// atomic; the report is the authoritative account of which writes landed.
type Report struct {
	Succeeded []Key
	Failed    []KeyError
}

// Ok reports whether every write in the batch succeeded.
func (r Report) Ok() bool {
	return len(r.Failed) == 0
}
