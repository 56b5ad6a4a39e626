package authz

import (
	"context"

	"github.com/google/uuid"
)

// RoleGrantStore persists default grants per role. GrantsFor returns only
// keys explicitly granted true; absence means "not granted". SetGrant is
// a single-row upsert — rows are flipped, never deleted.
//
// The store is storage-agnostic and carries no cache obligations; the
// service invalidates the role scope after every successful write.
type RoleGrantStore interface {
	GrantsFor(ctx context.Context, role string) (map[Key]struct{}, error)
	SetGrant(ctx context.Context, role string, key Key, granted bool) error
}

// UserOverrideStore persists sparse per-user exceptions. An override,
// when present, wins over the role default in either direction.
// ClearOverride removes the row entirely, reverting to the role default,
// which is distinct from setting granted=false.
type UserOverrideStore interface {
	OverridesFor(ctx context.Context, userID uuid.UUID) (map[Key]bool, error)
	SetOverride(ctx context.Context, userID uuid.UUID, key Key, granted bool) error
	ClearOverride(ctx context.Context, userID uuid.UUID, key Key) error
}
