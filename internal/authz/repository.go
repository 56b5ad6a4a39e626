package authz

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for the permission
// catalog, role grants and user overrides.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Catalog loads the full permission catalog. Called once at startup; the
// catalog is immutable for the life of the process.
func (r *Repository) Catalog(ctx context.Context) (*Catalog, error) {
	rows, err := r.pool.Query(ctx, `SELECT module, action FROM permissions ORDER BY module, action`)
	if err != nil {
		return nil, fmt.Errorf("authz: load catalog: %w", err)
	}
	defer rows.Close()
	var keys []Key
	for rows.Next() {
		var key Key
		if err := rows.Scan(&key.Module, &key.Action); err != nil {
			return nil, fmt.Errorf("authz: load catalog: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("authz: load catalog: %w", err)
	}
	return NewCatalog(keys), nil
}

// GrantsFor returns the set of keys the role is explicitly granted.
func (r *Repository) GrantsFor(ctx context.Context, role string) (map[Key]struct{}, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.module, p.action
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role = $1 AND rp.granted`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	grants := make(map[Key]struct{})
	for rows.Next() {
		var key Key
		if err := rows.Scan(&key.Module, &key.Action); err != nil {
			return nil, err
		}
		grants[key] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}

// SetGrant upserts a single role grant row.
func (r *Repository) SetGrant(ctx context.Context, role string, key Key, granted bool) error {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO role_permissions (role, permission_id, granted)
		SELECT $1, p.id, $4 FROM permissions p WHERE p.module = $2 AND p.action = $3
		ON CONFLICT (role, permission_id) DO UPDATE SET granted = EXCLUDED.granted`,
		role, key.Module, key.Action, granted)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownPermission, key)
	}
	return nil
}

// OverridesFor returns the sparse override map for a user.
func (r *Repository) OverridesFor(ctx context.Context, userID uuid.UUID) (map[Key]bool, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.module, p.action, up.granted
		FROM user_permissions up
		JOIN permissions p ON p.id = up.permission_id
		WHERE up.user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	overrides := make(map[Key]bool)
	for rows.Next() {
		var key Key
		var granted bool
		if err := rows.Scan(&key.Module, &key.Action, &granted); err != nil {
			return nil, err
		}
		overrides[key] = granted
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return overrides, nil
}

// SetOverride upserts a single user override row.
func (r *Repository) SetOverride(ctx context.Context, userID uuid.UUID, key Key, granted bool) error {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO user_permissions (user_id, permission_id, granted)
		SELECT $1, p.id, $4 FROM permissions p WHERE p.module = $2 AND p.action = $3
		ON CONFLICT (user_id, permission_id) DO UPDATE SET granted = EXCLUDED.granted`,
		userID, key.Module, key.Action, granted)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownPermission, key)
	}
	return nil
}

// ClearOverride deletes the override row, reverting the user to the role
// default for that key. Clearing an absent override is a no-op.
func (r *Repository) ClearOverride(ctx context.Context, userID uuid.UUID, key Key) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM user_permissions up
		USING permissions p
		WHERE up.permission_id = p.id AND up.user_id = $1 AND p.module = $2 AND p.action = $3`,
		userID, key.Module, key.Action)
	return err
}

// Roles returns every role that has at least one grant row. Used by the
// warmup job to decide which scopes to pre-populate.
func (r *Repository) Roles(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT role FROM role_permissions ORDER BY role`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}
