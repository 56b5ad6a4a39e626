package authz

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/convoy-fleet/convoy/internal/shared"
)

// AuditPort records permission mutations for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Notifier publishes cache invalidations to sibling processes. The local
// cache is dropped synchronously before the notifier runs; the broadcast
// only shortens staleness elsewhere.
type Notifier interface {
	Publish(ctx context.Context, scope Scope) error
}

// Service is the resolution engine. It composes the catalog, the alias
// table, the grant stores and the cache into a single decision function,
// and owns the cache-coherency obligations of every mutation.
type Service struct {
	catalog  *Catalog
	aliases  *AliasTable
	roles    RoleGrantStore
	users    UserOverrideStore
	cache    *Cache
	audit    AuditPort
	notifier Notifier
	logger   *slog.Logger
}

// NewService constructs a Service. audit and notifier may be nil.
func NewService(catalog *Catalog, aliases *AliasTable, roles RoleGrantStore, users UserOverrideStore, cache *Cache, audit AuditPort, notifier Notifier, logger *slog.Logger) *Service {
	if aliases == nil {
		aliases = NewAliasTable(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		catalog:  catalog,
		aliases:  aliases,
		roles:    roles,
		users:    users,
		cache:    cache,
		audit:    audit,
		notifier: notifier,
		logger:   logger,
	}
}

// Catalog exposes the closed set of valid permission keys.
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// Resolve decides whether the principal may perform action on module.
//
// Precedence: superadmin bypass, then user override, then role grant,
// then alias read-through against role grants, then deny. A store failure
// denies and surfaces ErrStoreUnavailable so callers can distinguish
// "denied" from "degraded"; the engine never fails open.
func (s *Service) Resolve(ctx context.Context, principal Principal, module, action string) (bool, error) {
	if principal.IsSuperadmin() {
		return true, nil
	}
	key := NewKey(module, action)
	if !s.catalog.Has(key) {
		// Catalog drift between a client and the deployment, not a
		// security event. Deny and leave a trail.
		s.logger.Warn("unknown permission key", slog.String("key", key.String()), slog.String("role", principal.Role))
		return false, nil
	}

	overrides, err := s.userOverrides(ctx, principal.ID)
	if err != nil {
		return false, fmt.Errorf("%w: overrides for user %s: %v", ErrStoreUnavailable, principal.ID, err)
	}
	if granted, ok := overrides[key]; ok {
		return granted, nil
	}

	base, err := s.roleGrants(ctx, principal.Role)
	if err != nil {
		return false, fmt.Errorf("%w: grants for role %q: %v", ErrStoreUnavailable, principal.Role, err)
	}
	if _, ok := base[key]; ok {
		return true, nil
	}
	for _, canonical := range s.aliases.Resolve(key) {
		if _, ok := base[canonical]; ok {
			return true, nil
		}
	}
	return false, nil
}

// ListEffective materializes the full set of keys Resolve would grant the
// principal: role grants, plus alias-expanded role grants, with user
// overrides applied last. Superadmin gets the whole catalog.
func (s *Service) ListEffective(ctx context.Context, principal Principal) ([]Key, error) {
	if principal.IsSuperadmin() {
		return s.catalog.Keys(), nil
	}

	base, err := s.roleGrants(ctx, principal.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: grants for role %q: %v", ErrStoreUnavailable, principal.Role, err)
	}
	overrides, err := s.userOverrides(ctx, principal.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: overrides for user %s: %v", ErrStoreUnavailable, principal.ID, err)
	}

	effective := make(map[Key]struct{}, len(base))
	for _, key := range s.catalog.Keys() {
		if _, ok := base[key]; ok {
			effective[key] = struct{}{}
			continue
		}
		for _, canonical := range s.aliases.Resolve(key) {
			if _, ok := base[canonical]; ok {
				effective[key] = struct{}{}
				break
			}
		}
	}
	for key, granted := range overrides {
		// Resolve fails closed on keys outside the catalog before it
		// ever consults overrides, so they must not surface here either.
		if !s.catalog.Has(key) {
			continue
		}
		if granted {
			effective[key] = struct{}{}
		} else {
			delete(effective, key)
		}
	}
	return sortedKeys(effective), nil
}

// SetRoleGrant upserts a role default. The store write and the cache
// invalidation both complete before success is reported: a resolution
// issued after this returns observes the new value.
func (s *Service) SetRoleGrant(ctx context.Context, role, module, action string, granted bool) error {
	key := s.aliases.Canonicalize(NewKey(module, action))
	if !s.catalog.Has(key) {
		return fmt.Errorf("%w: %s", ErrUnknownPermission, key)
	}
	if err := s.roles.SetGrant(ctx, role, key, granted); err != nil {
		return fmt.Errorf("%w: set grant %s for role %q: %v", ErrStoreUnavailable, key, role, err)
	}
	s.invalidate(ctx, RoleScope(role))
	s.recordAudit(ctx, "role_grant.set", "role", role, map[string]any{
		"key":     key.String(),
		"granted": granted,
	})
	return nil
}

// SetUserOverride upserts a user-specific exception for a key.
func (s *Service) SetUserOverride(ctx context.Context, userID uuid.UUID, module, action string, granted bool) error {
	key := s.aliases.Canonicalize(NewKey(module, action))
	if !s.catalog.Has(key) {
		return fmt.Errorf("%w: %s", ErrUnknownPermission, key)
	}
	if err := s.users.SetOverride(ctx, userID, key, granted); err != nil {
		return fmt.Errorf("%w: set override %s for user %s: %v", ErrStoreUnavailable, key, userID, err)
	}
	s.invalidate(ctx, UserScope(userID.String()))
	s.recordAudit(ctx, "user_override.set", "user", userID.String(), map[string]any{
		"key":     key.String(),
		"granted": granted,
	})
	return nil
}

// ClearUserOverride removes the exception, reverting the user to the role
// default for that key.
func (s *Service) ClearUserOverride(ctx context.Context, userID uuid.UUID, module, action string) error {
	key := s.aliases.Canonicalize(NewKey(module, action))
	if !s.catalog.Has(key) {
		return fmt.Errorf("%w: %s", ErrUnknownPermission, key)
	}
	if err := s.users.ClearOverride(ctx, userID, key); err != nil {
		return fmt.Errorf("%w: clear override %s for user %s: %v", ErrStoreUnavailable, key, userID, err)
	}
	s.invalidate(ctx, UserScope(userID.String()))
	s.recordAudit(ctx, "user_override.clear", "user", userID.String(), map[string]any{
		"key": key.String(),
	})
	return nil
}

// RoleGrants returns the role's granted keys. With forceRefresh the cache
// entry is dropped first, which is the reconciliation read callers use
// after a partial template failure instead of trusting their own
// bookkeeping.
func (s *Service) RoleGrants(ctx context.Context, role string, forceRefresh bool) ([]Key, error) {
	if forceRefresh {
		s.cache.Invalidate(RoleScope(role))
	}
	base, err := s.roleGrants(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("%w: grants for role %q: %v", ErrStoreUnavailable, role, err)
	}
	grants := make(map[Key]struct{}, len(base))
	for key := range base {
		grants[key] = struct{}{}
	}
	return sortedKeys(grants), nil
}

func (s *Service) roleGrants(ctx context.Context, role string) (map[Key]struct{}, error) {
	scope := RoleScope(role)
	if cached, ok := s.cache.get(scope); ok {
		return cached.(map[Key]struct{}), nil
	}
	grants, err := s.roles.GrantsFor(ctx, role)
	if err != nil {
		return nil, err
	}
	s.cache.set(scope, grants)
	return grants, nil
}

func (s *Service) userOverrides(ctx context.Context, userID uuid.UUID) (map[Key]bool, error) {
	scope := UserScope(userID.String())
	if cached, ok := s.cache.get(scope); ok {
		return cached.(map[Key]bool), nil
	}
	overrides, err := s.users.OverridesFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.cache.set(scope, overrides)
	return overrides, nil
}

// invalidate drops the local entry synchronously, then lets the notifier
// fan the invalidation out. A failed broadcast never fails the mutation:
// the in-process ordering guarantee already holds, and sibling processes
// fall back to their TTL.
func (s *Service) invalidate(ctx context.Context, scope Scope) {
	s.cache.Invalidate(scope)
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, scope); err != nil {
		s.logger.Warn("invalidation broadcast", slog.String("scope", scope.String()), slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Meta:     meta,
	}
	if actor := PrincipalFromContext(ctx); actor != nil {
		log.ActorID = actor.ID.String()
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}

func sortedKeys(set map[Key]struct{}) []Key {
	keys := make([]Key, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Module != keys[j].Module {
			return keys[i].Module < keys[j].Module
		}
		return keys[i].Action < keys[j].Action
	})
	return keys
}
