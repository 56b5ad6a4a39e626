package authz

import (
	"sync"
	"time"
)

// ScopeKind distinguishes role-level from user-level cache entries.
type ScopeKind string

const (
	// ScopeRole caches a role's grant set.
	ScopeRole ScopeKind = "role"
	// ScopeUser caches a user's override map.
	ScopeUser ScopeKind = "user"
)

// Scope identifies one cacheable lookup: a single role or a single user.
type Scope struct {
	Kind ScopeKind
	ID   string
}

// RoleScope builds the cache scope for a role.
func RoleScope(role string) Scope {
	return Scope{Kind: ScopeRole, ID: role}
}

// UserScope builds the cache scope for a user.
func UserScope(id string) Scope {
	return Scope{Kind: ScopeUser, ID: id}
}

func (s Scope) String() string {
	return string(s.Kind) + KeySeparator + s.ID
}

type cacheEntry struct {
	value     any
	expiresAt time.Time
}

// Cache memoizes role and user lookups for a bounded window. It is
// process-local and owned entirely by the resolution service: mutations
// invalidate their scope before reporting success, so within one process
// a read issued after a successful write always observes the new value.
// Entries past their TTL are treated as absent and dropped lazily.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[Scope]cacheEntry
}

// NewCache constructs a cache whose entries live for ttl. A zero or
// negative ttl disables memoization entirely.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[Scope]cacheEntry),
	}
}

// TTL exposes the configured entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

func (c *Cache) get(scope Scope) (any, bool) {
	if c == nil || c.ttl <= 0 {
		return nil, false
	}
	c.mu.RLock()
	entry, ok := c.entries[scope]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.Invalidate(scope)
		return nil, false
	}
	return entry.value, true
}

func (c *Cache) set(scope Scope, value any) {
	if c == nil || c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[scope] = cacheEntry{value: value, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Invalidate drops the entry for one scope. Dropping is unconditional:
// the next read repopulates from the store rather than trusting any
// bookkeeping done by the writer.
func (c *Cache) Invalidate(scope Scope) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.entries, scope)
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *Cache) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[Scope]cacheEntry)
	c.mu.Unlock()
}

// Len reports the number of live entries, expired or not.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
