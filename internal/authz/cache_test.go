package authz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCacheReturnsValueWithinTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c := NewCache(5 * time.Minute)
	c.now = func() time.Time { return now }

	scope := RoleScope("staff")
	c.set(scope, "payload")

	value, ok := c.get(scope)
	require.True(t, ok)
	require.Equal(t, "payload", value)

	// Still valid one second before expiry.
	now = now.Add(5*time.Minute - time.Second)
	_, ok = c.get(scope)
	require.True(t, ok)
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c := NewCache(5 * time.Minute)
	c.now = func() time.Time { return now }

	scope := RoleScope("staff")
	c.set(scope, "payload")

	now = now.Add(5*time.Minute + time.Second)
	_, ok := c.get(scope)
	require.False(t, ok)
	// The expired entry is dropped, not resurrected.
	require.Zero(t, c.Len())
}

func TestCacheInvalidateIsScoped(t *testing.T) {
	c := NewCache(time.Minute)
	c.set(RoleScope("staff"), "a")
	c.set(RoleScope("finance"), "b")
	c.set(UserScope("u1"), "c")

	c.Invalidate(RoleScope("staff"))

	_, ok := c.get(RoleScope("staff"))
	require.False(t, ok)
	_, ok = c.get(RoleScope("finance"))
	require.True(t, ok)
	_, ok = c.get(UserScope("u1"))
	require.True(t, ok)

	// Role and user scopes never collide, even with equal IDs.
	c.set(RoleScope("x"), "role")
	c.set(UserScope("x"), "user")
	c.Invalidate(UserScope("x"))
	_, ok = c.get(RoleScope("x"))
	require.True(t, ok)
}

func TestCacheClear(t *testing.T) {
	c := NewCache(time.Minute)
	c.set(RoleScope("staff"), "a")
	c.set(UserScope("u1"), "b")

	c.Clear()
	require.Zero(t, c.Len())
}

func TestCacheZeroTTLDisablesMemoization(t *testing.T) {
	c := NewCache(0)
	c.set(RoleScope("staff"), "a")
	_, ok := c.get(RoleScope("staff"))
	require.False(t, ok)
	require.Zero(t, c.Len())
}

func TestCacheNilSafe(t *testing.T) {
	var c *Cache
	_, ok := c.get(RoleScope("staff"))
	require.False(t, ok)
	c.set(RoleScope("staff"), "a")
	c.Invalidate(RoleScope("staff"))
	c.Clear()
	require.Zero(t, c.Len())
}
