package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sproutcrm/tenantcore/internal/access/domain"
)

func testMembership(orgID, userID string) domain.Membership {
	return domain.Membership{
		ID:             "m-" + orgID + "-" + userID,
		UserID:         userID,
		OrganizationID: orgID,
		Role:           domain.RoleEditor,
		Status:         domain.MembershipActive,
	}
}

func TestPermissionCacheRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewPermissionCache(NewMemoryClient(), time.Minute)

	_, ok := c.Get(ctx, "org1", "u1")
	require.False(t, ok)

	c.Put(ctx, testMembership("org1", "u1"))

	got, ok := c.Get(ctx, "org1", "u1")
	require.True(t, ok)
	require.Equal(t, "u1", got.UserID)
	require.Equal(t, domain.RoleEditor, got.Role)
	require.Equal(t, domain.MembershipActive, got.Status)
}

func TestPermissionCacheEntriesExpire(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mr, client := newTestRedis(t)
	c := NewPermissionCache(client, time.Minute)

	c.Put(ctx, testMembership("org1", "u1"))

	_, ok := c.Get(ctx, "org1", "u1")
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)
	_, ok = c.Get(ctx, "org1", "u1")
	require.False(t, ok)
}

func TestPermissionCacheInvalidate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewPermissionCache(NewMemoryClient(), time.Minute)

	c.Put(ctx, testMembership("org1", "u1"))
	c.Put(ctx, testMembership("org1", "u2"))
	c.Put(ctx, testMembership("org2", "u1"))

	t.Run("single pair", func(t *testing.T) {
		c.Invalidate(ctx, "org1", "u1")
		_, ok := c.Get(ctx, "org1", "u1")
		require.False(t, ok)
		_, ok = c.Get(ctx, "org1", "u2")
		require.True(t, ok)
	})

	t.Run("whole organization", func(t *testing.T) {
		c.Put(ctx, testMembership("org1", "u1"))
		n := c.InvalidateOrganization(ctx, "org1")
		require.Equal(t, 2, n)

		_, ok := c.Get(ctx, "org1", "u2")
		require.False(t, ok)
		_, ok = c.Get(ctx, "org2", "u1")
		require.True(t, ok)
	})

	t.Run("user across organizations", func(t *testing.T) {
		c.Put(ctx, testMembership("org1", "u1"))
		n := c.InvalidateUser(ctx, "u1")
		require.Equal(t, 2, n)

		_, ok := c.Get(ctx, "org2", "u1")
		require.False(t, ok)
	})

	t.Run("user with known organizations skips the scan", func(t *testing.T) {
		c.Put(ctx, testMembership("org1", "u1"))
		c.Put(ctx, testMembership("org2", "u1"))
		c.Put(ctx, testMembership("org3", "u1"))

		n := c.InvalidateUser(ctx, "u1", "org1", "org2")
		require.Equal(t, 2, n)

		_, ok := c.Get(ctx, "org1", "u1")
		require.False(t, ok)
		_, ok = c.Get(ctx, "org2", "u1")
		require.False(t, ok)

		// Organizations not named keep their entries.
		_, ok = c.Get(ctx, "org3", "u1")
		require.True(t, ok)
	})
}

func TestPermissionCacheDegradesToMiss(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewPermissionCache(failingClient{}, time.Minute)

	// Outage reads answer "not cached" so callers fall back to the
	// database; writes and invalidations are swallowed.
	_, ok := c.Get(ctx, "org1", "u1")
	require.False(t, ok)

	c.Put(ctx, testMembership("org1", "u1"))
	c.Invalidate(ctx, "org1", "u1")
	require.Zero(t, c.InvalidateOrganization(ctx, "org1"))
}

func TestPermissionCacheDropsCorruptEntries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := NewMemoryClient()
	c := NewPermissionCache(client, time.Minute)

	require.NoError(t, client.Set(ctx, membershipKey("org1", "u1"), "{not-json", time.Minute))

	_, ok := c.Get(ctx, "org1", "u1")
	require.False(t, ok)

	// The corrupt entry was deleted, not left to fail every read.
	_, err := client.Get(ctx, membershipKey("org1", "u1"))
	require.ErrorIs(t, err, ErrMiss)
}
