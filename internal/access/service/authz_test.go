package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sproutcrm/tenantcore/internal/access/cache"
	"github.com/sproutcrm/tenantcore/internal/access/domain"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("miss primes the cache for the next check", func(t *testing.T) {
		st := newTestStore(t)
		client := cache.NewMemoryClient()
		perms := cache.NewPermissionCache(client, time.Minute)
		org := seedOrg(t, st)
		user := seedUser(t, st, "u@example.com")
		m := seedMembership(t, st, org.ID, user.ID, domain.RoleEditor, domain.MembershipActive)
		svc := &AuthzService{Store: st, Permissions: perms}

		got, err := svc.Resolve(ctx, org.ID, user.ID)
		require.NoError(t, err)
		require.Equal(t, m.ID, got.ID)

		cached, ok := perms.Get(ctx, org.ID, user.ID)
		require.True(t, ok)
		require.Equal(t, domain.RoleEditor, cached.Role)
	})

	t.Run("cache hit skips the database", func(t *testing.T) {
		st := newTestStore(t)
		perms := newTestPermissions(t)
		org := seedOrg(t, st)
		user := seedUser(t, st, "u@example.com")
		m := seedMembership(t, st, org.ID, user.ID, domain.RoleViewer, domain.MembershipActive)
		svc := &AuthzService{Store: st, Permissions: perms}

		_, err := svc.Resolve(ctx, org.ID, user.ID)
		require.NoError(t, err)

		// Deleting the row proves subsequent resolutions come from the
		// cache until it is invalidated.
		require.NoError(t, st.Memberships().DeleteMembership(ctx, m.ID))

		got, err := svc.Resolve(ctx, org.ID, user.ID)
		require.NoError(t, err)
		require.Equal(t, m.ID, got.ID)

		perms.Invalidate(ctx, org.ID, user.ID)
		_, err = svc.Resolve(ctx, org.ID, user.ID)
		require.ErrorIs(t, err, ErrNotAMember)
	})

	t.Run("non-members are rejected", func(t *testing.T) {
		st := newTestStore(t)
		org := seedOrg(t, st)
		user := seedUser(t, st, "u@example.com")
		svc := &AuthzService{Store: st, Permissions: newTestPermissions(t)}

		_, err := svc.Resolve(ctx, org.ID, user.ID)
		require.ErrorIs(t, err, ErrNotAMember)
	})

	t.Run("cache outage falls back to the database", func(t *testing.T) {
		st := newTestStore(t)
		org := seedOrg(t, st)
		user := seedUser(t, st, "u@example.com")
		m := seedMembership(t, st, org.ID, user.ID, domain.RoleAdmin, domain.MembershipActive)
		svc := &AuthzService{
			Store:       st,
			Permissions: cache.NewPermissionCache(failingBackend{}, time.Minute),
		}

		got, err := svc.Resolve(ctx, org.ID, user.ID)
		require.NoError(t, err)
		require.Equal(t, m.ID, got.ID)
	})

	t.Run("writes are visible on the next check", func(t *testing.T) {
		st := newTestStore(t)
		perms := newTestPermissions(t)
		org := seedOrg(t, st)
		user := seedUser(t, st, "u@example.com")
		m := seedMembership(t, st, org.ID, user.ID, domain.RoleViewer, domain.MembershipActive)
		authz := &AuthzService{Store: st, Permissions: perms}
		members := &MembershipService{Store: st, Permissions: perms}

		role, err := authz.ResolveRole(ctx, org.ID, user.ID)
		require.NoError(t, err)
		require.Equal(t, domain.RoleViewer, role)

		require.NoError(t, members.UpdateRole(ctx, m.ID, domain.RoleAdmin))

		role, err = authz.ResolveRole(ctx, org.ID, user.ID)
		require.NoError(t, err)
		require.Equal(t, domain.RoleAdmin, role)
	})
}

func TestRequireRole(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)
	org := seedOrg(t, st)
	svc := &AuthzService{Store: st, Permissions: newTestPermissions(t)}

	editor := seedUser(t, st, "editor@example.com")
	seedMembership(t, st, org.ID, editor.ID, domain.RoleEditor, domain.MembershipActive)

	suspended := seedUser(t, st, "suspended@example.com")
	seedMembership(t, st, org.ID, suspended.ID, domain.RoleAdmin, domain.MembershipSuspended)

	t.Run("role floor is inclusive", func(t *testing.T) {
		_, err := svc.RequireRole(ctx, org.ID, editor.ID, domain.RoleViewer)
		require.NoError(t, err)
		_, err = svc.RequireRole(ctx, org.ID, editor.ID, domain.RoleEditor)
		require.NoError(t, err)
		_, err = svc.RequireRole(ctx, org.ID, editor.ID, domain.RoleAdmin)
		require.ErrorIs(t, err, ErrInsufficientRole)
	})

	t.Run("status outranks role", func(t *testing.T) {
		// A suspended admin is blocked, not told their role is too low.
		_, err := svc.RequireRole(ctx, org.ID, suspended.ID, domain.RoleAdmin)
		require.ErrorIs(t, err, ErrMembershipBlocked)
		_, err = svc.RequireRole(ctx, org.ID, suspended.ID, domain.RoleViewer)
		require.ErrorIs(t, err, ErrMembershipBlocked)
	})

	t.Run("non-members get the membership error", func(t *testing.T) {
		outsider := seedUser(t, st, "outsider@example.com")
		_, err := svc.RequireRole(ctx, org.ID, outsider.ID, domain.RoleViewer)
		require.ErrorIs(t, err, ErrNotAMember)
	})
}

func TestResolveStampsLastAccessed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)
	org := seedOrg(t, st)
	user := seedUser(t, st, "u@example.com")
	m := seedMembership(t, st, org.ID, user.ID, domain.RoleViewer, domain.MembershipActive)
	svc := &AuthzService{Store: st, Permissions: newTestPermissions(t)}

	_, err := svc.Resolve(ctx, org.ID, user.ID)
	require.NoError(t, err)

	// The stamp lands asynchronously.
	require.Eventually(t, func() bool {
		got, err := st.Memberships().GetMembershipByID(ctx, m.ID)
		return err == nil && got.LastAccessed != nil
	}, 2*time.Second, 20*time.Millisecond)
}
