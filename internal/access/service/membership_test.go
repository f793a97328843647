package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sproutcrm/tenantcore/internal/access/domain"
)

func TestCreateMembership(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("duplicate membership errors by default", func(t *testing.T) {
		st := newTestStore(t)
		org := seedOrg(t, st)
		user := seedUser(t, st, "u@example.com")
		svc := &MembershipService{Store: st, Permissions: newTestPermissions(t)}

		_, err := svc.CreateMembership(ctx, org.ID, user.ID, domain.RoleViewer, "", false)
		require.NoError(t, err)

		_, err = svc.CreateMembership(ctx, org.ID, user.ID, domain.RoleEditor, "", false)
		require.ErrorIs(t, err, ErrMembershipExists)
	})

	t.Run("allowExisting returns the current record untouched", func(t *testing.T) {
		st := newTestStore(t)
		org := seedOrg(t, st)
		user := seedUser(t, st, "u@example.com")
		svc := &MembershipService{Store: st, Permissions: newTestPermissions(t)}

		first, err := svc.CreateMembership(ctx, org.ID, user.ID, domain.RoleAdmin, "", false)
		require.NoError(t, err)

		again, err := svc.CreateMembership(ctx, org.ID, user.ID, domain.RoleViewer, "", true)
		require.NoError(t, err)
		require.Equal(t, first.ID, again.ID)
		require.Equal(t, domain.RoleAdmin, again.Role)
	})

	t.Run("invalid input is rejected", func(t *testing.T) {
		st := newTestStore(t)
		svc := &MembershipService{Store: st}

		_, err := svc.CreateMembership(ctx, "", "u1", domain.RoleViewer, "", false)
		require.ErrorIs(t, err, ErrInvalidMembership)

		_, err = svc.CreateMembership(ctx, "org1", "u1", "owner", "", false)
		require.ErrorIs(t, err, ErrInvalidRole)
	})
}

func TestMembershipLists(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)
	orgA := seedOrg(t, st)
	orgB := seedOrg(t, st)
	user := seedUser(t, st, "multi@example.com")
	other := seedUser(t, st, "other@example.com")
	seedMembership(t, st, orgA.ID, user.ID, domain.RoleAdmin, domain.MembershipActive)
	seedMembership(t, st, orgB.ID, user.ID, domain.RoleViewer, domain.MembershipActive)
	seedMembership(t, st, orgA.ID, other.ID, domain.RoleEditor, domain.MembershipActive)
	svc := &MembershipService{Store: st}

	members, err := svc.ListOrganizationMembers(ctx, orgA.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)

	mine, err := svc.ListUserMemberships(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
}

func TestCountAdmins(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)
	org := seedOrg(t, st)
	svc := &MembershipService{Store: st}

	admin := seedUser(t, st, "admin@example.com")
	seedMembership(t, st, org.ID, admin.ID, domain.RoleAdmin, domain.MembershipActive)
	benched := seedUser(t, st, "benched@example.com")
	seedMembership(t, st, org.ID, benched.ID, domain.RoleAdmin, domain.MembershipSuspended)
	editor := seedUser(t, st, "editor@example.com")
	seedMembership(t, st, org.ID, editor.ID, domain.RoleEditor, domain.MembershipActive)

	// Only active admins count toward the last-admin rule.
	n, err := svc.CountAdmins(ctx, org.ID)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestUpdateAndRemoveMembership(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)
	perms := newTestPermissions(t)
	org := seedOrg(t, st)
	user := seedUser(t, st, "u@example.com")
	m := seedMembership(t, st, org.ID, user.ID, domain.RoleViewer, domain.MembershipActive)
	svc := &MembershipService{Store: st, Permissions: perms}

	t.Run("status change drops the cached entry", func(t *testing.T) {
		_, err := svc.GetMembership(ctx, org.ID, user.ID)
		require.NoError(t, err)

		require.NoError(t, svc.UpdateStatus(ctx, m.ID, domain.MembershipSuspended))

		got, err := svc.GetMembership(ctx, org.ID, user.ID)
		require.NoError(t, err)
		require.Equal(t, domain.MembershipSuspended, got.Status)
	})

	t.Run("invalid status is rejected before the write", func(t *testing.T) {
		require.ErrorIs(t, svc.UpdateStatus(ctx, m.ID, "banned"), ErrInvalidMembership)
	})

	t.Run("remove deletes the row and the cache entry", func(t *testing.T) {
		require.NoError(t, svc.RemoveMembership(ctx, m.ID))

		_, err := svc.GetMembership(ctx, org.ID, user.ID)
		require.ErrorIs(t, err, ErrMembershipNotFound)

		require.ErrorIs(t, svc.RemoveMembership(ctx, m.ID), ErrMembershipNotFound)
	})

	t.Run("updates on missing memberships report not found", func(t *testing.T) {
		require.ErrorIs(t, svc.UpdateRole(ctx, "missing", domain.RoleAdmin), ErrMembershipNotFound)
	})
}
