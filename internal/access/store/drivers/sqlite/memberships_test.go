package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sproutcrm/tenantcore/internal/access/domain"
	"github.com/sproutcrm/tenantcore/internal/access/store"
	"github.com/sproutcrm/tenantcore/pkg/idx"
)

func seedUser(t *testing.T, st *Store, email string) domain.User {
	t.Helper()

	now := time.Now().UTC()
	u := domain.User{
		ID:        idx.New().String(),
		Email:     email,
		FullName:  "Test User",
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, st.Users().CreateUser(context.Background(), u))
	return u
}

func seedMembership(t *testing.T, st *Store, orgID, userID string, role domain.Role) domain.Membership {
	t.Helper()

	now := time.Now().UTC()
	m := domain.Membership{
		ID:             idx.New().String(),
		UserID:         userID,
		OrganizationID: orgID,
		Role:           role,
		Status:         domain.MembershipActive,
		JoinedAt:       now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, st.Memberships().CreateMembership(context.Background(), m))
	return m
}

func TestMembershipUniquePerUserOrg(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)
	org := seedOrg(t, st)
	user := seedUser(t, st, "dup@example.com")

	seedMembership(t, st, org.ID, user.ID, domain.RoleViewer)

	now := time.Now().UTC()
	dup := domain.Membership{
		ID:             idx.New().String(),
		UserID:         user.ID,
		OrganizationID: org.ID,
		Role:           domain.RoleAdmin,
		Status:         domain.MembershipActive,
		JoinedAt:       now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := st.Memberships().CreateMembership(ctx, dup)
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestUpdateLastAccessedLeavesUpdatedAt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)
	org := seedOrg(t, st)
	user := seedUser(t, st, "stamp@example.com")
	m := seedMembership(t, st, org.ID, user.ID, domain.RoleEditor)

	at := time.Now().UTC().Add(time.Minute)
	require.NoError(t, st.Memberships().UpdateLastAccessed(ctx, m.ID, at))

	got, err := st.Memberships().GetMembershipByID(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastAccessed)
	require.WithinDuration(t, at, *got.LastAccessed, time.Second)
	require.WithinDuration(t, m.UpdatedAt, got.UpdatedAt, time.Second)
}

func TestCountMembershipsByRole(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)
	org := seedOrg(t, st)

	admin := seedUser(t, st, "admin@example.com")
	viewer := seedUser(t, st, "viewer@example.com")
	suspended := seedUser(t, st, "suspended@example.com")

	seedMembership(t, st, org.ID, admin.ID, domain.RoleAdmin)
	seedMembership(t, st, org.ID, viewer.ID, domain.RoleViewer)
	sm := seedMembership(t, st, org.ID, suspended.ID, domain.RoleAdmin)
	require.NoError(t, st.Memberships().UpdateMembershipStatus(ctx, sm.ID, domain.MembershipSuspended, time.Now().UTC()))

	// Suspended admins do not count toward the active admin total.
	n, err := st.Memberships().CountMembershipsByRole(ctx, org.ID, domain.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestMembershipCascadeOnUserDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)
	org := seedOrg(t, st)
	user := seedUser(t, st, "gone@example.com")
	m := seedMembership(t, st, org.ID, user.ID, domain.RoleViewer)

	require.NoError(t, st.Users().DeleteUser(ctx, user.ID))

	_, err := st.Memberships().GetMembershipByID(ctx, m.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}
