package sqlite

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sproutcrm/tenantcore/internal/access/domain"
	"github.com/sproutcrm/tenantcore/internal/access/store"
	"github.com/sproutcrm/tenantcore/pkg/idx"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	st, err := NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedOrg(t *testing.T, st *Store) domain.Organization {
	t.Helper()

	now := time.Now().UTC()
	org := domain.Organization{
		ID:        idx.New().String(),
		Name:      "Acme",
		Slug:      "acme-" + idx.New().String(),
		CreatedBy: idx.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, st.Organizations().CreateOrganization(context.Background(), org))
	return org
}

func seedInvite(t *testing.T, st *Store, orgID string, maxUses int, expiresAt time.Time) domain.Invite {
	t.Helper()

	now := time.Now().UTC()
	inv := domain.Invite{
		ID:             idx.New().String(),
		Code:           "code-" + idx.New().String(),
		OrganizationID: orgID,
		InvitedBy:      idx.New().String(),
		TargetRole:     domain.RoleEditor,
		Status:         domain.InvitePending,
		ExpiresAt:      expiresAt,
		MaxUses:        maxUses,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, st.Invites().CreateInvite(context.Background(), inv))
	return inv
}

func TestConsumeInvite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("consumes a use and stamps the redeemer", func(t *testing.T) {
		st := newTestStore(t)
		org := seedOrg(t, st)
		inv := seedInvite(t, st, org.ID, 3, time.Now().Add(time.Hour))

		userID := idx.New().String()
		n, err := st.Invites().ConsumeInvite(ctx, inv.ID, userID, time.Now().UTC())
		require.NoError(t, err)
		require.EqualValues(t, 1, n)

		got, err := st.Invites().GetInviteByID(ctx, inv.ID)
		require.NoError(t, err)
		require.Equal(t, 1, got.CurrentUses)
		require.Equal(t, domain.InvitePending, got.Status)
		require.Equal(t, userID, got.UsedBy)
		require.NotNil(t, got.UsedAt)
	})

	t.Run("final use flips status to accepted in the same statement", func(t *testing.T) {
		st := newTestStore(t)
		org := seedOrg(t, st)
		inv := seedInvite(t, st, org.ID, 1, time.Now().Add(time.Hour))

		n, err := st.Invites().ConsumeInvite(ctx, inv.ID, idx.New().String(), time.Now().UTC())
		require.NoError(t, err)
		require.EqualValues(t, 1, n)

		got, err := st.Invites().GetInviteByID(ctx, inv.ID)
		require.NoError(t, err)
		require.Equal(t, domain.InviteAccepted, got.Status)
		require.Equal(t, 1, got.CurrentUses)
	})

	t.Run("rejects past-deadline invites without mutating them", func(t *testing.T) {
		st := newTestStore(t)
		org := seedOrg(t, st)
		inv := seedInvite(t, st, org.ID, 5, time.Now().Add(-time.Minute))

		n, err := st.Invites().ConsumeInvite(ctx, inv.ID, idx.New().String(), time.Now().UTC())
		require.NoError(t, err)
		require.Zero(t, n)

		got, err := st.Invites().GetInviteByID(ctx, inv.ID)
		require.NoError(t, err)
		require.Zero(t, got.CurrentUses)
	})

	t.Run("rejects revoked invites", func(t *testing.T) {
		st := newTestStore(t)
		org := seedOrg(t, st)
		inv := seedInvite(t, st, org.ID, 5, time.Now().Add(time.Hour))

		require.NoError(t, st.Invites().RevokeInvite(ctx, inv.ID, "admin", "no longer needed", time.Now().UTC()))

		n, err := st.Invites().ConsumeInvite(ctx, inv.ID, idx.New().String(), time.Now().UTC())
		require.NoError(t, err)
		require.Zero(t, n)
	})

	t.Run("concurrent redeemers never exceed the quota", func(t *testing.T) {
		st := newTestStore(t)
		org := seedOrg(t, st)

		const maxUses = 3
		const redeemers = 10
		inv := seedInvite(t, st, org.ID, maxUses, time.Now().Add(time.Hour))

		var wg sync.WaitGroup
		results := make(chan int64, redeemers)
		for i := 0; i < redeemers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				n, err := st.Invites().ConsumeInvite(ctx, inv.ID, fmt.Sprintf("user-%d", i), time.Now().UTC())
				require.NoError(t, err)
				results <- n
			}(i)
		}
		wg.Wait()
		close(results)

		var succeeded int64
		for n := range results {
			succeeded += n
		}
		require.EqualValues(t, maxUses, succeeded)

		got, err := st.Invites().GetInviteByID(ctx, inv.ID)
		require.NoError(t, err)
		require.Equal(t, maxUses, got.CurrentUses)
		require.Equal(t, domain.InviteAccepted, got.Status)
	})
}

func TestRevokeInvite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("records the audit trail", func(t *testing.T) {
		st := newTestStore(t)
		org := seedOrg(t, st)
		inv := seedInvite(t, st, org.ID, 1, time.Now().Add(time.Hour))

		require.NoError(t, st.Invites().RevokeInvite(ctx, inv.ID, "admin-1", "sent by mistake", time.Now().UTC()))

		got, err := st.Invites().GetInviteByID(ctx, inv.ID)
		require.NoError(t, err)
		require.Equal(t, domain.InviteRevoked, got.Status)
		require.Equal(t, "admin-1", got.RevokedBy)
		require.Equal(t, "sent by mistake", got.RevokeReason)
		require.NotNil(t, got.RevokedAt)
	})

	t.Run("only pending invites can be revoked", func(t *testing.T) {
		st := newTestStore(t)
		org := seedOrg(t, st)
		inv := seedInvite(t, st, org.ID, 1, time.Now().Add(time.Hour))

		_, err := st.Invites().ConsumeInvite(ctx, inv.ID, idx.New().String(), time.Now().UTC())
		require.NoError(t, err)

		err = st.Invites().RevokeInvite(ctx, inv.ID, "admin-1", "", time.Now().UTC())
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestExpirePendingInvites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)
	org := seedOrg(t, st)

	stale := seedInvite(t, st, org.ID, 1, time.Now().Add(-time.Hour))
	fresh := seedInvite(t, st, org.ID, 1, time.Now().Add(time.Hour))

	n, err := st.Invites().ExpirePendingInvites(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	got, err := st.Invites().GetInviteByID(ctx, stale.ID)
	require.NoError(t, err)
	require.Equal(t, domain.InviteExpired, got.Status)

	got, err = st.Invites().GetInviteByID(ctx, fresh.ID)
	require.NoError(t, err)
	require.Equal(t, domain.InvitePending, got.Status)
}

func TestInviteCodeUniqueness(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)
	org := seedOrg(t, st)

	inv := seedInvite(t, st, org.ID, 1, time.Now().Add(time.Hour))

	dup := inv
	dup.ID = idx.New().String()
	err := st.Invites().CreateInvite(ctx, dup)
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}
