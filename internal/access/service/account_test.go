package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sproutcrm/tenantcore/internal/access/domain"
)

func TestRegister(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)
	svc := &AccountService{Store: st}

	t.Run("stores a normalized email and a verifiable hash", func(t *testing.T) {
		user, err := svc.Register(ctx, "  New@Example.COM ", "New Person", "a long enough password")
		require.NoError(t, err)
		require.Equal(t, "new@example.com", user.Email)
		require.NotEmpty(t, user.PasswordHash)
		require.NotContains(t, user.PasswordHash, "a long enough password")
	})

	t.Run("duplicate emails are rejected", func(t *testing.T) {
		_, err := svc.Register(ctx, "dup@example.com", "First", "a long enough password")
		require.NoError(t, err)

		_, err = svc.Register(ctx, "DUP@example.com", "Second", "a long enough password")
		require.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("short passwords are rejected", func(t *testing.T) {
		_, err := svc.Register(ctx, "short@example.com", "Short", "tiny")
		require.ErrorIs(t, err, ErrWeakPassword)
	})

	t.Run("malformed emails are rejected", func(t *testing.T) {
		_, err := svc.Register(ctx, "not-an-email", "Nobody", "a long enough password")
		require.ErrorIs(t, err, ErrInvalidAccount)
	})
}

func TestCreateOrganization(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)
	svc := &AccountService{Store: st}
	creator := seedUser(t, st, "founder@example.com")

	t.Run("creator becomes the first admin atomically", func(t *testing.T) {
		org, err := svc.CreateOrganization(ctx, "Acme Inc", "acme-inc", creator.ID)
		require.NoError(t, err)

		m, err := st.Memberships().GetMembership(ctx, org.ID, creator.ID)
		require.NoError(t, err)
		require.Equal(t, domain.RoleAdmin, m.Role)
		require.Equal(t, domain.MembershipActive, m.Status)
	})

	t.Run("slug collisions roll back cleanly", func(t *testing.T) {
		_, err := svc.CreateOrganization(ctx, "Copycat", "acme-inc", creator.ID)
		require.ErrorIs(t, err, ErrSlugTaken)
	})

	t.Run("membership failure rolls the organization back", func(t *testing.T) {
		// An unknown creator trips the membership foreign key inside the
		// transaction; the organization row must not survive.
		_, err := svc.CreateOrganization(ctx, "Orphan", "orphan-org", "no-such-user")
		require.Error(t, err)

		_, err = st.Organizations().GetOrganizationBySlug(ctx, "orphan-org")
		require.Error(t, err)
	})

	t.Run("slug format is enforced", func(t *testing.T) {
		for _, slug := range []string{"", "Has Caps", "under_score", "-leading", "trailing-"} {
			_, err := svc.CreateOrganization(ctx, "Bad Slug", slug, creator.ID)
			require.ErrorIs(t, err, ErrInvalidAccount, "slug %q", slug)
		}
	})
}
