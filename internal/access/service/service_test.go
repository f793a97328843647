package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sproutcrm/tenantcore/internal/access/cache"
	"github.com/sproutcrm/tenantcore/internal/access/domain"
	"github.com/sproutcrm/tenantcore/internal/access/store"
	"github.com/sproutcrm/tenantcore/internal/access/store/drivers/sqlite"
	"github.com/sproutcrm/tenantcore/pkg/idx"
)

// Shared fixtures for service tests: an in-memory sqlite store and an
// in-process cache.

// failingBackend simulates a cache outage: every operation errors.
type failingBackend struct{}

var errBackendDown = errors.New("connection refused")

func (failingBackend) Get(context.Context, string) (string, error)    { return "", errBackendDown }
func (failingBackend) GetDel(context.Context, string) (string, error) { return "", errBackendDown }
func (failingBackend) Set(context.Context, string, string, time.Duration) error {
	return errBackendDown
}
func (failingBackend) Del(context.Context, ...string) error               { return errBackendDown }
func (failingBackend) Keys(context.Context, string) ([]string, error)     { return nil, errBackendDown }
func (failingBackend) TTL(context.Context, string) (time.Duration, error) { return 0, errBackendDown }
func (failingBackend) Ping(context.Context) error                         { return errBackendDown }
func (failingBackend) Close() error                                       { return nil }

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newTestPermissions(t *testing.T) *cache.PermissionCache {
	t.Helper()
	return cache.NewPermissionCache(cache.NewMemoryClient(), time.Minute)
}

func seedUser(t *testing.T, st store.Store, email string) domain.User {
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

func seedOrg(t *testing.T, st store.Store) domain.Organization {
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

func seedMembership(t *testing.T, st store.Store, orgID, userID string, role domain.Role, status domain.MembershipStatus) domain.Membership {
	t.Helper()

	now := time.Now().UTC()
	m := domain.Membership{
		ID:             idx.New().String(),
		UserID:         userID,
		OrganizationID: orgID,
		Role:           role,
		Status:         status,
		JoinedAt:       now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, st.Memberships().CreateMembership(context.Background(), m))
	return m
}
