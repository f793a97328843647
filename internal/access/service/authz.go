package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sproutcrm/tenantcore/internal/access/cache"
	"github.com/sproutcrm/tenantcore/internal/access/domain"
	"github.com/sproutcrm/tenantcore/internal/access/store"
	"github.com/sproutcrm/tenantcore/pkg/slogx"
)

var (
	ErrNotAMember        = errors.New("user is not a member of this organization")
	ErrMembershipBlocked = errors.New("membership is not active")
	ErrInsufficientRole  = errors.New("insufficient role for this operation")
)

// AuthzService answers "may this user act in this organization" using
// the permission cache in front of the membership store. The cache only
// accelerates; the database remains the source of truth and a cache
// outage just means every check reads through.
type AuthzService struct {
	Store       store.Store
	Permissions *cache.PermissionCache
}

// Resolve returns the caller's membership in an organization, from
// cache when possible. A resolved membership gets its last_accessed
// stamp refreshed in the background; the stamp is telemetry and must
// not add latency or invalidate the entry just written.
func (s *AuthzService) Resolve(ctx context.Context, orgID, userID string) (domain.Membership, error) {
	if s.Permissions != nil {
		if m, ok := s.Permissions.Get(ctx, orgID, userID); ok {
			s.touchLastAccessed(ctx, m.ID)
			return m, nil
		}
	}

	m, err := s.Store.Memberships().GetMembership(ctx, orgID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Membership{}, ErrNotAMember
		}
		return domain.Membership{}, err
	}

	if s.Permissions != nil {
		s.Permissions.Put(ctx, m)
	}
	s.touchLastAccessed(ctx, m.ID)
	return m, nil
}

// RequireRole resolves the membership and enforces both the active
// status and the role floor. Status is checked first: a suspended admin
// is blocked, not told their role is too low.
func (s *AuthzService) RequireRole(ctx context.Context, orgID, userID string, minimum domain.Role) (domain.Membership, error) {
	m, err := s.Resolve(ctx, orgID, userID)
	if err != nil {
		return domain.Membership{}, err
	}
	if !m.IsActive() {
		return domain.Membership{}, ErrMembershipBlocked
	}
	if !domain.RoleAtLeast(m.Role, minimum) {
		return domain.Membership{}, ErrInsufficientRole
	}
	return m, nil
}

// ResolveRole returns just the role for an active membership.
func (s *AuthzService) ResolveRole(ctx context.Context, orgID, userID string) (domain.Role, error) {
	m, err := s.Resolve(ctx, orgID, userID)
	if err != nil {
		return "", err
	}
	if !m.IsActive() {
		return "", ErrMembershipBlocked
	}
	return m.Role, nil
}

// touchLastAccessed stamps activity without blocking the caller. The
// write intentionally skips cache invalidation: UpdateLastAccessed does
// not bump updated_at, so the cached entry stays accurate.
func (s *AuthzService) touchLastAccessed(ctx context.Context, membershipID string) {
	log := slogx.FromContext(ctx)
	bg := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(bg, 5*time.Second)
		defer cancel()
		if err := s.Store.Memberships().UpdateLastAccessed(ctx, membershipID, time.Now().UTC()); err != nil {
			log.Debug("last accessed stamp failed",
				slog.String("membership_id", membershipID),
				slog.Any("error", err),
			)
		}
	}()
}
