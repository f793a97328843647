package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sproutcrm/tenantcore/internal/access/cache"
	"github.com/sproutcrm/tenantcore/internal/access/domain"
	"github.com/sproutcrm/tenantcore/internal/access/store"
	"github.com/sproutcrm/tenantcore/pkg/idx"
	"github.com/sproutcrm/tenantcore/pkg/slogx"
)

var (
	ErrMembershipNotFound = errors.New("membership not found")
	ErrMembershipExists   = errors.New("user is already a member of this organization")
	ErrInvalidMembership  = errors.New("invalid membership request")
)

// MembershipService owns membership writes and the cached read path.
// Every write invalidates the permission cache after the database
// commit, never before, so a crash between the two leaves a stale entry
// that the TTL bounds rather than a cache entry for data that was never
// written.
type MembershipService struct {
	Store       store.Store
	Permissions *cache.PermissionCache
}

// CreateMembership adds a user to an organization directly (admin
// action, not invite redemption). With allowExisting, an existing
// membership is returned as-is instead of erroring, which makes
// retried requests idempotent.
func (s *MembershipService) CreateMembership(
	ctx context.Context,
	orgID, userID string,
	role domain.Role,
	invitedBy string,
	allowExisting bool,
) (domain.Membership, error) {
	log := slogx.FromContext(ctx)
	now := time.Now().UTC()

	// 1. Validate.
	if orgID == "" || userID == "" {
		return domain.Membership{}, ErrInvalidMembership
	}
	if !role.Valid() {
		return domain.Membership{}, ErrInvalidRole
	}

	// 2. Insert, relying on the unique constraint for the duplicate
	// check instead of a racy read-then-write.
	m := domain.Membership{
		ID:             idx.New().String(),
		UserID:         userID,
		OrganizationID: orgID,
		Role:           role,
		Status:         domain.MembershipActive,
		InvitedBy:      invitedBy,
		JoinedAt:       now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := s.Store.Memberships().CreateMembership(ctx, m)
	if errors.Is(err, store.ErrAlreadyExists) {
		if !allowExisting {
			return domain.Membership{}, ErrMembershipExists
		}
		existing, err := s.Store.Memberships().GetMembership(ctx, orgID, userID)
		if err != nil {
			return domain.Membership{}, err
		}
		return existing, nil
	}
	if err != nil {
		log.Error("failed to create membership", slog.Any("error", err))
		return domain.Membership{}, err
	}

	// 3. Invalidate after the write.
	s.invalidate(ctx, orgID, userID)

	log.Info("membership created",
		slog.String("membership_id", m.ID),
		slog.String("organization_id", orgID),
		slog.String("user_id", userID),
		slog.String("role", string(role)),
	)
	return m, nil
}

// GetMembership is the read-through path: cache first, database on
// miss, then populate the cache for the next reader.
func (s *MembershipService) GetMembership(ctx context.Context, orgID, userID string) (domain.Membership, error) {
	if s.Permissions != nil {
		if m, ok := s.Permissions.Get(ctx, orgID, userID); ok {
			return m, nil
		}
	}

	m, err := s.Store.Memberships().GetMembership(ctx, orgID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Membership{}, ErrMembershipNotFound
		}
		return domain.Membership{}, err
	}

	if s.Permissions != nil {
		s.Permissions.Put(ctx, m)
	}
	return m, nil
}

// GetMembershipByID fetches a membership directly, bypassing the
// cache. Used by administrative paths that need the full record.
func (s *MembershipService) GetMembershipByID(ctx context.Context, membershipID string) (domain.Membership, error) {
	m, err := s.Store.Memberships().GetMembershipByID(ctx, membershipID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Membership{}, ErrMembershipNotFound
		}
		return domain.Membership{}, err
	}
	return m, nil
}

// UpdateRole changes a member's role. The cache entry is dropped after
// the commit so the next authorization check sees the new role.
func (s *MembershipService) UpdateRole(ctx context.Context, membershipID string, role domain.Role) error {
	log := slogx.FromContext(ctx)

	if !role.Valid() {
		return ErrInvalidRole
	}

	m, err := s.Store.Memberships().GetMembershipByID(ctx, membershipID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMembershipNotFound
		}
		return err
	}

	if err := s.Store.Memberships().UpdateMembershipRole(ctx, membershipID, role, time.Now().UTC()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMembershipNotFound
		}
		log.Error("failed to update membership role", slog.Any("error", err))
		return err
	}

	s.invalidate(ctx, m.OrganizationID, m.UserID)

	log.Info("membership role updated",
		slog.String("membership_id", membershipID),
		slog.String("old_role", string(m.Role)),
		slog.String("new_role", string(role)),
	)
	return nil
}

// UpdateStatus changes a member's lifecycle status (suspend,
// reactivate, etc).
func (s *MembershipService) UpdateStatus(ctx context.Context, membershipID string, status domain.MembershipStatus) error {
	log := slogx.FromContext(ctx)

	if !status.Valid() {
		return ErrInvalidMembership
	}

	m, err := s.Store.Memberships().GetMembershipByID(ctx, membershipID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMembershipNotFound
		}
		return err
	}

	if err := s.Store.Memberships().UpdateMembershipStatus(ctx, membershipID, status, time.Now().UTC()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMembershipNotFound
		}
		log.Error("failed to update membership status", slog.Any("error", err))
		return err
	}

	s.invalidate(ctx, m.OrganizationID, m.UserID)

	log.Info("membership status updated",
		slog.String("membership_id", membershipID),
		slog.String("status", string(status)),
	)
	return nil
}

// RemoveMembership deletes the membership row. Guarding against
// removing an organization's last admin is the caller's concern;
// CountMembershipsByRole exists for that check.
func (s *MembershipService) RemoveMembership(ctx context.Context, membershipID string) error {
	log := slogx.FromContext(ctx)

	m, err := s.Store.Memberships().GetMembershipByID(ctx, membershipID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMembershipNotFound
		}
		return err
	}

	if err := s.Store.Memberships().DeleteMembership(ctx, membershipID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMembershipNotFound
		}
		log.Error("failed to delete membership", slog.Any("error", err))
		return err
	}

	s.invalidate(ctx, m.OrganizationID, m.UserID)

	log.Info("membership removed",
		slog.String("membership_id", membershipID),
		slog.String("organization_id", m.OrganizationID),
		slog.String("user_id", m.UserID),
	)
	return nil
}

// ListOrganizationMembers returns all memberships in an organization.
func (s *MembershipService) ListOrganizationMembers(ctx context.Context, orgID string) ([]domain.Membership, error) {
	return s.Store.Memberships().ListOrganizationMemberships(ctx, orgID)
}

// ListUserMemberships returns every organization a user belongs to.
func (s *MembershipService) ListUserMemberships(ctx context.Context, userID string) ([]domain.Membership, error) {
	return s.Store.Memberships().ListUserMemberships(ctx, userID)
}

// CountAdmins reports how many active admins an organization has, for
// callers enforcing a last-admin rule.
func (s *MembershipService) CountAdmins(ctx context.Context, orgID string) (int, error) {
	return s.Store.Memberships().CountMembershipsByRole(ctx, orgID, domain.RoleAdmin)
}

func (s *MembershipService) invalidate(ctx context.Context, orgID, userID string) {
	if s.Permissions != nil {
		s.Permissions.Invalidate(ctx, orgID, userID)
	}
}
