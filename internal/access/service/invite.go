package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/sproutcrm/tenantcore/internal/access/cache"
	"github.com/sproutcrm/tenantcore/internal/access/domain"
	"github.com/sproutcrm/tenantcore/internal/access/store"
	"github.com/sproutcrm/tenantcore/pkg/cryptox"
	"github.com/sproutcrm/tenantcore/pkg/idx"
	"github.com/sproutcrm/tenantcore/pkg/slogx"
)

const (
	// maxCodeAttempts bounds how many times invite creation retries on a
	// code collision before giving up.
	maxCodeAttempts = 5
)

var (
	ErrInvalidInviteRequest = errors.New("invalid invite request")
	ErrInvalidRole          = errors.New("invalid role")
	ErrInviteNotFound       = errors.New("invite not found")
	ErrInviteExpired        = errors.New("invite has expired")
	ErrInviteRevoked        = errors.New("invite has been revoked")
	ErrInviteExhausted      = errors.New("invite has no uses remaining")
	ErrInviteEmailMismatch  = errors.New("invite was issued for a different email address")
	ErrCodeGeneration       = errors.New("could not generate a unique invite code")
)

// InviteService mints, validates, redeems and revokes organization
// invites. Redemption is the only path that creates memberships from
// codes, and the quota is enforced by the store's conditional update,
// not by read-then-write checks here.
type InviteService struct {
	Store       store.Store
	Permissions *cache.PermissionCache

	// GenerateCode overrides code generation, primarily for tests.
	// Defaults to cryptox.GenerateCode.
	GenerateCode func(length int) (string, error)
}

func (s *InviteService) generateCode() (string, error) {
	if s.GenerateCode != nil {
		return s.GenerateCode(domain.InviteCodeLength)
	}
	return cryptox.GenerateCode(domain.InviteCodeLength)
}

// CreateInvite mints a new invite for an organization. Code uniqueness
// is guaranteed by the database constraint; on collision the code is
// regenerated up to maxCodeAttempts times.
func (s *InviteService) CreateInvite(
	ctx context.Context,
	orgID string,
	invitedBy string,
	targetRole domain.Role,
	email string,
	expiresAt time.Time,
	maxUses int,
) (domain.Invite, error) {
	log := slogx.FromContext(ctx)
	now := time.Now().UTC()

	// 1. Validate the request.
	if orgID == "" || invitedBy == "" {
		return domain.Invite{}, ErrInvalidInviteRequest
	}
	if !targetRole.Valid() {
		log.Warn("attempted to create invite with invalid role",
			slog.String("role", string(targetRole)),
		)
		return domain.Invite{}, ErrInvalidRole
	}
	if maxUses < 1 {
		return domain.Invite{}, ErrInvalidInviteRequest
	}
	if !expiresAt.After(now) {
		log.Warn("attempted to create invite with past expiry",
			slog.String("organization_id", orgID),
			slog.Time("expires_at", expiresAt),
		)
		return domain.Invite{}, ErrInvalidInviteRequest
	}

	// 2. Validate the organization exists.
	if _, err := s.Store.Organizations().GetOrganizationByID(ctx, orgID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Invite{}, ErrInvalidInviteRequest
		}
		log.Error("failed to fetch organization", slog.Any("error", err))
		return domain.Invite{}, err
	}

	// 3. Generate a code and insert, retrying on collision. The UNIQUE
	// constraint is the source of truth; no pre-check read.
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := s.generateCode()
		if err != nil {
			log.Error("failed to generate invite code", slog.Any("error", err))
			return domain.Invite{}, err
		}

		invite := domain.Invite{
			ID:             idx.New().String(),
			Code:           code,
			OrganizationID: orgID,
			InvitedBy:      invitedBy,
			TargetRole:     targetRole,
			Email:          strings.ToLower(strings.TrimSpace(email)),
			Status:         domain.InvitePending,
			ExpiresAt:      expiresAt.UTC(),
			MaxUses:        maxUses,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		err = s.Store.Invites().CreateInvite(ctx, invite)
		if err == nil {
			log.Debug("invite created",
				slog.String("invite_id", invite.ID),
				slog.String("organization_id", orgID),
				slog.String("target_role", string(targetRole)),
				slog.Int("max_uses", maxUses),
				slog.Time("expires_at", invite.ExpiresAt),
			)
			return invite, nil
		}
		if errors.Is(err, store.ErrAlreadyExists) {
			log.Warn("invite code collision, regenerating",
				slog.Int("attempt", attempt),
			)
			continue
		}
		log.Error("failed to create invite", slog.Any("error", err))
		return domain.Invite{}, err
	}

	log.Error("exhausted invite code generation attempts",
		slog.Int("attempts", maxCodeAttempts),
	)
	return domain.Invite{}, ErrCodeGeneration
}

// ValidateInvite reports whether a code could currently be redeemed,
// without consuming anything. The answer is advisory: redemption itself
// re-checks atomically.
func (s *InviteService) ValidateInvite(ctx context.Context, code string) (domain.Invite, error) {
	invite, err := s.Store.Invites().GetInviteByCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Invite{}, ErrInviteNotFound
		}
		return domain.Invite{}, err
	}
	if err := classifyInvite(invite, time.Now().UTC()); err != nil {
		return domain.Invite{}, err
	}
	return invite, nil
}

// AcceptInvite redeems a code for a user and returns the resulting
// membership. The quota check and use increment happen in one
// conditional update, so concurrent redeemers cannot overshoot
// max_uses. Redemption and membership creation commit atomically.
func (s *InviteService) AcceptInvite(ctx context.Context, code, userID string) (domain.Membership, error) {
	log := slogx.FromContext(ctx)
	now := time.Now().UTC()

	// 1. Validate input.
	if code == "" || userID == "" {
		return domain.Membership{}, ErrInvalidInviteRequest
	}

	// 2. Look up the invite.
	invite, err := s.Store.Invites().GetInviteByCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("invite redemption attempted with unknown code")
			return domain.Membership{}, ErrInviteNotFound
		}
		log.Error("failed to fetch invite", slog.Any("error", err))
		return domain.Membership{}, err
	}

	// 3. Enforce the email binding when the invite carries one.
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Membership{}, ErrInvalidInviteRequest
		}
		log.Error("failed to fetch user", slog.Any("error", err))
		return domain.Membership{}, err
	}
	if invite.Email != "" && !strings.EqualFold(invite.Email, user.Email) {
		log.Warn("invite redemption attempted with mismatched email",
			slog.String("invite_id", invite.ID),
			slog.String("user_id", userID),
		)
		return domain.Membership{}, ErrInviteEmailMismatch
	}

	// 4. Consume a use and create the membership in one transaction.
	var membership domain.Membership
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		// 4a. The conditional update either consumes one use or touches
		// zero rows. Zero rows means some precondition failed; re-read
		// inside the transaction to report which.
		n, err := tx.Invites().ConsumeInvite(ctx, invite.ID, userID, now)
		if err != nil {
			log.Error("failed to consume invite",
				slog.String("invite_id", invite.ID),
				slog.Any("error", err),
			)
			return err
		}
		if n == 0 {
			current, err := tx.Invites().GetInviteByID(ctx, invite.ID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return ErrInviteNotFound
				}
				return err
			}
			return classifyInvite(current, now)
		}

		// 4b. Create the membership. An existing membership is not an
		// error: redeeming into an organization you already belong to
		// is a no-op beyond the consumed use.
		membership = domain.Membership{
			ID:             idx.New().String(),
			UserID:         userID,
			OrganizationID: invite.OrganizationID,
			Role:           invite.TargetRole,
			Status:         domain.MembershipActive,
			InvitedBy:      invite.InvitedBy,
			JoinedAt:       now,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.Memberships().CreateMembership(ctx, membership); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				existing, err := tx.Memberships().GetMembership(ctx, invite.OrganizationID, userID)
				if err != nil {
					return err
				}
				membership = existing
				return nil
			}
			log.Error("failed to create membership",
				slog.String("invite_id", invite.ID),
				slog.String("user_id", userID),
				slog.Any("error", err),
			)
			return err
		}
		return nil
	})
	if err != nil {
		return domain.Membership{}, err
	}

	// 5. Drop any cached permission entry so the new membership is
	// visible immediately.
	if s.Permissions != nil {
		s.Permissions.Invalidate(ctx, invite.OrganizationID, userID)
	}

	log.Info("invite redeemed",
		slog.String("invite_id", invite.ID),
		slog.String("user_id", userID),
		slog.String("organization_id", invite.OrganizationID),
		slog.String("role", string(membership.Role)),
	)

	return membership, nil
}

// RevokeInvite withdraws a pending invite with an audit trail. The
// invite must belong to orgID; one outside it is reported as not found
// so the operation cannot touch other organizations' invites or reveal
// whether a given invite ID exists elsewhere.
// Already terminal invites are reported by their current state.
func (s *InviteService) RevokeInvite(ctx context.Context, orgID, inviteID, revokedBy, reason string) error {
	log := slogx.FromContext(ctx)
	now := time.Now().UTC()

	// 1. Scope the invite to the caller's organization.
	invite, err := s.Store.Invites().GetInviteByID(ctx, inviteID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInviteNotFound
		}
		log.Error("failed to fetch invite", slog.Any("error", err))
		return err
	}
	if invite.OrganizationID != orgID {
		log.Warn("invite revocation attempted across organizations",
			slog.String("invite_id", inviteID),
			slog.String("organization_id", orgID),
		)
		return ErrInviteNotFound
	}

	// 2. Conditional update, pending invites only.
	err = s.Store.Invites().RevokeInvite(ctx, inviteID, revokedBy, reason, now)
	if err == nil {
		log.Info("invite revoked",
			slog.String("invite_id", inviteID),
			slog.String("revoked_by", revokedBy),
		)
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		log.Error("failed to revoke invite", slog.Any("error", err))
		return err
	}

	// Zero rows: the invite already left the pending state (possibly
	// concurrently). Re-read to report its current state.
	current, err := s.Store.Invites().GetInviteByID(ctx, inviteID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInviteNotFound
		}
		return err
	}
	return classifyInvite(current, now)
}

// ListOrganizationInvites returns an organization's invites, optionally
// filtered by status.
func (s *InviteService) ListOrganizationInvites(ctx context.Context, orgID string, status domain.InviteStatus) ([]domain.Invite, error) {
	return s.Store.Invites().ListOrganizationInvites(ctx, orgID, status)
}

// InviteStats returns per-status invite counts for an organization.
func (s *InviteService) InviteStats(ctx context.Context, orgID string) (map[domain.InviteStatus]int, error) {
	return s.Store.Invites().CountInvitesByStatus(ctx, orgID)
}

// SweepExpired moves past-deadline pending invites to expired. Called by
// housekeeping; redemption never depends on the sweep because the
// deadline is checked inside the conditional update.
func (s *InviteService) SweepExpired(ctx context.Context) (int64, error) {
	return s.Store.Invites().ExpirePendingInvites(ctx, time.Now().UTC())
}

// classifyInvite maps an unusable invite to its precise error. Expiry is
// checked before quota so a code that is both exhausted and past its
// deadline reports as expired.
func classifyInvite(inv domain.Invite, now time.Time) error {
	switch inv.Status {
	case domain.InviteRevoked:
		return ErrInviteRevoked
	case domain.InviteExpired:
		return ErrInviteExpired
	}
	if inv.IsExpired(now) {
		return ErrInviteExpired
	}
	if inv.Status == domain.InviteAccepted || inv.CurrentUses >= inv.MaxUses {
		return ErrInviteExhausted
	}
	if inv.Status != domain.InvitePending {
		return ErrInviteNotFound
	}
	return nil
}
