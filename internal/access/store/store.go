package store

import (
	"context"
	"errors"
	"time"

	"github.com/sproutcrm/tenantcore/internal/access/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres) implement this. It exposes sub-repositories to keep concerns
// tidy and testable, and to actively stop people from accidentally doing
// transactions within transactions.
type Store interface {
	Users() Users
	Organizations() Organizations
	Memberships() Memberships
	Invites() Invites

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// Use it for multi-step operations that must be atomic (e.g., invite
	// redemption plus membership creation).
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// This is the recommended way to handle transactions as it
	// automatically handles commit/rollback logic.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources (optional for sqlite).
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// CreateUser inserts a new user (id is provided by app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is used during credential issuance and invite
	// email-binding checks.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// MarkEmailVerified flips email_verified and bumps updated_at.
	MarkEmailVerified(ctx context.Context, userID string) error

	// DeleteUser cascades to memberships (per schema).
	DeleteUser(ctx context.Context, userID string) error
}

type Organizations interface {
	// CreateOrganization inserts a new organization (id is ULID).
	CreateOrganization(ctx context.Context, o domain.Organization) error

	// GetOrganizationByID fetches an organization by its ID.
	GetOrganizationByID(ctx context.Context, id string) (domain.Organization, error)

	// GetOrganizationBySlug fetches an organization by its URL slug.
	GetOrganizationBySlug(ctx context.Context, slug string) (domain.Organization, error)

	// DeleteOrganization cascades to memberships and invites (per schema).
	DeleteOrganization(ctx context.Context, id string) error
}

type Memberships interface {
	// CreateMembership inserts a membership. The (user, organization)
	// pair is unique; a duplicate returns ErrAlreadyExists.
	CreateMembership(ctx context.Context, m domain.Membership) error

	// GetMembershipByID fetches a membership by its ID.
	GetMembershipByID(ctx context.Context, id string) (domain.Membership, error)

	// GetMembership fetches the membership for a user within an organization.
	GetMembership(ctx context.Context, orgID, userID string) (domain.Membership, error)

	// ListOrganizationMemberships returns all memberships in an organization.
	ListOrganizationMemberships(ctx context.Context, orgID string) ([]domain.Membership, error)

	// ListUserMemberships returns all memberships a user holds.
	ListUserMemberships(ctx context.Context, userID string) ([]domain.Membership, error)

	// UpdateMembershipRole changes the role and bumps updated_at.
	UpdateMembershipRole(ctx context.Context, id string, role domain.Role, now time.Time) error

	// UpdateMembershipStatus changes the lifecycle status and bumps updated_at.
	UpdateMembershipStatus(ctx context.Context, id string, status domain.MembershipStatus, now time.Time) error

	// UpdateLastAccessed stamps activity without bumping updated_at, so
	// cached reads stay valid across the write.
	UpdateLastAccessed(ctx context.Context, id string, at time.Time) error

	// DeleteMembership removes the membership row.
	DeleteMembership(ctx context.Context, id string) error

	// CountMembershipsByRole counts members holding a role in an
	// organization (used for last-admin style checks by callers).
	CountMembershipsByRole(ctx context.Context, orgID string, role domain.Role) (int, error)
}

type Invites interface {
	// CreateInvite writes a new invite. A duplicate code returns
	// ErrAlreadyExists so callers can regenerate.
	CreateInvite(ctx context.Context, inv domain.Invite) error

	// GetInviteByID fetches an invite by its ID.
	GetInviteByID(ctx context.Context, id string) (domain.Invite, error)

	// GetInviteByCode fetches an invite by its redemption code.
	GetInviteByCode(ctx context.Context, code string) (domain.Invite, error)

	// ListOrganizationInvites returns invites for an organization,
	// optionally filtered by status (empty status means all).
	ListOrganizationInvites(ctx context.Context, orgID string, status domain.InviteStatus) ([]domain.Invite, error)

	// ConsumeInvite performs the single conditional update that guards the
	// redemption quota: it increments current_uses and stamps the redeemer
	// only while the invite is still pending, unexpired and under quota,
	// flipping status to accepted when the increment exhausts the last
	// use. Returns the number of rows updated (0 or 1); callers re-read
	// on 0 to classify the failure.
	ConsumeInvite(ctx context.Context, id, userID string, now time.Time) (int64, error)

	// RevokeInvite moves a pending invite to revoked with an audit trail.
	RevokeInvite(ctx context.Context, id, revokedBy, reason string, now time.Time) error

	// ExpirePendingInvites marks pending invites whose deadline has
	// passed and returns how many rows changed (housekeeping).
	ExpirePendingInvites(ctx context.Context, now time.Time) (int64, error)

	// CountInvitesByStatus returns per-status counts for an organization.
	CountInvitesByStatus(ctx context.Context, orgID string) (map[domain.InviteStatus]int, error)
}
