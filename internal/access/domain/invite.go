package domain

import "time"

// InviteStatus transitions are monotone: pending may move to accepted,
// revoked or expired; those three are terminal.
type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteAccepted InviteStatus = "accepted"
	InviteRevoked  InviteStatus = "revoked"
	InviteExpired  InviteStatus = "expired"
)

// InviteCodeLength is the fixed length of generated invite codes.
const InviteCodeLength = 32

// Invite admits users into an organization. current_uses is only ever
// incremented by the redemption engine's atomic conditional update and
// never exceeds MaxUses.
type Invite struct {
	ID             string
	Code           string
	OrganizationID string
	InvitedBy      string
	TargetRole     Role
	Email          string // optional: restricts redemption to this address
	Status         InviteStatus
	ExpiresAt      time.Time
	MaxUses        int
	CurrentUses    int
	UsedBy         string // last redeemer
	UsedAt         *time.Time
	RevokedBy      string
	RevokedAt      *time.Time
	RevokeReason   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsExpired compares against a caller-supplied instant so every check in
// a single operation observes the same clock reading. The deadline
// itself is expired: redemption requires expires_at strictly after now,
// and this predicate must agree with that at the boundary.
func (i Invite) IsExpired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// IsUsable reports whether a redemption could still succeed. This is the
// read-only precondition; the store-level conditional update is what
// actually guards the quota under concurrency.
func (i Invite) IsUsable(now time.Time) bool {
	return i.Status == InvitePending && !i.IsExpired(now) && i.CurrentUses < i.MaxUses
}

// UsesRemaining never reports negative even if a stale read races a
// concurrent redemption.
func (i Invite) UsesRemaining() int {
	if n := i.MaxUses - i.CurrentUses; n > 0 {
		return n
	}
	return 0
}
