package domain

import "time"

// MembershipStatus is the lifecycle state of a membership. Only active
// members are authorized; all other states deny regardless of role.
type MembershipStatus string

const (
	MembershipActive    MembershipStatus = "active"
	MembershipInactive  MembershipStatus = "inactive"
	MembershipPending   MembershipStatus = "pending"
	MembershipSuspended MembershipStatus = "suspended"
)

func (s MembershipStatus) Valid() bool {
	switch s {
	case MembershipActive, MembershipInactive, MembershipPending, MembershipSuspended:
		return true
	}
	return false
}

// Membership links a user to an organization with a role. At most one
// membership exists per (user, organization) pair; the store enforces
// the uniqueness.
type Membership struct {
	ID             string
	UserID         string
	OrganizationID string
	Role           Role
	Status         MembershipStatus
	InvitedBy      string // empty when created by direct admin action
	JoinedAt       time.Time
	LastAccessed   *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsActive reports whether the membership grants any access at all.
func (m Membership) IsActive() bool {
	return m.Status == MembershipActive
}
