package domain

import "time"

type Business struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	OwnerID       int64      `json:"owner_id"`
	PlanExpiresAt *time.Time `json:"plan_expires_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// IsPlanActive reports whether the business subscription covers the given
// instant. A business with no recorded expiry has never subscribed.
func (b *Business) IsPlanActive(now time.Time) bool {
	return b.PlanExpiresAt != nil && now.Before(*b.PlanExpiresAt)
}

// Business-level roles. Invitations may grant member or manager; admin is
// reserved for owners and is never grantable through an invitation.
const (
	BusinessRoleMember  = "member"
	BusinessRoleManager = "manager"
	BusinessRoleAdmin   = "admin"
)

var invitableRoles = map[string]bool{
	BusinessRoleMember:  true,
	BusinessRoleManager: true,
}

func IsInvitableRole(role string) bool {
	return invitableRoles[role]
}

type MembershipStatus string

const (
	// MembershipPending means the invitation was redeemed but an admin has
	// not approved the membership yet.
	MembershipPending MembershipStatus = "pending"
	MembershipActive  MembershipStatus = "active"
)

// BusinessUser links a user to a business with a role. At most one row may
// exist per (business, user) pair.
type BusinessUser struct {
	ID         int64            `json:"id"`
	BusinessID int64            `json:"business_id"`
	UserID     int64            `json:"user_id"`
	Role       string           `json:"role"`
	Status     MembershipStatus `json:"status"`
	JoinedAt   time.Time        `json:"joined_at"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

func (bu *BusinessUser) IsAdmin() bool {
	return bu.Role == BusinessRoleAdmin && bu.Status == MembershipActive
}
