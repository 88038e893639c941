package domain

import (
	"crypto/rand"
	"strings"
	"time"
)

type InvitationStatus string

const (
	InvitationPending   InvitationStatus = "pending"
	InvitationAccepted  InvitationStatus = "accepted"
	InvitationExpired   InvitationStatus = "expired"
	InvitationCancelled InvitationStatus = "cancelled"
)

func ParseInvitationStatus(s string) (InvitationStatus, bool) {
	switch InvitationStatus(s) {
	case InvitationPending, InvitationAccepted, InvitationExpired, InvitationCancelled:
		return InvitationStatus(s), true
	default:
		return "", false
	}
}

type InvitationAction string

const (
	ActionCancel InvitationAction = "cancel"
	ActionResend InvitationAction = "resend"
	ActionExpire InvitationAction = "expire"
)

func ParseInvitationAction(s string) (InvitationAction, bool) {
	switch InvitationAction(s) {
	case ActionCancel, ActionResend, ActionExpire:
		return InvitationAction(s), true
	default:
		return "", false
	}
}

// Invitation grants the holder of its code a role within a business. Codes
// are stored uppercase; lookups normalize input the same way.
type Invitation struct {
	ID             int64            `json:"id"`
	BusinessUserID int64            `json:"business_user_id"`
	Code           string           `json:"invitation_code"`
	Role           string           `json:"role"`
	Status         InvitationStatus `json:"status"`
	IsUsed         bool             `json:"is_used"`
	ExpiresAt      time.Time        `json:"expired_at"`
	UsedAt         *time.Time       `json:"used_at,omitempty"`
	UsedBy         *int64           `json:"used_by,omitempty"`
	AcceptIP       string           `json:"-"`
	AcceptUA       string           `json:"-"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// IsExpired is the single source of truth for effective expiry. The status
// column may lag behind wall-clock expiry, so every read site must consult
// this instead of trusting Status alone.
func (i *Invitation) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// NormalizeInvitationCode uppercases and trims a submitted code so lookups
// are case-insensitive.
func NormalizeInvitationCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

const invitationCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewInvitationCode returns a random uppercase alphanumeric code.
func NewInvitationCode(length int) string {
	if length <= 0 {
		length = 10
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand never fails on supported platforms
	}
	for i, b := range buf {
		buf[i] = invitationCodeAlphabet[int(b)%len(invitationCodeAlphabet)]
	}
	return string(buf)
}

type CreateInvitationRequest struct {
	Role          string `json:"role"`
	ExpiresInDays int    `json:"expires_in_days,omitempty"`
	// Email, when set, receives the invitation code directly.
	Email string `json:"email,omitempty"`
}

func (r *CreateInvitationRequest) Validate() error {
	if r.Role == "" {
		return NewValidationError("role", "is required")
	}
	if !IsInvitableRole(r.Role) {
		return NewValidationError("role", "must be member or manager")
	}
	if r.ExpiresInDays < 0 {
		return NewValidationError("expires_in_days", "must be positive")
	}
	if r.Email != "" && !isValidEmail(r.Email) {
		return NewValidationError("email", "invalid format")
	}
	return nil
}

type UpdateInvitationRequest struct {
	InvitationID  int64  `json:"invitation_id"`
	Action        string `json:"action"`
	ExpiresInDays int    `json:"expires_in_days,omitempty"`
}

type JoinRequest struct {
	InvitationCode string `json:"invitation_code"`
	AcceptTerms    bool   `json:"accept_terms"`
}

// InvitationPreview is the public, non-consuming projection returned before
// a user decides to join.
type InvitationPreview struct {
	Role         string    `json:"role"`
	BusinessName string    `json:"business_name"`
	InviterName  string    `json:"inviter_name"`
	IsExpired    bool      `json:"is_expired"`
	ExpiresAt    time.Time `json:"expired_at"`
}

// InvitationListItem carries the inviter/acceptor projections the admin
// listing screen renders alongside each invitation.
type InvitationListItem struct {
	Invitation
	InviterName  string  `json:"inviter_name"`
	AcceptorName *string `json:"acceptor_name,omitempty"`
}
