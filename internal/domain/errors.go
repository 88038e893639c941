package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the services. Handlers map these onto HTTP
// status codes; everything unrecognized becomes a 500.
var (
	ErrNotFound        = errors.New("not found")
	ErrExpired         = errors.New("expired")
	ErrAlreadyUsed     = errors.New("invitation already used")
	ErrAlreadyMember   = errors.New("user is already a member of this business")
	ErrAlreadyVerified = errors.New("account is already verified")
	ErrCodeNotFound    = errors.New("verification code not found or expired")
	ErrCodeMismatch    = errors.New("verification code does not match")
	ErrForbidden       = errors.New("insufficient permissions")
	ErrPlanExpired     = errors.New("business plan has expired")
	ErrRateLimited     = errors.New("too many requests")
)

// ValidationError reports malformed input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
