package domain

import (
	"strings"
	"testing"
	"time"
)

func TestNewInvitationCode(t *testing.T) {
	code := NewInvitationCode(10)
	if len(code) != 10 {
		t.Fatalf("expected 10-char code, got %d chars", len(code))
	}
	for _, r := range code {
		if !strings.ContainsRune(invitationCodeAlphabet, r) {
			t.Fatalf("code contains unexpected character %q", r)
		}
	}
	if code != strings.ToUpper(code) {
		t.Errorf("code must be uppercase, got %q", code)
	}

	// Zero length falls back to the default width
	if got := NewInvitationCode(0); len(got) != 10 {
		t.Errorf("expected default length 10, got %d", len(got))
	}
}

func TestNewInvitationCodeUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := NewInvitationCode(10)
		if seen[code] {
			t.Fatalf("duplicate code %q after %d iterations", code, i)
		}
		seen[code] = true
	}
}

func TestNormalizeInvitationCode(t *testing.T) {
	cases := map[string]string{
		"abc123":    "ABC123",
		" AbC123 ":  "ABC123",
		"XYZ789":    "XYZ789",
		"":          "",
		"  \t\n":    "",
		"mixedCase": "MIXEDCASE",
	}
	for in, want := range cases {
		if got := NormalizeInvitationCode(in); got != want {
			t.Errorf("NormalizeInvitationCode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInvitationIsExpired(t *testing.T) {
	now := time.Now()
	inv := &Invitation{ExpiresAt: now.Add(time.Hour)}
	if inv.IsExpired(now) {
		t.Error("invitation expiring in an hour should not be expired")
	}

	// Status still reads pending but the clock has passed: effective expiry
	// must win.
	inv = &Invitation{Status: InvitationPending, ExpiresAt: now.Add(-time.Minute)}
	if !inv.IsExpired(now) {
		t.Error("invitation past expired_at must report expired regardless of status")
	}
}

func TestParseInvitationStatus(t *testing.T) {
	for _, valid := range []string{"pending", "accepted", "expired", "cancelled"} {
		if _, ok := ParseInvitationStatus(valid); !ok {
			t.Errorf("expected %q to parse", valid)
		}
	}
	if _, ok := ParseInvitationStatus("revoked"); ok {
		t.Error("unexpected status should not parse")
	}
}

func TestParseInvitationAction(t *testing.T) {
	for _, valid := range []string{"cancel", "resend", "expire"} {
		if _, ok := ParseInvitationAction(valid); !ok {
			t.Errorf("expected %q to parse", valid)
		}
	}
	if _, ok := ParseInvitationAction("accept"); ok {
		t.Error("accept is not an admin action")
	}
}

func TestCreateInvitationRequestValidate(t *testing.T) {
	req := &CreateInvitationRequest{Role: BusinessRoleMember, ExpiresInDays: 7}
	if err := req.Validate(); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}

	req = &CreateInvitationRequest{Role: BusinessRoleManager}
	if err := req.Validate(); err != nil {
		t.Errorf("manager role rejected: %v", err)
	}

	// Admin is never grantable through an invitation
	req = &CreateInvitationRequest{Role: BusinessRoleAdmin}
	if err := req.Validate(); err == nil {
		t.Error("admin role must be rejected")
	}

	req = &CreateInvitationRequest{}
	if err := req.Validate(); err == nil {
		t.Error("missing role must be rejected")
	}
}

func TestValidateVerificationCode(t *testing.T) {
	if err := ValidateVerificationCode("042137"); err != nil {
		t.Errorf("valid code rejected: %v", err)
	}
	for _, bad := range []string{"", "12345", "1234567", "12a456", "12 456"} {
		if err := ValidateVerificationCode(bad); err == nil {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}

func TestBusinessIsPlanActive(t *testing.T) {
	now := time.Now()

	b := &Business{}
	if b.IsPlanActive(now) {
		t.Error("business without a plan expiry is not active")
	}

	future := now.Add(24 * time.Hour)
	b = &Business{PlanExpiresAt: &future}
	if !b.IsPlanActive(now) {
		t.Error("plan expiring tomorrow should be active")
	}

	past := now.Add(-time.Minute)
	b = &Business{PlanExpiresAt: &past}
	if b.IsPlanActive(now) {
		t.Error("plan expired a minute ago should be inactive")
	}
}

func TestBusinessUserIsAdmin(t *testing.T) {
	bu := &BusinessUser{Role: BusinessRoleAdmin, Status: MembershipActive}
	if !bu.IsAdmin() {
		t.Error("active admin membership should report admin")
	}

	// Pending admins have not been approved yet
	bu = &BusinessUser{Role: BusinessRoleAdmin, Status: MembershipPending}
	if bu.IsAdmin() {
		t.Error("pending membership must not count as admin")
	}

	bu = &BusinessUser{Role: BusinessRoleManager, Status: MembershipActive}
	if bu.IsAdmin() {
		t.Error("manager is not admin")
	}
}
