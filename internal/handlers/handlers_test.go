package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/luminara-labs/bizhub/internal/domain"
	"github.com/luminara-labs/bizhub/internal/handlers"
	"github.com/luminara-labs/bizhub/internal/service"
	"github.com/luminara-labs/bizhub/pkg/auth"
	"github.com/luminara-labs/bizhub/pkg/config"
)

const testSecret = "test-secret-key"

// ---------- Mock services ----------

type mockAuthService struct{}

func (m *mockAuthService) Register(_ context.Context, req *domain.CreateUserRequest) (*domain.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &domain.User{ID: 1, Email: req.Email, Name: req.Name}, nil
}

func (m *mockAuthService) Login(context.Context, *domain.LoginRequest) (*domain.LoginResponse, error) {
	return &domain.LoginResponse{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (m *mockAuthService) RefreshToken(context.Context, string) (*domain.LoginResponse, error) {
	return &domain.LoginResponse{AccessToken: "access", RefreshToken: "refresh"}, nil
}

type mockVerificationService struct {
	validateErr   error
	validateCalls int
	lastCode      string
}

func (m *mockVerificationService) Issue(context.Context, int64) (*service.IssueResult, error) {
	return &service.IssueResult{Code: "123456", ExpiresIn: 600}, nil
}

func (m *mockVerificationService) Validate(_ context.Context, _ int64, code string) error {
	m.validateCalls++
	m.lastCode = code
	return m.validateErr
}

type mockInvitationService struct {
	acceptErr   error
	acceptCalls int
	lastCode    string
	lastIP      string
	previewErr  error
}

func (m *mockInvitationService) Create(_ context.Context, _, _ int64, req *domain.CreateInvitationRequest) (*domain.Invitation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &domain.Invitation{
		ID:     1,
		Code:   "ABCDEF1234",
		Role:   req.Role,
		Status: domain.InvitationPending,
	}, nil
}

func (m *mockInvitationService) Accept(_ context.Context, _ int64, code, ip, _ string) (*domain.BusinessUser, error) {
	m.acceptCalls++
	m.lastCode = code
	m.lastIP = ip
	if m.acceptErr != nil {
		return nil, m.acceptErr
	}
	return &domain.BusinessUser{ID: 5, BusinessID: 1, UserID: 42, Role: domain.BusinessRoleMember, Status: domain.MembershipPending}, nil
}

func (m *mockInvitationService) UpdateStatus(context.Context, int64, *domain.UpdateInvitationRequest) (*domain.Invitation, error) {
	return &domain.Invitation{ID: 1, Status: domain.InvitationCancelled}, nil
}

func (m *mockInvitationService) Delete(context.Context, int64, int64) error { return nil }

func (m *mockInvitationService) List(context.Context, int64, int64, *domain.InvitationStatus, int, int) ([]domain.InvitationListItem, error) {
	return []domain.InvitationListItem{}, nil
}

func (m *mockInvitationService) Preview(context.Context, string) (*domain.InvitationPreview, error) {
	if m.previewErr != nil {
		return nil, m.previewErr
	}
	return &domain.InvitationPreview{
		Role:         domain.BusinessRoleMember,
		BusinessName: "Acme Corp",
		InviterName:  "Admin User",
		ExpiresAt:    time.Now().Add(24 * time.Hour),
	}, nil
}

func (m *mockInvitationService) ApproveMembership(context.Context, int64, int64, int64) (*domain.BusinessUser, error) {
	return &domain.BusinessUser{ID: 5, Status: domain.MembershipActive}, nil
}

// ---------- Fixture ----------

type handlerFixture struct {
	verification *mockVerificationService
	invitation   *mockInvitationService
	router       *chi.Mux
}

func newHandlerFixture() *handlerFixture {
	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:      testSecret,
			AccessTokenTTL: time.Hour,
		},
	}

	f := &handlerFixture{
		verification: &mockVerificationService{},
		invitation:   &mockInvitationService{},
	}

	h := handlers.New(&mockAuthService{}, f.verification, f.invitation, nil, cfg)

	r := chi.NewRouter()
	r.Post("/auth/register", h.Register)
	r.Get("/join", h.PreviewInvitation)
	r.Group(func(r chi.Router) {
		r.Use(h.RequireJWT)
		r.Post("/auth/verify-email", h.VerifyEmail)
		r.Post("/auth/resend-verification", h.ResendVerification)
		r.Post("/join", h.Join)
		r.Post("/businesses/{businessID}/invitations", h.CreateInvitation)
	})
	f.router = r
	return f
}

func bearerToken(t *testing.T) string {
	t.Helper()
	token, err := auth.NewAccessToken(42, "user@example.com", "user", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return "Bearer " + token
}

func (f *handlerFixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return body
}

// ---------- Tests ----------

func TestRequireJWTRejectsMissingHeader(t *testing.T) {
	f := newHandlerFixture()

	rec := f.do(t, http.MethodPost, "/auth/verify-email", "", map[string]string{"verification_code": "123456"})

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if f.verification.validateCalls != 0 {
		t.Error("handler must not be reached without a token")
	}
}

func TestRequireJWTRejectsRefreshToken(t *testing.T) {
	f := newHandlerFixture()
	token, err := auth.NewAccessToken(42, "user@example.com", "refresh", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	rec := f.do(t, http.MethodPost, "/auth/verify-email", "Bearer "+token, map[string]string{"verification_code": "123456"})

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestVerifyEmailSuccess(t *testing.T) {
	f := newHandlerFixture()

	rec := f.do(t, http.MethodPost, "/auth/verify-email", bearerToken(t), map[string]string{"verification_code": "123456"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if f.verification.lastCode != "123456" {
		t.Errorf("code passed to service = %q", f.verification.lastCode)
	}
	body := decodeBody(t, rec)
	if body["success"] != true {
		t.Errorf("body = %v", body)
	}
}

func TestVerifyEmailErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{"mismatch", domain.ErrCodeMismatch, http.StatusBadRequest, "CODE_MISMATCH"},
		{"no code issued", domain.ErrCodeNotFound, http.StatusBadRequest, "CODE_NOT_FOUND"},
		{"already verified", domain.ErrAlreadyVerified, http.StatusConflict, "CONFLICT"},
		{"rate limited", domain.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED"},
		{"malformed", domain.NewValidationError("verification_code", "must be 6 digits"), http.StatusBadRequest, "INVALID_INPUT"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newHandlerFixture()
			f.verification.validateErr = tc.serviceErr

			rec := f.do(t, http.MethodPost, "/auth/verify-email", bearerToken(t), map[string]string{"verification_code": "000000"})

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			body := decodeBody(t, rec)
			if body["code"] != tc.wantCode {
				t.Errorf("error code = %v, want %s", body["code"], tc.wantCode)
			}
		})
	}
}

func TestResendVerificationReturnsExpiry(t *testing.T) {
	f := newHandlerFixture()

	rec := f.do(t, http.MethodPost, "/auth/resend-verification", bearerToken(t), nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	data, ok := body["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing data envelope: %v", body)
	}
	if data["expires_in"] != float64(600) {
		t.Errorf("expires_in = %v, want 600", data["expires_in"])
	}
	// The raw code must never appear in the response
	if _, leaked := data["code"]; leaked {
		t.Error("verification code leaked into the response body")
	}
}

func TestJoinRejectsUnacceptedTermsBeforeLookup(t *testing.T) {
	f := newHandlerFixture()

	rec := f.do(t, http.MethodPost, "/join", bearerToken(t), domain.JoinRequest{
		InvitationCode: "ABCDEF1234",
		AcceptTerms:    false,
	})

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["code"] != "TERMS_NOT_ACCEPTED" {
		t.Errorf("error code = %v, want TERMS_NOT_ACCEPTED", body["code"])
	}
	if f.invitation.acceptCalls != 0 {
		t.Error("terms check must short-circuit before any invitation lookup")
	}
}

func TestJoinSuccess(t *testing.T) {
	f := newHandlerFixture()

	rec := f.do(t, http.MethodPost, "/join", bearerToken(t), domain.JoinRequest{
		InvitationCode: "abcdef1234",
		AcceptTerms:    true,
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if f.invitation.lastCode != "abcdef1234" {
		t.Errorf("code forwarded = %q", f.invitation.lastCode)
	}
	body := decodeBody(t, rec)
	if _, ok := body["membership"]; !ok {
		t.Errorf("response missing membership: %v", body)
	}
}

func TestJoinForwardsClientIP(t *testing.T) {
	f := newHandlerFixture()

	var buf bytes.Buffer
	json.NewEncoder(&buf).Encode(domain.JoinRequest{InvitationCode: "ABCDEF1234", AcceptTerms: true})
	req := httptest.NewRequest(http.MethodPost, "/join", &buf)
	req.Header.Set("Authorization", bearerToken(t))
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	if f.invitation.lastIP != "203.0.113.9" {
		t.Errorf("client IP = %q, want first X-Forwarded-For entry", f.invitation.lastIP)
	}
}

func TestJoinErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		serviceErr error
		wantStatus int
	}{
		{"unknown code", domain.ErrNotFound, http.StatusNotFound},
		{"expired", domain.ErrExpired, http.StatusBadRequest},
		{"already used", domain.ErrAlreadyUsed, http.StatusConflict},
		{"already member", domain.ErrAlreadyMember, http.StatusConflict},
		{"rate limited", domain.ErrRateLimited, http.StatusTooManyRequests},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newHandlerFixture()
			f.invitation.acceptErr = tc.serviceErr

			rec := f.do(t, http.MethodPost, "/join", bearerToken(t), domain.JoinRequest{
				InvitationCode: "ABCDEF1234",
				AcceptTerms:    true,
			})

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}

func TestPreviewInvitationIsPublic(t *testing.T) {
	f := newHandlerFixture()

	rec := f.do(t, http.MethodGet, "/join?code=ABCDEF1234", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 without auth", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["business_name"] != "Acme Corp" {
		t.Errorf("business_name = %v", body["business_name"])
	}
}

func TestPreviewInvitationMissingCode(t *testing.T) {
	f := newHandlerFixture()

	rec := f.do(t, http.MethodGet, "/join", "", nil)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCreateInvitationRejectsAdminRole(t *testing.T) {
	f := newHandlerFixture()

	rec := f.do(t, http.MethodPost, "/businesses/1/invitations", bearerToken(t), domain.CreateInvitationRequest{
		Role: domain.BusinessRoleAdmin,
	})

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for admin role", rec.Code)
	}
}

func TestCreateInvitationSuccess(t *testing.T) {
	f := newHandlerFixture()

	rec := f.do(t, http.MethodPost, "/businesses/1/invitations", bearerToken(t), domain.CreateInvitationRequest{
		Role: domain.BusinessRoleManager,
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
}

func TestRegisterValidation(t *testing.T) {
	f := newHandlerFixture()

	rec := f.do(t, http.MethodPost, "/auth/register", "", domain.CreateUserRequest{
		Email:    "not-an-email",
		Password: "short",
	})

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
