package service

import (
	"context"
	"fmt"
	"time"

	"github.com/luminara-labs/bizhub/internal/domain"
	"github.com/luminara-labs/bizhub/internal/mailer"
	"github.com/luminara-labs/bizhub/internal/repository"
	"github.com/luminara-labs/bizhub/pkg/config"
	"github.com/luminara-labs/bizhub/pkg/events"
	"github.com/luminara-labs/bizhub/pkg/logger"
)

const (
	joinRateLimit  = 10
	joinRateWindow = time.Minute
)

type InvitationService interface {
	Create(ctx context.Context, actorID, businessID int64, req *domain.CreateInvitationRequest) (*domain.Invitation, error)
	Accept(ctx context.Context, userID int64, code, ip, userAgent string) (*domain.BusinessUser, error)
	UpdateStatus(ctx context.Context, actorID int64, req *domain.UpdateInvitationRequest) (*domain.Invitation, error)
	Delete(ctx context.Context, actorID, invitationID int64) error
	List(ctx context.Context, actorID, businessID int64, status *domain.InvitationStatus, limit, offset int) ([]domain.InvitationListItem, error)
	Preview(ctx context.Context, code string) (*domain.InvitationPreview, error)
	ApproveMembership(ctx context.Context, actorID, businessID, membershipID int64) (*domain.BusinessUser, error)
}

type invitationService struct {
	invitationRepo repository.InvitationRepository
	businessRepo   repository.BusinessRepository
	rateLimit      repository.RateLimitRepository
	mailer         mailer.Service
	eventBus       events.Publisher
	config         *config.Config
}

func NewInvitationService(
	invitationRepo repository.InvitationRepository,
	businessRepo repository.BusinessRepository,
	rateLimit repository.RateLimitRepository,
	mailer mailer.Service,
	eventBus events.Publisher,
	config *config.Config,
) InvitationService {
	return &invitationService{
		invitationRepo: invitationRepo,
		businessRepo:   businessRepo,
		rateLimit:      rateLimit,
		mailer:         mailer,
		eventBus:       eventBus,
		config:         config,
	}
}

func (s *invitationService) Create(ctx context.Context, actorID, businessID int64, req *domain.CreateInvitationRequest) (*domain.Invitation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	admin, err := s.requireBusinessAdmin(ctx, actorID, businessID)
	if err != nil {
		return nil, err
	}

	business, err := s.businessRepo.FindByID(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to find business: %w", err)
	}
	if business == nil {
		return nil, domain.ErrNotFound
	}
	if !business.IsPlanActive(time.Now()) {
		return nil, domain.ErrPlanExpired
	}

	days := req.ExpiresInDays
	if days == 0 {
		days = s.config.Invite.DefaultExpiryDays
	}
	expiresAt := time.Now().AddDate(0, 0, days)
	code := domain.NewInvitationCode(s.config.Invite.CodeLength)

	inv, err := s.invitationRepo.Create(ctx, admin.ID, code, req.Role, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}

	if err := s.eventBus.Publish(ctx, events.InvitationCreated, events.InvitationCreatedEvent{
		InvitationID: inv.ID,
		BusinessID:   businessID,
		Role:         inv.Role,
		ExpiresAt:    inv.ExpiresAt,
		CreatedAt:    inv.CreatedAt,
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish invitation.created event", "error", err, "invitation_id", inv.ID)
	}

	if req.Email != "" {
		joinURL := fmt.Sprintf("%s/join?code=%s", s.config.App.BaseURL, inv.Code)
		if err := s.mailer.SendInvitation(req.Email, business.Name, inv.Code, joinURL); err != nil {
			logger.ErrorContext(ctx, "Failed to send invitation email", "error", err, "invitation_id", inv.ID)
			// The invitation stands; the code can still be shared directly
		}
	}

	return inv, nil
}

func (s *invitationService) Accept(ctx context.Context, userID int64, code, ip, userAgent string) (*domain.BusinessUser, error) {
	allowed, err := s.rateLimit.CheckRateLimit(ctx, fmt.Sprintf("join:%d", userID), joinRateLimit, joinRateWindow)
	if err != nil {
		logger.ErrorContext(ctx, "Rate limit check failed", "error", err, "user_id", userID)
	}
	if !allowed {
		return nil, domain.ErrRateLimited
	}

	code = domain.NormalizeInvitationCode(code)
	if code == "" {
		return nil, domain.NewValidationError("invitation_code", "is required")
	}

	inv, err := s.invitationRepo.FindPendingByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to look up invitation: %w", err)
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}

	now := time.Now()
	if inv.IsExpired(now) {
		// Lazy expiry: flip the stale status row while we are here.
		if err := s.invitationRepo.MarkExpired(ctx, inv.ID); err != nil {
			logger.WarnContext(ctx, "Failed to mark invitation expired", "error", err, "invitation_id", inv.ID)
		}
		return nil, domain.ErrExpired
	}
	if inv.IsUsed {
		return nil, domain.ErrAlreadyUsed
	}

	inviter, err := s.businessRepo.FindMembershipByID(ctx, inv.BusinessUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve inviter membership: %w", err)
	}
	if inviter == nil {
		return nil, domain.ErrNotFound
	}

	existing, err := s.businessRepo.FindMembership(ctx, inviter.BusinessID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing membership: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrAlreadyMember
	}

	// Membership insert and invitation claim run in one transaction; the
	// repository reports concurrent accepts and membership races.
	membership, err := s.invitationRepo.Accept(ctx, inv.ID, inviter.BusinessID, userID, inv.Role, ip, userAgent)
	if err != nil {
		return nil, err
	}

	if err := s.eventBus.Publish(ctx, events.InvitationAccepted, events.InvitationAcceptedEvent{
		InvitationID: inv.ID,
		BusinessID:   inviter.BusinessID,
		UserID:       userID,
		Role:         inv.Role,
		AcceptedAt:   now,
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish invitation.accepted event", "error", err, "invitation_id", inv.ID)
	}

	return membership, nil
}

func (s *invitationService) UpdateStatus(ctx context.Context, actorID int64, req *domain.UpdateInvitationRequest) (*domain.Invitation, error) {
	action, ok := domain.ParseInvitationAction(req.Action)
	if !ok {
		return nil, domain.NewValidationError("action", "must be cancel, resend or expire")
	}

	inv, err := s.invitationRepo.FindByID(ctx, req.InvitationID)
	if err != nil {
		return nil, fmt.Errorf("failed to find invitation: %w", err)
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}

	businessID, err := s.resolveBusinessID(ctx, inv)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireBusinessAdmin(ctx, actorID, businessID); err != nil {
		return nil, err
	}

	switch action {
	case domain.ActionCancel:
		// Accepted invitations stay accepted; cancelling one would orphan
		// the membership it created.
		if inv.Status != domain.InvitationPending {
			return nil, domain.NewValidationError("action", "only pending invitations can be cancelled")
		}
		updated, err := s.invitationRepo.Cancel(ctx, inv.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to cancel invitation: %w", err)
		}
		if err := s.eventBus.Publish(ctx, events.InvitationCancelled, events.InvitationCancelledEvent{
			InvitationID: inv.ID,
			BusinessID:   businessID,
			CancelledAt:  time.Now(),
		}); err != nil {
			logger.WarnContext(ctx, "Failed to publish invitation.cancelled event", "error", err, "invitation_id", inv.ID)
		}
		return updated, nil

	case domain.ActionResend:
		days := req.ExpiresInDays
		if days <= 0 {
			days = s.config.Invite.DefaultExpiryDays
		}
		updated, err := s.invitationRepo.Resend(ctx, inv.ID, time.Now().AddDate(0, 0, days))
		if err != nil {
			return nil, fmt.Errorf("failed to resend invitation: %w", err)
		}
		return updated, nil

	case domain.ActionExpire:
		updated, err := s.invitationRepo.Expire(ctx, inv.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to expire invitation: %w", err)
		}
		if err := s.eventBus.Publish(ctx, events.InvitationExpired, events.InvitationCancelledEvent{
			InvitationID: inv.ID,
			BusinessID:   businessID,
			CancelledAt:  time.Now(),
		}); err != nil {
			logger.WarnContext(ctx, "Failed to publish invitation.expired event", "error", err, "invitation_id", inv.ID)
		}
		return updated, nil
	}

	return nil, domain.NewValidationError("action", "unknown action")
}

func (s *invitationService) Delete(ctx context.Context, actorID, invitationID int64) error {
	inv, err := s.invitationRepo.FindByID(ctx, invitationID)
	if err != nil {
		return fmt.Errorf("failed to find invitation: %w", err)
	}
	if inv == nil {
		return domain.ErrNotFound
	}

	businessID, err := s.resolveBusinessID(ctx, inv)
	if err != nil {
		return err
	}
	if _, err := s.requireBusinessAdmin(ctx, actorID, businessID); err != nil {
		return err
	}

	return s.invitationRepo.Delete(ctx, invitationID)
}

func (s *invitationService) List(ctx context.Context, actorID, businessID int64, status *domain.InvitationStatus, limit, offset int) ([]domain.InvitationListItem, error) {
	if _, err := s.requireBusinessAdmin(ctx, actorID, businessID); err != nil {
		return nil, err
	}

	items, err := s.invitationRepo.ListByBusiness(ctx, businessID, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	return items, nil
}

func (s *invitationService) Preview(ctx context.Context, code string) (*domain.InvitationPreview, error) {
	code = domain.NormalizeInvitationCode(code)
	if code == "" {
		return nil, domain.NewValidationError("code", "is required")
	}

	preview, err := s.invitationRepo.PreviewByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to look up invitation: %w", err)
	}
	if preview == nil {
		return nil, domain.ErrNotFound
	}

	preview.IsExpired = time.Now().After(preview.ExpiresAt)
	return preview, nil
}

func (s *invitationService) ApproveMembership(ctx context.Context, actorID, businessID, membershipID int64) (*domain.BusinessUser, error) {
	if _, err := s.requireBusinessAdmin(ctx, actorID, businessID); err != nil {
		return nil, err
	}

	membership, err := s.businessRepo.FindMembershipByID(ctx, membershipID)
	if err != nil {
		return nil, fmt.Errorf("failed to find membership: %w", err)
	}
	if membership == nil || membership.BusinessID != businessID {
		return nil, domain.ErrNotFound
	}

	approved, err := s.businessRepo.ApproveMembership(ctx, membershipID)
	if err != nil {
		return nil, fmt.Errorf("failed to approve membership: %w", err)
	}

	if err := s.eventBus.Publish(ctx, events.MembershipApproved, events.MembershipApprovedEvent{
		BusinessUserID: approved.ID,
		BusinessID:     approved.BusinessID,
		UserID:         approved.UserID,
		ApprovedAt:     time.Now(),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish membership.approved event", "error", err, "business_user_id", approved.ID)
	}

	return approved, nil
}

// requireBusinessAdmin resolves the actor's membership in the business and
// rejects anyone who is not an active admin.
func (s *invitationService) requireBusinessAdmin(ctx context.Context, actorID, businessID int64) (*domain.BusinessUser, error) {
	membership, err := s.businessRepo.FindMembership(ctx, businessID, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve membership: %w", err)
	}
	if membership == nil || !membership.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	return membership, nil
}

func (s *invitationService) resolveBusinessID(ctx context.Context, inv *domain.Invitation) (int64, error) {
	inviter, err := s.businessRepo.FindMembershipByID(ctx, inv.BusinessUserID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve inviter membership: %w", err)
	}
	if inviter == nil {
		return 0, domain.ErrNotFound
	}
	return inviter.BusinessID, nil
}
