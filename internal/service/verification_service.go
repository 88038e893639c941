package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/luminara-labs/bizhub/internal/cache"
	"github.com/luminara-labs/bizhub/internal/domain"
	"github.com/luminara-labs/bizhub/internal/mailer"
	"github.com/luminara-labs/bizhub/internal/repository"
	"github.com/luminara-labs/bizhub/pkg/config"
	"github.com/luminara-labs/bizhub/pkg/events"
	"github.com/luminara-labs/bizhub/pkg/logger"
)

const (
	issueRateLimit  = 5
	issueRateWindow = time.Minute
)

type IssueResult struct {
	Code      string `json:"-"`
	ExpiresIn int64  `json:"expires_in"`
}

type VerificationService interface {
	// Issue creates a fresh 6-digit code for the user, overwriting any live
	// one, and emails it. A failed send does not roll the code back.
	Issue(ctx context.Context, userID int64) (*IssueResult, error)
	// Validate checks a submitted code and, on match, marks the user
	// verified and consumes the code.
	Validate(ctx context.Context, userID int64, code string) error
}

type verificationService struct {
	userRepo  repository.UserRepository
	store     cache.VerificationStore
	rateLimit repository.RateLimitRepository
	mailer    mailer.Service
	eventBus  events.Publisher
	config    *config.Config
}

func NewVerificationService(
	userRepo repository.UserRepository,
	store cache.VerificationStore,
	rateLimit repository.RateLimitRepository,
	mailer mailer.Service,
	eventBus events.Publisher,
	config *config.Config,
) VerificationService {
	return &verificationService{
		userRepo:  userRepo,
		store:     store,
		rateLimit: rateLimit,
		mailer:    mailer,
		eventBus:  eventBus,
		config:    config,
	}
}

func (s *verificationService) Issue(ctx context.Context, userID int64) (*IssueResult, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrNotFound
	}
	if user.IsVerified {
		return nil, domain.ErrAlreadyVerified
	}

	allowed, err := s.rateLimit.CheckRateLimit(ctx, fmt.Sprintf("verify_issue:%d", userID), issueRateLimit, issueRateWindow)
	if err != nil {
		logger.ErrorContext(ctx, "Rate limit check failed", "error", err, "user_id", userID)
	}
	if !allowed {
		return nil, domain.ErrRateLimited
	}

	code, err := generateVerificationCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification code: %w", err)
	}

	ttl := s.config.Auth.VerificationCodeTTL
	if err := s.store.Set(ctx, userID, code, ttl); err != nil {
		return nil, fmt.Errorf("failed to store verification code: %w", err)
	}

	if err := s.mailer.SendVerificationCode(user.Email, user.Name, code); err != nil {
		logger.ErrorContext(ctx, "Failed to send verification email", "error", err, "user_id", userID)
		// Don't fail the issue - the code is live and usable
	}

	return &IssueResult{
		Code:      code,
		ExpiresIn: int64(ttl.Seconds()),
	}, nil
}

func (s *verificationService) Validate(ctx context.Context, userID int64, code string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return domain.ErrNotFound
	}
	if user.IsVerified {
		return domain.ErrAlreadyVerified
	}

	if err := domain.ValidateVerificationCode(code); err != nil {
		return err
	}

	stored, err := s.store.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to look up verification code: %w", err)
	}
	if stored == "" {
		return domain.ErrCodeNotFound
	}
	if stored != code {
		// Leave the stored code untouched so the correct one still works.
		return domain.ErrCodeMismatch
	}

	if err := s.userRepo.MarkVerified(ctx, userID); err != nil {
		return fmt.Errorf("failed to mark user as verified: %w", err)
	}

	if err := s.store.Del(ctx, userID); err != nil {
		logger.ErrorContext(ctx, "Failed to delete consumed verification code", "error", err, "user_id", userID)
	}

	if err := s.eventBus.Publish(ctx, events.UserVerified, events.UserVerifiedEvent{
		UserID:     userID,
		Email:      user.Email,
		VerifiedAt: time.Now(),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish user.verified event", "error", err, "user_id", userID)
	}

	return nil
}

func generateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
