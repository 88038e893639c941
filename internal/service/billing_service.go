package service

import (
	"context"
	"fmt"

	"github.com/luminara-labs/bizhub/internal/billing"
	"github.com/luminara-labs/bizhub/internal/domain"
	"github.com/luminara-labs/bizhub/internal/repository"
)

type BillingService interface {
	// CreateCheckout starts a Stripe subscription checkout for the business.
	CreateCheckout(ctx context.Context, actorID int64, actorEmail string, businessID int64) (*billing.CheckoutSession, error)
	// ActivatePlan pulls the subscription period end from Stripe and records
	// it as the business plan expiry.
	ActivatePlan(ctx context.Context, actorID, businessID int64, subscriptionID string) error
}

type billingService struct {
	gateway      billing.Service
	businessRepo repository.BusinessRepository
}

func NewBillingService(gateway billing.Service, businessRepo repository.BusinessRepository) BillingService {
	return &billingService{
		gateway:      gateway,
		businessRepo: businessRepo,
	}
}

func (s *billingService) CreateCheckout(ctx context.Context, actorID int64, actorEmail string, businessID int64) (*billing.CheckoutSession, error) {
	if err := s.requireBusinessAdmin(ctx, actorID, businessID); err != nil {
		return nil, err
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, businessID, actorEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return session, nil
}

func (s *billingService) ActivatePlan(ctx context.Context, actorID, businessID int64, subscriptionID string) error {
	if err := s.requireBusinessAdmin(ctx, actorID, businessID); err != nil {
		return err
	}

	periodEnd, err := s.gateway.SubscriptionPeriodEnd(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("failed to resolve subscription period: %w", err)
	}

	if err := s.businessRepo.SetPlanExpiry(ctx, businessID, periodEnd); err != nil {
		return fmt.Errorf("failed to record plan expiry: %w", err)
	}
	return nil
}

func (s *billingService) requireBusinessAdmin(ctx context.Context, actorID, businessID int64) error {
	membership, err := s.businessRepo.FindMembership(ctx, businessID, actorID)
	if err != nil {
		return fmt.Errorf("failed to resolve membership: %w", err)
	}
	if membership == nil || !membership.IsAdmin() {
		return domain.ErrForbidden
	}
	return nil
}
