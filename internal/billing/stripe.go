package billing

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/subscription"
)

// CheckoutSession is the subset of the Stripe session the frontend needs to
// redirect the admin into the hosted checkout flow.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type Service interface {
	CreateCheckoutSession(ctx context.Context, businessID int64, customerEmail string) (*CheckoutSession, error)
	SubscriptionPeriodEnd(ctx context.Context, subscriptionID string) (time.Time, error)
}

type stripeService struct {
	priceID    string
	successURL string
	cancelURL  string
}

func NewStripeService(secretKey, priceID, successURL, cancelURL string) Service {
	stripe.Key = secretKey
	return &stripeService{
		priceID:    priceID,
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

func (s *stripeService) CreateCheckoutSession(ctx context.Context, businessID int64, customerEmail string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.priceID),
				Quantity: stripe.Int64(1),
			},
		},
		CustomerEmail:     stripe.String(customerEmail),
		ClientReferenceID: stripe.String(strconv.FormatInt(businessID, 10)),
		SuccessURL:        stripe.String(s.successURL),
		CancelURL:         stripe.String(s.cancelURL),
	}
	params.Context = ctx
	params.SetIdempotencyKey(uuid.NewString())

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (s *stripeService) SubscriptionPeriodEnd(ctx context.Context, subscriptionID string) (time.Time, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := subscription.Get(subscriptionID, params)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to fetch subscription: %w", err)
	}

	return time.Unix(sub.CurrentPeriodEnd, 0), nil
}
