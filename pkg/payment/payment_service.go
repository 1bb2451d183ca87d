package payment

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"github.com/stripe/stripe-go/v74/refund"
)

// ServiceInterface defines the contract for a payment processing service.
// Charge returns a provider reference stored on the errand; Refund reverses
// a previous charge by that reference.
type ServiceInterface interface {
	Charge(ctx context.Context, userID string, amount float64, currency string) (string, error)
	Refund(ctx context.Context, paymentReference string) error
}

// StripeService processes payments through Stripe PaymentIntents.
type StripeService struct{}

// NewStripeService sets the package-level Stripe key and returns the service.
func NewStripeService(apiKey string) *StripeService {
	stripe.Key = apiKey
	return &StripeService{}
}

// Charge creates and confirms a PaymentIntent for the given amount. Amounts
// are in major currency units and converted to the minor unit for Stripe.
func (s *StripeService) Charge(ctx context.Context, userID string, amount float64, currency string) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("payment.Charge: invalid amount %.2f", amount)
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(int64(math.Round(amount * 100))),
		Currency: stripe.String(currency),
		Confirm:  stripe.Bool(true),
	}
	params.AddMetadata("user_id", userID)
	// One idempotency key per charge attempt, so a transport-level retry of
	// this request cannot double-charge.
	params.SetIdempotencyKey(uuid.NewString())
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", fmt.Errorf("payment.Charge: %w", err)
	}
	return pi.ID, nil
}

// Refund reverses the full amount of a previously confirmed PaymentIntent.
func (s *StripeService) Refund(ctx context.Context, paymentReference string) error {
	_, err := refund.New(&stripe.RefundParams{
		PaymentIntent: stripe.String(paymentReference),
	})
	if err != nil {
		return fmt.Errorf("payment.Refund: %w", err)
	}
	return nil
}
