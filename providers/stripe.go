package providers

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"

	"github.com/AmanCH3/hamro-grocery-backend/config"
	"github.com/AmanCH3/hamro-grocery-backend/models"
)

// StripeProvider implements PaymentProvider with Stripe Checkout sessions.
// The session id plays the role of the transaction reference.
type StripeProvider struct {
	cfg config.StripeConfig
	api *client.API
}

// NewStripeProvider creates a StripeProvider. backends may be nil to use
// Stripe's default endpoints.
func NewStripeProvider(cfg config.StripeConfig, backends *stripe.Backends) *StripeProvider {
	api := &client.API{}
	api.Init(cfg.APIKey, backends)
	return &StripeProvider{cfg: cfg, api: api}
}

func (s *StripeProvider) Name() string { return models.PaymentMethodStripe }

func (s *StripeProvider) Initiate(ctx context.Context, req InitiateRequest) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.cfg.SuccessURL),
		CancelURL:         stripe.String(s.cfg.CancelURL),
		ClientReferenceID: stripe.String(req.OrderID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(s.cfg.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.OrderName),
					},
					UnitAmount: stripe.Int64(req.AmountMinor),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	if req.Customer.Email != "" {
		params.CustomerEmail = stripe.String(req.Customer.Email)
	}
	params.AddMetadata("order_id", req.OrderID)
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe initiate: %w", gatewayError("%v", err))
	}
	if sess.ID == "" || sess.URL == "" {
		return nil, fmt.Errorf("stripe initiate: %w", gatewayError("session missing id or url"))
	}
	return &Session{TransactionRef: sess.ID, PaymentURL: sess.URL}, nil
}

func (s *StripeProvider) Lookup(ctx context.Context, sessionID string) (*LookupResult, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe lookup: %w", gatewayError("%v", err))
	}

	result := &LookupResult{
		TransactionRef: sessionID,
		GatewayStatus:  string(sess.Status),
		PaidMinor:      sess.AmountTotal,
	}
	switch {
	case sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
		result.Status = StatusCompleted
		result.GatewayStatus = string(sess.PaymentStatus)
	case sess.Status == stripe.CheckoutSessionStatusExpired:
		result.Status = StatusFailed
	default:
		result.Status = StatusPending
	}
	return result, nil
}
