package payment

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/paymentintent"
	"github.com/stripe/stripe-go/v80/webhook"
)

// StripeGateway confirms orders against Stripe PaymentIntents.
type StripeGateway struct {
	SecretKey  string
	WebhookKey string
}

func NewStripeGateway(secretKey, webhookKey string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{SecretKey: secretKey, WebhookKey: webhookKey}
}

// Confirm looks up the PaymentIntent behind gatewayRef. Succeeded is a yes,
// canceled or failed is a definitive no, anything still in flight is an error
// so the caller keeps waiting within its own deadline.
func (s *StripeGateway) Confirm(ctx context.Context, orderID, gatewayRef string) (bool, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := paymentintent.Get(gatewayRef, params)
	if err != nil {
		return false, fmt.Errorf("stripe lookup for order=%s ref=%s: %w", orderID, gatewayRef, err)
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return true, nil
	case stripe.PaymentIntentStatusCanceled:
		return false, nil
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		// Stripe parks failed attempts here.
		return false, nil
	default:
		return false, fmt.Errorf("payment for order=%s still in status %s", orderID, pi.Status)
	}
}

// CreatePaymentIntent opens a new intent for an online order.
func (s *StripeGateway) CreatePaymentIntent(amount int64, currency string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
	}
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}

// ParseWebhook verifies the Stripe signature and decodes the event.
func (s *StripeGateway) ParseWebhook(r *http.Request) (stripe.Event, error) {
	var event stripe.Event
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return event, err
	}
	r.Body = io.NopCloser(bytes.NewBuffer(payload))
	sigHeader := r.Header.Get("Stripe-Signature")
	return webhook.ConstructEvent(payload, sigHeader, s.WebhookKey)
}
