package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

// ErrWebhookSignature is returned when the payload signature cannot be verified.
var ErrWebhookSignature = errors.New("payments: invalid webhook signature")

// WebhookEventType is the normalised gateway notification kind.
type WebhookEventType string

const (
	WebhookPaymentSucceeded WebhookEventType = "payment.succeeded"
	WebhookPaymentFailed    WebhookEventType = "payment.failed"
	WebhookPaymentCanceled  WebhookEventType = "payment.canceled"
	WebhookIgnored          WebhookEventType = "ignored"
)

// WebhookEvent is a verified gateway notification about a payment.
type WebhookEvent struct {
	ID          string
	Type        WebhookEventType
	PaymentID   string
	OrderID     string
	FailureCode string
}

// ParseStripeWebhook verifies the Stripe-Signature header and extracts the PaymentIntent event.
// Event types unrelated to payment intents come back as WebhookIgnored.
func ParseStripeWebhook(payload []byte, signatureHeader, secret string) (WebhookEvent, error) {
	if strings.TrimSpace(secret) == "" {
		return WebhookEvent{}, errors.New("payments: webhook secret not configured")
	}
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrWebhookSignature, err)
	}

	result := WebhookEvent{ID: event.ID, Type: WebhookIgnored}
	switch event.Type {
	case "payment_intent.succeeded":
		result.Type = WebhookPaymentSucceeded
	case "payment_intent.payment_failed":
		result.Type = WebhookPaymentFailed
	case "payment_intent.canceled":
		result.Type = WebhookPaymentCanceled
	default:
		return result, nil
	}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return WebhookEvent{}, errors.New("payments: webhook event has no data")
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return WebhookEvent{}, fmt.Errorf("payments: decode payment intent: %w", err)
	}
	result.PaymentID = intent.ID
	result.OrderID = intent.Metadata["order_id"]
	if intent.LastPaymentError != nil {
		code := string(intent.LastPaymentError.DeclineCode)
		if code == "" {
			code = string(intent.LastPaymentError.Code)
		}
		result.FailureCode = detailForDecline(code)
	}
	return result, nil
}
