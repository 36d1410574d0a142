package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/personaliza/api/internal/payments"
	"github.com/personaliza/api/internal/platform/httpx"
	"github.com/personaliza/api/internal/services"
)

const maxWebhookBody = 64 * 1024

// WebhookParser verifies a raw gateway notification and normalises it.
type WebhookParser func(payload []byte, signature string) (payments.WebhookEvent, error)

// StripeWebhookParser verifies payloads signed with secret.
func StripeWebhookParser(secret string) WebhookParser {
	return func(payload []byte, signature string) (payments.WebhookEvent, error) {
		return payments.ParseStripeWebhook(payload, signature, secret)
	}
}

// PaymentWebhookHandlers receives asynchronous payment confirmations from the gateway.
type PaymentWebhookHandlers struct {
	payments services.PaymentService
	parse    WebhookParser
}

// NewPaymentWebhookHandlers constructs webhook handlers.
func NewPaymentWebhookHandlers(payments services.PaymentService, parse WebhookParser) *PaymentWebhookHandlers {
	return &PaymentWebhookHandlers{payments: payments, parse: parse}
}

// Routes registers the /webhooks endpoints.
func (h *PaymentWebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/payments/stripe", h.stripe)
}

type webhookAck struct {
	Received bool   `json:"received"`
	EventID  string `json:"eventId,omitempty"`
}

func (h *PaymentWebhookHandlers) stripe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil || h.parse == nil {
		httpx.WriteError(ctx, w, unavailable("payment"))
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "failed to read body", http.StatusBadRequest))
		return
	}
	if len(payload) > maxWebhookBody {
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "webhook payload too large", http.StatusRequestEntityTooLarge))
		return
	}

	event, err := h.parse(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		code := "invalid_payload"
		if errors.Is(err, payments.ErrWebhookSignature) {
			code = "invalid_signature"
		}
		httpx.WriteError(ctx, w, httpx.NewError(code, "webhook could not be verified", http.StatusBadRequest))
		return
	}
	if event.Type == payments.WebhookIgnored {
		httpx.WriteJSON(w, http.StatusOK, webhookAck{Received: true, EventID: event.ID})
		return
	}

	// A non-2xx makes the gateway redeliver, so only infrastructure failures surface here.
	if err := h.payments.RecordWebhookEvent(ctx, event); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, webhookAck{Received: true, EventID: event.ID})
}
