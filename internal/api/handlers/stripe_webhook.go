// Webhook receiver for asynchronous Stripe events.
//
// The route is NOT behind auth middleware; it is called directly by Stripe.
// Authentication is the HMAC signature on the Stripe-Signature header, and
// every verification failure is collapsed to a bare 400 with an empty body
// so the response never reveals which check failed. Once an event is
// authenticated, the response is always 200 -- dispatch problems are internal
// and must not trigger provider retries.
package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"subsignup/internal/core"
	"subsignup/internal/external"
	"subsignup/internal/webhook"
)

// maxWebhookBodySize is the maximum allowed size of a webhook payload (64 KB).
// Stripe payloads are small; the limit protects against abuse.
const maxWebhookBodySize = 64 * 1024

// osStdout is the default sink for the subscription-created dispatch branch.
var osStdout io.Writer = os.Stdout

// EventVerifier authenticates a raw webhook payload against its signature
// header. Implemented by webhook.Verifier; tests inject failures.
type EventVerifier interface {
	Verify(payload []byte, header string) error
}

// StripeWebhookHandler verifies and dispatches Stripe webhook events.
type StripeWebhookHandler struct {
	verifier EventVerifier
	logger   *slog.Logger

	// stdout sink for the subscription-created dispatch branch; overridable
	// in tests.
	out io.Writer
}

// NewStripeWebhookHandler creates a StripeWebhookHandler.
func NewStripeWebhookHandler(verifier EventVerifier, logger *slog.Logger) *StripeWebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeWebhookHandler{
		verifier: verifier,
		logger:   logger,
	}
}

// RegisterRoutes mounts the webhook endpoint.
func (h *StripeWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhook", h.Handle)
}

// Handle processes an incoming webhook request:
//  1. Read the raw body, exactly as received -- the MAC covers these bytes.
//  2. Verify the Stripe-Signature header; any failure answers 400, empty body.
//  3. Decode the event envelope and resolve the typed inner object.
//  4. Dispatch by event type.
//  5. Answer 200, empty body.
//
// Envelope decode failures after successful verification still answer 200:
// the event was authentic, and a 4xx/5xx would only make Stripe retry a
// payload this implementation cannot parse.
func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.verifier.Verify(payload, r.Header.Get("Stripe-Signature")); err != nil {
		// Log the reason internally; the response stays opaque.
		h.logger.WarnContext(r.Context(), "webhook signature verification failed", "error", err)
		core.CountWebhookVerifyFailure()
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	event, err := webhook.ParseEvent(payload)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to decode verified webhook event", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	h.logger.InfoContext(r.Context(), "processing stripe webhook event",
		"event_id", event.ID,
		"event_type", event.Type,
	)
	core.CountWebhookEvent(event.Type)

	h.dispatch(r.Context(), event)

	w.WriteHeader(http.StatusOK)
}

// dispatch routes a verified event by type. Most recognized events are
// deliberate no-ops: the provider is the source of truth and this service
// keeps no local state to reconcile. The individual branches are the
// extension point for richer handling.
func (h *StripeWebhookHandler) dispatch(ctx context.Context, event *webhook.Event) {
	switch event.Type {
	case external.EventCustomerCreated:
		if customer, ok := event.Object.(*webhook.Customer); ok {
			h.logger.InfoContext(ctx, "customer created via webhook", "customer_id", customer.ID)
		}

	case external.EventCustomerUpdated:
		// No local state to update.

	case external.EventSetupIntentCreated:
		// Payment-method collection is driven by the browser flow.

	case external.EventInvoiceUpcoming,
		external.EventInvoiceCreated,
		external.EventInvoiceFinalized,
		external.EventInvoicePaymentSucceeded,
		external.EventInvoicePaymentFailed:
		// Invoice lifecycle is handled entirely by the provider.

	case external.EventSubscriptionCreated:
		h.logSubscriptionCreated(ctx, event)

	default:
		h.logger.InfoContext(ctx, "ignoring unhandled webhook event type", "event_type", event.Type)
	}
}

// logSubscriptionCreated writes the subscription object as JSON to stdout.
func (h *StripeWebhookHandler) logSubscriptionCreated(ctx context.Context, event *webhook.Event) {
	out := h.out
	if out == nil {
		out = osStdout
	}

	fmt.Fprintf(out, "%s\n", event.Data.Object)

	if sub, ok := event.Object.(*webhook.Subscription); ok {
		h.logger.InfoContext(ctx, "subscription created via webhook",
			"subscription_id", sub.ID,
			"customer_id", sub.CustomerID,
			"status", sub.Status,
		)
	}
}
