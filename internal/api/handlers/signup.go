// Package handlers contains the HTTP handler implementations for the signup
// service: the three signup endpoints that orchestrate Stripe calls, and the
// webhook receiver.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"subsignup/internal/core"
	"subsignup/internal/external"
)

// BillingService abstracts the Stripe operations used by the signup flow.
// The concrete implementation is external.StripeClient; tests inject mocks.
type BillingService interface {
	// RetrievePlan fetches the full plan object for the configured plan.
	RetrievePlan(ctx context.Context, planID string) (json.RawMessage, error)

	// CreateCustomer creates a customer with the given name and email.
	CreateCustomer(ctx context.Context, name, email string) (external.Customer, error)

	// UpdateCustomerDefaultPaymentMethod attaches the payment method as the
	// customer's default for invoices.
	UpdateCustomerDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error

	// CreateSetupIntent prepares payment-method collection for future
	// off-session charges against the customer.
	CreateSetupIntent(ctx context.Context, customerID string) (external.SetupIntent, error)

	// CreateSubscription subscribes the customer to the plan.
	CreateSubscription(ctx context.Context, customerID, planID string) (json.RawMessage, error)
}

// CreateCustomerRequest is the body for POST /create-customer.
type CreateCustomerRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required"`
}

// CreateSubscriptionRequest is the body for POST /subscription.
type CreateSubscriptionRequest struct {
	CustomerID      string `json:"customerId" validate:"required"`
	PaymentMethodID string `json:"paymentMethodId" validate:"required"`
}

// configResponse is the body for GET /config. Plan is the provider's plan
// object passed through unmodified.
type configResponse struct {
	PublishableKey string          `json:"publishableKey"`
	Plan           json.RawMessage `json:"plan"`
}

// createCustomerResponse is the body for POST /create-customer. Both fields
// are provider objects passed through unmodified; the setup intent carries
// the client_secret the browser needs to confirm payment-method collection.
type createCustomerResponse struct {
	Customer    json.RawMessage `json:"customer"`
	SetupIntent json.RawMessage `json:"setupIntent"`
}

// SignupHandler implements the signup endpoints. Each handler is a short
// orchestration of BillingService calls; no state is held between requests.
type SignupHandler struct {
	billing        BillingService
	publishableKey string
	planID         string
	validator      *core.Validator
	logger         *slog.Logger
}

// NewSignupHandler creates a SignupHandler.
func NewSignupHandler(
	billing BillingService,
	publishableKey string,
	planID string,
	validator *core.Validator,
	logger *slog.Logger,
) *SignupHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SignupHandler{
		billing:        billing,
		publishableKey: publishableKey,
		planID:         planID,
		validator:      validator,
		logger:         logger,
	}
}

// RegisterRoutes mounts the signup endpoints.
func (h *SignupHandler) RegisterRoutes(r chi.Router) {
	r.Get("/config", h.HandleConfig)
	r.Post("/create-customer", h.HandleCreateCustomer)
	r.Post("/subscription", h.HandleCreateSubscription)
}

// HandleConfig returns the publishable key and the configured plan so the
// client can bootstrap the payment widget. Pure read; no side effects.
func (h *SignupHandler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	plan, err := h.billing.RetrievePlan(r.Context(), h.planID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, configResponse{
		PublishableKey: h.publishableKey,
		Plan:           plan,
	})
}

// HandleCreateCustomer creates a customer and then a setup intent referencing
// it. The setup intent must come second so it can reference the customer; if
// it fails, the customer is left in place (Stripe tolerates orphan customers
// and no local cleanup is required).
func (h *SignupHandler) HandleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		core.Error(w, r, err)
		return
	}

	customer, err := h.billing.CreateCustomer(r.Context(), req.Name, req.Email)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	intent, err := h.billing.CreateSetupIntent(r.Context(), customer.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "customer created",
		"customer_id", customer.ID,
		"setup_intent_id", intent.ID,
	)

	core.JSON(w, r, http.StatusOK, createCustomerResponse{
		Customer:    customer.Raw,
		SetupIntent: intent.Raw,
	})
}

// HandleCreateSubscription attaches the default payment method and then
// creates the subscription. The payment method must be attached first so the
// first invoice can be charged; if attaching fails, subscription creation is
// not attempted.
func (h *SignupHandler) HandleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req CreateSubscriptionRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.billing.UpdateCustomerDefaultPaymentMethod(r.Context(), req.CustomerID, req.PaymentMethodID); err != nil {
		core.Error(w, r, err)
		return
	}

	subscription, err := h.billing.CreateSubscription(r.Context(), req.CustomerID, h.planID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "subscription created",
		"customer_id", req.CustomerID,
	)

	core.JSON(w, r, http.StatusOK, subscription)
}
