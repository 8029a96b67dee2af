package external

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"subsignup/internal/types"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v82"
)

// stripeAPIBase is the default Stripe API base URL.
// Overridable in tests via StripeClientConfig.BaseURL.
const stripeAPIBase = "https://api.stripe.com"

// setupIntentPaymentMethodTypes are the payment method kinds collected during
// signup: cards plus Australian BECS direct debit.
var setupIntentPaymentMethodTypes = []string{"card", "au_becs_debit"}

// StripeClientConfig holds the configuration for creating a StripeClient.
type StripeClientConfig struct {
	SecretKey types.SecretString
	BaseURL   string // Override for testing; defaults to stripeAPIBase
	Logger    *slog.Logger
}

// StripeClient makes direct HTTP calls to the Stripe REST API through
// BaseClient, so every request inherits the resilience layer (circuit
// breaker, retries, error mapping) and tests can point it at an httptest
// server. Responses are returned as opaque JSON blobs plus the few fields
// the orchestration needs, keeping the service decoupled from Stripe's
// object schema.
type StripeClient struct {
	base      *BaseClient
	secretKey types.SecretString
	baseURL   string
	logger    *slog.Logger
}

// NewStripeClient creates a new StripeClient. The httpClient timeout bounds
// each provider call (30 seconds in production wiring).
func NewStripeClient(httpClient *http.Client, cfg StripeClientConfig) *StripeClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = stripeAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		httpClient,
		"stripe",
		DefaultRetryPolicy(),
		"subsignup/1.0",
	)

	return &StripeClient{
		base:      base,
		secretKey: cfg.SecretKey,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		logger:    logger,
	}
}

// Customer is a created Stripe customer: its ID plus the full provider
// object as received.
type Customer struct {
	ID  string
	Raw json.RawMessage
}

// SetupIntent is a created Stripe setup intent. ClientSecret is what the
// browser uses to confirm payment-method collection.
type SetupIntent struct {
	ID           string
	ClientSecret string
	Raw          json.RawMessage
}

// ---------------------------------------------------------------------------
// BillingService Implementation
// ---------------------------------------------------------------------------

// RetrievePlan fetches the full plan object for the given plan ID.
func (s *StripeClient) RetrievePlan(ctx context.Context, planID string) (json.RawMessage, error) {
	resp, err := s.doGet(ctx, "/v1/plans/"+url.PathEscape(planID))
	if err != nil {
		return nil, s.wrapStripeError("RetrievePlan", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, s.handleErrorResponse(resp, "RetrievePlan")
	}

	return readRawBody(resp, "RetrievePlan")
}

// CreateCustomer creates a Stripe customer with the given name and email.
func (s *StripeClient) CreateCustomer(ctx context.Context, name, email string) (Customer, error) {
	params := url.Values{}
	params.Set("name", name)
	params.Set("email", email)

	resp, err := s.doPost(ctx, "/v1/customers", params)
	if err != nil {
		return Customer{}, s.wrapStripeError("CreateCustomer", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Customer{}, s.handleErrorResponse(resp, "CreateCustomer")
	}

	raw, err := readRawBody(resp, "CreateCustomer")
	if err != nil {
		return Customer{}, err
	}

	var ident stripeIdentity
	if err := json.Unmarshal(raw, &ident); err != nil {
		return Customer{}, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to decode Stripe customer creation response",
			err,
		)
	}

	return Customer{ID: ident.ID, Raw: raw}, nil
}

// UpdateCustomerDefaultPaymentMethod sets the customer's
// invoice_settings.default_payment_method, which the first subscription
// invoice charges against.
func (s *StripeClient) UpdateCustomerDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	params := url.Values{}
	params.Set("invoice_settings[default_payment_method]", paymentMethodID)

	resp, err := s.doPost(ctx, "/v1/customers/"+url.PathEscape(customerID), params)
	if err != nil {
		return s.wrapStripeError("UpdateCustomerDefaultPaymentMethod", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return s.handleErrorResponse(resp, "UpdateCustomerDefaultPaymentMethod")
	}

	return nil
}

// CreateSetupIntent creates a setup intent tied to an existing customer for
// future off-session use of the collected payment method.
func (s *StripeClient) CreateSetupIntent(ctx context.Context, customerID string) (SetupIntent, error) {
	params := url.Values{}
	params.Set("customer", customerID)
	for i, pmType := range setupIntentPaymentMethodTypes {
		params.Set("payment_method_types["+strconv.Itoa(i)+"]", pmType)
	}

	resp, err := s.doPost(ctx, "/v1/setup_intents", params)
	if err != nil {
		return SetupIntent{}, s.wrapStripeError("CreateSetupIntent", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return SetupIntent{}, s.handleErrorResponse(resp, "CreateSetupIntent")
	}

	raw, err := readRawBody(resp, "CreateSetupIntent")
	if err != nil {
		return SetupIntent{}, err
	}

	var intent stripeSetupIntent
	if err := json.Unmarshal(raw, &intent); err != nil {
		return SetupIntent{}, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to decode Stripe setup intent response",
			err,
		)
	}

	return SetupIntent{ID: intent.ID, ClientSecret: intent.ClientSecret, Raw: raw}, nil
}

// CreateSubscription subscribes the customer to the given plan with a single
// item, expanding the first invoice's payment intent so the client can
// complete any required payment confirmation.
func (s *StripeClient) CreateSubscription(ctx context.Context, customerID, planID string) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("customer", customerID)
	params.Set("items[0][plan]", planID)
	params.Set("expand[0]", "latest_invoice.payment_intent")

	resp, err := s.doPost(ctx, "/v1/subscriptions", params)
	if err != nil {
		return nil, s.wrapStripeError("CreateSubscription", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, s.handleErrorResponse(resp, "CreateSubscription")
	}

	return readRawBody(resp, "CreateSubscription")
}

// ---------------------------------------------------------------------------
// HTTP Helpers
// ---------------------------------------------------------------------------

// doGet performs an authenticated GET request to the Stripe API.
func (s *StripeClient) doGet(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	s.setAuthHeaders(req)

	return s.base.Do(req)
}

// doPost performs an authenticated POST with a form-encoded body. Every POST
// carries a fresh Idempotency-Key so the resilience layer may retry it
// without duplicating the provider-side effect.
func (s *StripeClient) doPost(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Idempotency-Key", uuid.NewString())
	s.setAuthHeaders(req)

	return s.base.Do(req)
}

// setAuthHeaders sets the Stripe API authentication and version headers.
func (s *StripeClient) setAuthHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.secretKey.Unmask())
	req.Header.Set("Stripe-Version", stripe.APIVersion)
}

// readRawBody reads a successful response body as an opaque JSON blob.
func readRawBody(resp *http.Response, operation string) (json.RawMessage, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamStripe,
			operation+": failed to read Stripe response body",
			err,
		)
	}
	return json.RawMessage(body), nil
}

// ---------------------------------------------------------------------------
// Error Handling
// ---------------------------------------------------------------------------

// stripeErrorResponse represents the JSON error body returned by the Stripe API.
type stripeErrorResponse struct {
	Error stripeErrorBody `json:"error"`
}

type stripeErrorBody struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Param   string `json:"param"`
}

// stripeIdentity extracts the id from any Stripe object.
type stripeIdentity struct {
	ID string `json:"id"`
}

type stripeSetupIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

// handleErrorResponse reads a Stripe error response and maps it to an
// AppError carrying the provider's message, which the signup endpoints
// surface to the client.
func (s *StripeClient) handleErrorResponse(resp *http.Response, operation string) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamStripe,
			operation+": Stripe returned status "+strconv.Itoa(resp.StatusCode)+" and the response body was unreadable",
			readErr,
		)
	}

	var stripeErr stripeErrorResponse
	if jsonErr := json.Unmarshal(body, &stripeErr); jsonErr != nil || stripeErr.Error.Message == "" {
		return types.NewAppError(
			types.ErrCodeUpstreamStripe,
			operation+": Stripe returned status "+strconv.Itoa(resp.StatusCode),
			jsonErr,
		)
	}

	s.logger.Warn("stripe call failed",
		"operation", operation,
		"status", resp.StatusCode,
		"stripe_code", stripeErr.Error.Code,
		"param", stripeErr.Error.Param,
	)

	return types.NewAppErrorWithDetails(
		types.ErrCodeUpstreamStripe,
		stripeErr.Error.Message,
		nil,
		map[string]any{
			"stripe_type": stripeErr.Error.Type,
			"stripe_code": stripeErr.Error.Code,
		},
	)
}

// wrapStripeError wraps a BaseClient transport error with operation context.
func (s *StripeClient) wrapStripeError(operation string, err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return types.NewAppError(
		types.ErrCodeUpstreamStripe,
		operation+": Stripe request failed",
		err,
	)
}
