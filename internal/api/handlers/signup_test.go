package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"subsignup/internal/core"
	"subsignup/internal/external"
	"subsignup/internal/types"
)

// mockBillingService records calls and returns canned responses. Each call
// counter lets ordering tests assert which operations were attempted.
type mockBillingService struct {
	retrievePlanCalls       int
	createCustomerCalls     int
	updateDefaultPMCalls    int
	createSetupIntentCalls  int
	createSubscriptionCalls int

	lastName            string
	lastEmail           string
	lastCustomerID      string
	lastPaymentMethodID string
	lastPlanID          string

	planResult         json.RawMessage
	planErr            error
	customerResult     external.Customer
	customerErr        error
	updateErr          error
	setupIntentResult  external.SetupIntent
	setupIntentErr     error
	subscriptionResult json.RawMessage
	subscriptionErr    error
}

func (m *mockBillingService) RetrievePlan(_ context.Context, planID string) (json.RawMessage, error) {
	m.retrievePlanCalls++
	m.lastPlanID = planID
	return m.planResult, m.planErr
}

func (m *mockBillingService) CreateCustomer(_ context.Context, name, email string) (external.Customer, error) {
	m.createCustomerCalls++
	m.lastName = name
	m.lastEmail = email
	return m.customerResult, m.customerErr
}

func (m *mockBillingService) UpdateCustomerDefaultPaymentMethod(_ context.Context, customerID, paymentMethodID string) error {
	m.updateDefaultPMCalls++
	m.lastCustomerID = customerID
	m.lastPaymentMethodID = paymentMethodID
	return m.updateErr
}

func (m *mockBillingService) CreateSetupIntent(_ context.Context, customerID string) (external.SetupIntent, error) {
	m.createSetupIntentCalls++
	m.lastCustomerID = customerID
	return m.setupIntentResult, m.setupIntentErr
}

func (m *mockBillingService) CreateSubscription(_ context.Context, customerID, planID string) (json.RawMessage, error) {
	m.createSubscriptionCalls++
	m.lastCustomerID = customerID
	m.lastPlanID = planID
	return m.subscriptionResult, m.subscriptionErr
}

func newSignupHandler(billing BillingService) *SignupHandler {
	return NewSignupHandler(billing, "pk_test_123", "plan_basic", core.NewValidator(nil), nil)
}

func doSignupRequest(h *SignupHandler, method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	switch path {
	case "/config":
		h.HandleConfig(rr, req)
	case "/create-customer":
		h.HandleCreateCustomer(rr, req)
	case "/subscription":
		h.HandleCreateSubscription(rr, req)
	default:
		panic("unknown path " + path)
	}
	return rr
}

func TestHandleConfig(t *testing.T) {
	mock := &mockBillingService{
		planResult: json.RawMessage(`{"id":"plan_basic","amount":500,"currency":"usd"}`),
	}
	h := newSignupHandler(mock)

	rr := doSignupRequest(h, http.MethodGet, "/config", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	if mock.retrievePlanCalls != 1 {
		t.Errorf("expected 1 RetrievePlan call, got %d", mock.retrievePlanCalls)
	}
	if mock.lastPlanID != "plan_basic" {
		t.Errorf("expected plan lookup for %q, got %q", "plan_basic", mock.lastPlanID)
	}

	var resp struct {
		PublishableKey string          `json:"publishableKey"`
		Plan           json.RawMessage `json:"plan"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.PublishableKey != "pk_test_123" {
		t.Errorf("expected publishable key %q, got %q", "pk_test_123", resp.PublishableKey)
	}
	if !strings.Contains(string(resp.Plan), `"plan_basic"`) {
		t.Errorf("expected plan object in response, got %s", resp.Plan)
	}
}

func TestHandleConfig_PlanLookupError(t *testing.T) {
	mock := &mockBillingService{
		planErr: types.NewAppError(types.ErrCodeUpstreamStripe, "No such plan: plan_basic", nil),
	}
	h := newSignupHandler(mock)

	rr := doSignupRequest(h, http.MethodGet, "/config", "")

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, rr.Code)
	}

	var resp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp.Error.Message != "No such plan: plan_basic" {
		t.Errorf("expected provider message surfaced, got %q", resp.Error.Message)
	}
}

func TestHandleCreateCustomer(t *testing.T) {
	mock := &mockBillingService{
		customerResult: external.Customer{
			ID:  "cus_123",
			Raw: json.RawMessage(`{"id":"cus_123","object":"customer","email":"jenny@example.com"}`),
		},
		setupIntentResult: external.SetupIntent{
			ID:           "seti_456",
			ClientSecret: "seti_456_secret",
			Raw:          json.RawMessage(`{"id":"seti_456","object":"setup_intent","client_secret":"seti_456_secret"}`),
		},
	}
	h := newSignupHandler(mock)

	rr := doSignupRequest(h, http.MethodPost, "/create-customer",
		`{"name":"Jenny Rosen","email":"jenny@example.com"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	if mock.createCustomerCalls != 1 {
		t.Errorf("expected 1 CreateCustomer call, got %d", mock.createCustomerCalls)
	}
	if mock.lastName != "Jenny Rosen" || mock.lastEmail != "jenny@example.com" {
		t.Errorf("unexpected customer params: name=%q email=%q", mock.lastName, mock.lastEmail)
	}
	if mock.createSetupIntentCalls != 1 {
		t.Errorf("expected 1 CreateSetupIntent call, got %d", mock.createSetupIntentCalls)
	}
	if mock.lastCustomerID != "cus_123" {
		t.Errorf("expected setup intent for customer %q, got %q", "cus_123", mock.lastCustomerID)
	}

	var resp struct {
		Customer    json.RawMessage `json:"customer"`
		SetupIntent json.RawMessage `json:"setupIntent"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !strings.Contains(string(resp.Customer), `"cus_123"`) {
		t.Errorf("expected customer object in response, got %s", resp.Customer)
	}
	if !strings.Contains(string(resp.SetupIntent), `"seti_456_secret"`) {
		t.Errorf("expected setup intent client_secret in response, got %s", resp.SetupIntent)
	}
}

func TestHandleCreateCustomer_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{"email":"jenny@example.com"}`},
		{"missing email", `{"name":"Jenny Rosen"}`},
		{"empty body", `{}`},
		{"malformed json", `{"name":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockBillingService{}
			h := newSignupHandler(mock)

			rr := doSignupRequest(h, http.MethodPost, "/create-customer", tt.body)

			if rr.Code != http.StatusBadRequest {
				t.Errorf("expected status %d, got %d: %s", http.StatusBadRequest, rr.Code, rr.Body.String())
			}
			if mock.createCustomerCalls != 0 {
				t.Errorf("expected no CreateCustomer calls, got %d", mock.createCustomerCalls)
			}
		})
	}
}

func TestHandleCreateCustomer_SetupIntentFailure(t *testing.T) {
	mock := &mockBillingService{
		customerResult: external.Customer{ID: "cus_123", Raw: json.RawMessage(`{"id":"cus_123"}`)},
		setupIntentErr: types.NewAppError(types.ErrCodeUpstreamStripe, "setup intent rejected", errors.New("card_declined")),
	}
	h := newSignupHandler(mock)

	rr := doSignupRequest(h, http.MethodPost, "/create-customer",
		`{"name":"Jenny Rosen","email":"jenny@example.com"}`)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, rr.Code)
	}
	if mock.createCustomerCalls != 1 {
		t.Errorf("expected customer creation before the setup intent, got %d calls", mock.createCustomerCalls)
	}
}

func TestHandleCreateSubscription(t *testing.T) {
	mock := &mockBillingService{
		subscriptionResult: json.RawMessage(`{"id":"sub_789","object":"subscription","status":"active"}`),
	}
	h := newSignupHandler(mock)

	rr := doSignupRequest(h, http.MethodPost, "/subscription",
		`{"customerId":"cus_123","paymentMethodId":"pm_abc"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	if mock.updateDefaultPMCalls != 1 {
		t.Errorf("expected 1 UpdateCustomerDefaultPaymentMethod call, got %d", mock.updateDefaultPMCalls)
	}
	if mock.lastPaymentMethodID != "pm_abc" {
		t.Errorf("expected payment method %q, got %q", "pm_abc", mock.lastPaymentMethodID)
	}
	if mock.createSubscriptionCalls != 1 {
		t.Errorf("expected 1 CreateSubscription call, got %d", mock.createSubscriptionCalls)
	}
	if mock.lastPlanID != "plan_basic" {
		t.Errorf("expected subscription on plan %q, got %q", "plan_basic", mock.lastPlanID)
	}

	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["id"] != "sub_789" {
		t.Errorf("expected subscription object passed through, got %v", resp)
	}
}

func TestHandleCreateSubscription_AttachFailureSkipsCreate(t *testing.T) {
	mock := &mockBillingService{
		updateErr: types.NewAppError(types.ErrCodeUpstreamStripe, "No such payment method: pm_missing", nil),
	}
	h := newSignupHandler(mock)

	rr := doSignupRequest(h, http.MethodPost, "/subscription",
		`{"customerId":"cus_123","paymentMethodId":"pm_missing"}`)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, rr.Code)
	}
	if mock.createSubscriptionCalls != 0 {
		t.Errorf("expected no CreateSubscription calls after attach failure, got %d", mock.createSubscriptionCalls)
	}

	var resp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp.Error.Message != "No such payment method: pm_missing" {
		t.Errorf("expected provider message surfaced, got %q", resp.Error.Message)
	}
}

func TestHandleCreateSubscription_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing customerId", `{"paymentMethodId":"pm_abc"}`},
		{"missing paymentMethodId", `{"customerId":"cus_123"}`},
		{"empty body", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockBillingService{}
			h := newSignupHandler(mock)

			rr := doSignupRequest(h, http.MethodPost, "/subscription", tt.body)

			if rr.Code != http.StatusBadRequest {
				t.Errorf("expected status %d, got %d: %s", http.StatusBadRequest, rr.Code, rr.Body.String())
			}
			if mock.updateDefaultPMCalls != 0 || mock.createSubscriptionCalls != 0 {
				t.Errorf("expected no billing calls on validation failure")
			}
		})
	}
}
