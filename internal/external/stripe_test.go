package external

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v82"
)

// recordedRequest captures the parts of a request the tests assert on.
type recordedRequest struct {
	method string
	path   string
	header http.Header
	form   url.Values
}

// newStripeTestServer runs a fake Stripe API that records each request and
// serves the given response body with the given status.
func newStripeTestServer(t *testing.T, status int, responseBody string) (*httptest.Server, *[]recordedRequest) {
	t.Helper()

	var requests []recordedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		requests = append(requests, recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			header: r.Header.Clone(),
			form:   r.PostForm,
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(responseBody))
	}))
	t.Cleanup(server.Close)

	return server, &requests
}

func newTestStripeClient(serverURL string) *StripeClient {
	return NewStripeClient(&http.Client{}, StripeClientConfig{
		SecretKey: "sk_test_abc",
		BaseURL:   serverURL,
	})
}

func TestStripeClient_RetrievePlan(t *testing.T) {
	server, requests := newStripeTestServer(t, http.StatusOK,
		`{"id":"plan_basic","object":"plan","amount":500}`)
	client := newTestStripeClient(server.URL)

	plan, err := client.RetrievePlan(context.Background(), "plan_basic")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"plan_basic","object":"plan","amount":500}`, string(plan))

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, http.MethodGet, req.method)
	assert.Equal(t, "/v1/plans/plan_basic", req.path)
	assert.Equal(t, "Bearer sk_test_abc", req.header.Get("Authorization"))
	assert.Equal(t, stripe.APIVersion, req.header.Get("Stripe-Version"))
}

func TestStripeClient_CreateCustomer(t *testing.T) {
	server, requests := newStripeTestServer(t, http.StatusOK,
		`{"id":"cus_123","object":"customer","email":"jenny@example.com"}`)
	client := newTestStripeClient(server.URL)

	customer, err := client.CreateCustomer(context.Background(), "Jenny Rosen", "jenny@example.com")
	require.NoError(t, err)
	assert.Equal(t, "cus_123", customer.ID)
	assert.JSONEq(t, `{"id":"cus_123","object":"customer","email":"jenny@example.com"}`, string(customer.Raw))

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/v1/customers", req.path)
	assert.Equal(t, "Jenny Rosen", req.form.Get("name"))
	assert.Equal(t, "jenny@example.com", req.form.Get("email"))
	assert.Equal(t, "application/x-www-form-urlencoded", req.header.Get("Content-Type"))
	assert.NotEmpty(t, req.header.Get("Idempotency-Key"))
}

func TestStripeClient_CreateSetupIntent(t *testing.T) {
	server, requests := newStripeTestServer(t, http.StatusOK,
		`{"id":"seti_456","object":"setup_intent","client_secret":"seti_456_secret"}`)
	client := newTestStripeClient(server.URL)

	intent, err := client.CreateSetupIntent(context.Background(), "cus_123")
	require.NoError(t, err)
	assert.Equal(t, "seti_456", intent.ID)
	assert.Equal(t, "seti_456_secret", intent.ClientSecret)

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, "/v1/setup_intents", req.path)
	assert.Equal(t, "cus_123", req.form.Get("customer"))
	assert.Equal(t, "card", req.form.Get("payment_method_types[0]"))
	assert.Equal(t, "au_becs_debit", req.form.Get("payment_method_types[1]"))
}

func TestStripeClient_UpdateCustomerDefaultPaymentMethod(t *testing.T) {
	server, requests := newStripeTestServer(t, http.StatusOK,
		`{"id":"cus_123","object":"customer"}`)
	client := newTestStripeClient(server.URL)

	err := client.UpdateCustomerDefaultPaymentMethod(context.Background(), "cus_123", "pm_abc")
	require.NoError(t, err)

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, "/v1/customers/cus_123", req.path)
	assert.Equal(t, "pm_abc", req.form.Get("invoice_settings[default_payment_method]"))
}

func TestStripeClient_CreateSubscription(t *testing.T) {
	server, requests := newStripeTestServer(t, http.StatusOK,
		`{"id":"sub_789","object":"subscription","status":"active"}`)
	client := newTestStripeClient(server.URL)

	sub, err := client.CreateSubscription(context.Background(), "cus_123", "plan_basic")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"sub_789","object":"subscription","status":"active"}`, string(sub))

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, "/v1/subscriptions", req.path)
	assert.Equal(t, "cus_123", req.form.Get("customer"))
	assert.Equal(t, "plan_basic", req.form.Get("items[0][plan]"))
	assert.Equal(t, "latest_invoice.payment_intent", req.form.Get("expand[0]"))
}

func TestStripeClient_ErrorMessageSurfaced(t *testing.T) {
	server, _ := newStripeTestServer(t, http.StatusPaymentRequired,
		`{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`)
	client := newTestStripeClient(server.URL)

	_, err := client.CreateCustomer(context.Background(), "Jenny Rosen", "jenny@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Your card was declined.")
}

func TestStripeClient_NonJSONErrorBody(t *testing.T) {
	server, _ := newStripeTestServer(t, http.StatusBadRequest, `oops`)
	client := newTestStripeClient(server.URL)

	_, err := client.RetrievePlan(context.Background(), "plan_basic")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}
