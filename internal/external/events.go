package external

// Stripe webhook event types recognized by the dispatcher. Everything else
// falls through to a default no-op branch.
const (
	EventCustomerCreated         = "customer.created"
	EventCustomerUpdated         = "customer.updated"
	EventSetupIntentCreated      = "setup_intent.created"
	EventInvoiceUpcoming         = "invoice.upcoming"
	EventInvoiceCreated          = "invoice.created"
	EventInvoiceFinalized        = "invoice.finalized"
	EventInvoicePaymentSucceeded = "invoice.payment_succeeded"
	EventInvoicePaymentFailed    = "invoice.payment_failed"
	EventSubscriptionCreated     = "customer.subscription.created"
)
