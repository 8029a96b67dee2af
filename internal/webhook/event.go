package webhook

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is the decoded webhook envelope. Data.Object is kept as raw JSON;
// Object holds the typed decode of the inner object when its "object"
// discriminator is one of the recognized kinds, and nil otherwise.
type Event struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Created int64     `json:"created"`
	Data    EventData `json:"data"`

	// Object is the typed inner object: *Customer, *Invoice, *Subscription
	// or *SetupIntent. Nil when the discriminator is unrecognized; the raw
	// JSON remains available in Data.Object.
	Object any `json:"-"`
}

// EventData wraps the polymorphic event payload.
type EventData struct {
	Object json.RawMessage `json:"object"`
}

// CreatedAt returns the event creation timestamp.
func (e *Event) CreatedAt() time.Time {
	return time.Unix(e.Created, 0).UTC()
}

// Customer is the subset of a Stripe customer object used by dispatch.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Invoice is the subset of a Stripe invoice object used by dispatch.
type Invoice struct {
	ID           string `json:"id"`
	CustomerID   string `json:"customer"`
	Subscription string `json:"subscription"`
	Status       string `json:"status"`
	AmountDue    int64  `json:"amount_due"`
}

// Subscription is the subset of a Stripe subscription object used by dispatch.
type Subscription struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer"`
	Status     string `json:"status"`
}

// SetupIntent is the subset of a Stripe setup intent object used by dispatch.
type SetupIntent struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer"`
	Status     string `json:"status"`
}

// objectDiscriminator reads only the "object" field of the inner payload.
type objectDiscriminator struct {
	Object string `json:"object"`
}

// ParseEvent decodes a verified payload into an Event and resolves the typed
// inner object by its "object" discriminator.
//
// A malformed envelope is an error. A malformed or unrecognized inner object
// is not: verification already established authenticity, so the event is
// still returned with Object nil and the raw JSON intact, and the caller
// dispatches on Type alone.
func ParseEvent(payload []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("webhook: decoding event envelope: %w", err)
	}

	event.Object = decodeObject(event.Data.Object)
	return &event, nil
}

// decodeObject resolves the typed inner object, or nil when the kind is
// unknown or the inner JSON does not decode.
func decodeObject(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}

	var disc objectDiscriminator
	if err := json.Unmarshal(raw, &disc); err != nil {
		return nil
	}

	switch disc.Object {
	case "customer":
		var c Customer
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil
		}
		return &c
	case "invoice":
		var i Invoice
		if err := json.Unmarshal(raw, &i); err != nil {
			return nil
		}
		return &i
	case "subscription":
		var s Subscription
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		return &s
	case "setup_intent":
		var si SetupIntent
		if err := json.Unmarshal(raw, &si); err != nil {
			return nil
		}
		return &si
	default:
		return nil
	}
}
