package billing

import (
	"errors"
	"fmt"

	stripe "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

var ErrNoCustomer = errors.New("webhook event carries no customer")

// subscriptionEvents change what a customer is entitled to
var subscriptionEvents = map[stripe.EventType]bool{
	"checkout.session.completed":    true,
	"customer.subscription.created": true,
	"customer.subscription.updated": true,
	"customer.subscription.deleted": true,
	"invoice.paid":                  true,
	"invoice.payment_failed":        true,
}

// WebhookEvent is the part of a Stripe event the service acts on
type WebhookEvent struct {
	ID         string
	Type       string
	CustomerID string
}

// AffectsSubscription reports whether the event may change an entitlement
func (e *WebhookEvent) AffectsSubscription() bool {
	return subscriptionEvents[stripe.EventType(e.Type)]
}

// WebhookVerifier checks Stripe-Signature headers against the endpoint secret
type WebhookVerifier struct {
	secret string
}

// NewWebhookVerifier returns nil when no secret is configured
func NewWebhookVerifier(secret string) *WebhookVerifier {
	if secret == "" {
		return nil
	}
	return &WebhookVerifier{secret: secret}
}

// Parse verifies the signature and extracts the event's customer. Events of
// other API versions are accepted; only the customer reference is read.
func (v *WebhookVerifier) Parse(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid webhook signature: %w", err)
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data != nil {
		out.CustomerID = customerFrom(event.Data.Object)
	}
	if out.AffectsSubscription() && out.CustomerID == "" {
		return out, ErrNoCustomer
	}
	return out, nil
}

// customerFrom reads the customer reference, which Stripe sends either as an
// ID or as an expanded object.
func customerFrom(object map[string]interface{}) string {
	switch c := object["customer"].(type) {
	case string:
		return c
	case map[string]interface{}:
		if id, ok := c["id"].(string); ok {
			return id
		}
	}
	if object["object"] == "customer" {
		if id, ok := object["id"].(string); ok {
			return id
		}
	}
	return ""
}
