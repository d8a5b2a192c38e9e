// Package billing reads premium entitlements from Stripe.
package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Kerhoff/cooloff/internal/models"
	"github.com/sirupsen/logrus"
	stripe "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

var ErrInvalidAPIKey = errors.New("stripe rejected the API key")

// entitledStatuses are the Stripe subscription states that still grant access
var entitledStatuses = map[stripe.SubscriptionStatus]bool{
	stripe.SubscriptionStatusActive:   true,
	stripe.SubscriptionStatusTrialing: true,
}

// StripeSource lists a customer's Stripe subscriptions and reports those on
// the premium price as premium entitlements.
type StripeSource struct {
	sc             *client.API
	premiumPriceID string
	logger         *logrus.Logger
}

// NewStripeSource creates a source using secretKey. An empty premiumPriceID
// treats every entitled subscription as premium.
func NewStripeSource(secretKey, premiumPriceID string, logger *logrus.Logger) *StripeSource {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &StripeSource{
		sc:             sc,
		premiumPriceID: premiumPriceID,
		logger:         logger,
	}
}

// Entitlements implements service.EntitlementSource
func (s *StripeSource) Entitlements(ctx context.Context, customerID string) ([]models.Entitlement, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Context = ctx

	var entitlements []models.Entitlement
	it := s.sc.Subscriptions.List(params)
	for it.Next() {
		if e, ok := s.entitlementFor(it.Subscription()); ok {
			entitlements = append(entitlements, e)
		}
	}
	if err := it.Err(); err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && (se.HTTPStatusCode == 401 || strings.Contains(strings.ToLower(se.Msg), "invalid api key")) {
			return nil, ErrInvalidAPIKey
		}
		return nil, fmt.Errorf("failed to list stripe subscriptions: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"customer":     customerID,
		"entitlements": len(entitlements),
	}).Debug("Fetched Stripe entitlements")

	return entitlements, nil
}

// entitlementFor maps one Stripe subscription to an entitlement. The current
// billing period end is the expiry.
func (s *StripeSource) entitlementFor(sub *stripe.Subscription) (models.Entitlement, bool) {
	if sub == nil || !entitledStatuses[sub.Status] || !s.coversPremium(sub) {
		return models.Entitlement{}, false
	}

	e := models.Entitlement{ProductID: models.PremiumProductID}
	if sub.StartDate > 0 {
		t := time.Unix(sub.StartDate, 0).UTC()
		e.PurchasedAt = &t
	}
	if sub.CurrentPeriodEnd > 0 {
		t := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		e.ExpiresAt = &t
	}
	return e, true
}

func (s *StripeSource) coversPremium(sub *stripe.Subscription) bool {
	if s.premiumPriceID == "" {
		return true
	}
	if sub.Items == nil {
		return false
	}
	for _, item := range sub.Items.Data {
		if item != nil && item.Price != nil && item.Price.ID == s.premiumPriceID {
			return true
		}
	}
	return false
}
