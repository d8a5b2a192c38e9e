package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Kerhoff/cooloff/internal/models"
	"github.com/sirupsen/logrus"
)

// Subscription returns the user's mirrored subscription status. Users never
// seen by the billing provider are on the free tier. An expired premium
// status is reported as inactive until the next refresh or sweep.
func (s *Service) Subscription(ctx context.Context, userID int64) (*models.SubscriptionStatus, error) {
	status, err := s.subscriptions.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription status: %w", err)
	}
	if status == nil {
		return models.FreeSubscription(userID), nil
	}
	if status.IsActive && status.IsExpired(s.now()) {
		status.IsActive = false
	}
	return status, nil
}

// RefreshSubscription re-reads the user's entitlements from the billing
// provider and stores the resulting status. Users without a linked billing
// customer are mirrored as free.
func (s *Service) RefreshSubscription(ctx context.Context, userID int64) (*models.SubscriptionStatus, error) {
	if s.entitlements == nil {
		return nil, ErrBillingDisabled
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var entitlements []models.Entitlement
	if user.BillingCustomerID != nil {
		entitlements, err = s.entitlements.Entitlements(ctx, *user.BillingCustomerID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch entitlements: %w", err)
		}
	}

	status := models.StatusFromEntitlements(userID, entitlements, now)
	if err := s.subscriptions.Save(ctx, status); err != nil {
		return nil, fmt.Errorf("failed to save subscription status: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"tier":    status.Tier,
		"premium": status.IsPremium(now),
	}).Info("Subscription status refreshed")

	return status, nil
}

// RefreshSubscriptionByCustomer refreshes whichever user is linked to the
// billing customer. Used by provider webhooks.
func (s *Service) RefreshSubscriptionByCustomer(ctx context.Context, customerID string) (*models.SubscriptionStatus, error) {
	user, err := s.users.GetByBillingCustomerID(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup user by billing customer: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return s.RefreshSubscription(ctx, user.ID)
}

// LinkBillingCustomer attaches a billing customer to the user and, when
// billing is configured, immediately mirrors its entitlements.
func (s *Service) LinkBillingCustomer(ctx context.Context, userID int64, customerID string) (*models.User, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, errors.New("billing customer ID is required")
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.BillingCustomerID = &customerID
	user, err = s.users.Update(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to link billing customer: %w", err)
	}

	if s.BillingEnabled() {
		if _, err := s.RefreshSubscription(ctx, userID); err != nil {
			s.logger.WithError(err).WithField("user_id", userID).Warn("Failed to refresh subscription after linking")
		}
	}

	return user, nil
}
