package service

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// StartSubscriptionWorker periodically deactivates premium statuses whose
// expiry has passed. It blocks until the context is cancelled.
func (s *Service) StartSubscriptionWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Subscription worker started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Subscription worker stopped")
			return
		case <-ticker.C:
			n, err := s.SweepExpiredSubscriptions(ctx)
			if err != nil {
				s.logger.Errorf("Subscription sweep finished with errors: %v", err)
			}
			if n > 0 {
				s.logger.Infof("Marked %d subscriptions as expired", n)
			}
		}
	}
}

// SweepExpiredSubscriptions marks every expired premium status inactive and,
// when billing is configured, re-reads the user's entitlements in case the
// subscription was renewed. It returns how many statuses were deactivated
// and the combined error of every user that failed.
func (s *Service) SweepExpiredSubscriptions(ctx context.Context) (int, error) {
	now := s.now()

	expired, err := s.subscriptions.GetExpiredPremium(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to get expired subscriptions: %w", err)
	}

	var result *multierror.Error
	deactivated := 0
	for _, status := range expired {
		status.IsActive = false
		status.CheckedAt = now
		if err := s.subscriptions.Save(ctx, status); err != nil {
			result = multierror.Append(result, fmt.Errorf("user %d: %w", status.UserID, err))
			continue
		}
		deactivated++
		s.metrics.SubscriptionExpired()

		if s.BillingEnabled() {
			if _, err := s.RefreshSubscription(ctx, status.UserID); err != nil {
				result = multierror.Append(result, fmt.Errorf("user %d: %w", status.UserID, err))
			}
		}
	}

	return deactivated, result.ErrorOrNil()
}
