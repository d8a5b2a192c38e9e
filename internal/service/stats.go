package service

import (
	"context"
	"fmt"

	"github.com/Kerhoff/cooloff/internal/models"
	"github.com/Kerhoff/cooloff/internal/repository"
)

// Stats recomputes the user's statistics from all their items and stores the
// snapshot. When the items cannot be loaded the last stored snapshot is
// returned instead, if there is one.
func (s *Service) Stats(ctx context.Context, userID int64) (*models.UserStats, error) {
	stats, err := s.recomputeStats(ctx, userID)
	if err == nil {
		return stats, nil
	}

	snapshot, snapErr := s.stats.GetByUserID(ctx, userID)
	if snapErr != nil || snapshot == nil {
		return nil, err
	}
	s.logger.WithError(err).WithField("user_id", userID).Warn("Serving stored statistics snapshot")
	return snapshot, nil
}

func (s *Service) recomputeStats(ctx context.Context, userID int64) (*models.UserStats, error) {
	items, err := s.items.GetByUserID(ctx, userID, repository.WishItemFilters{})
	if err != nil {
		return nil, fmt.Errorf("failed to load items for statistics: %w", err)
	}

	stats := models.ComputeStats(userID, items, s.now())

	if err := s.stats.Save(ctx, stats); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("Failed to persist statistics")
	}

	return stats, nil
}

// refreshStats runs after every mutation. The mutation already succeeded, so
// errors are only logged.
func (s *Service) refreshStats(ctx context.Context, userID int64) {
	if _, err := s.recomputeStats(ctx, userID); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("Failed to refresh statistics")
	}
}
