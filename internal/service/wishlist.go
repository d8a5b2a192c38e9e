package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Kerhoff/cooloff/internal/models"
	"github.com/Kerhoff/cooloff/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AddItemInput carries everything a user supplies when registering an item
type AddItemInput struct {
	Name        string `json:"name" validate:"required,max=200"`
	Price       int64  `json:"price" validate:"gte=0"`
	PurchaseURL string `json:"purchase_url,omitempty" validate:"omitempty,url,max=2048"`
	Memo        string `json:"memo,omitempty" validate:"max=1000"`
	ImageData   []byte `json:"image_data,omitempty"`
}

// ItemFilter selects a view over a user's items
type ItemFilter string

const (
	ItemFilterAll       ItemFilter = "all"
	ItemFilterWaiting   ItemFilter = "waiting"
	ItemFilterCompleted ItemFilter = "completed"
	ItemFilterReady     ItemFilter = "ready"
)

// ParseItemFilter maps a query value to a filter. Empty means all.
func ParseItemFilter(raw string) (ItemFilter, error) {
	switch f := ItemFilter(strings.ToLower(strings.TrimSpace(raw))); f {
	case "":
		return ItemFilterAll, nil
	case ItemFilterAll, ItemFilterWaiting, ItemFilterCompleted, ItemFilterReady:
		return f, nil
	default:
		return "", fmt.Errorf("unknown item filter %q", raw)
	}
}

// AddItem registers a new item and starts its waiting period. Free users are
// limited in how many items may wait at the same time.
func (s *Service) AddItem(ctx context.Context, userID int64, input AddItemInput) (*models.WishItem, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.PurchaseURL = strings.TrimSpace(input.PurchaseURL)
	input.Memo = strings.TrimSpace(input.Memo)
	if err := s.validate.Validate(input); err != nil {
		return nil, err
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()

	sub, err := s.Subscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	limit := sub.ItemLimit(now, s.freeLimit)
	if limit > 0 {
		waiting, err := s.items.CountWaiting(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to count waiting items: %w", err)
		}
		if waiting >= limit {
			s.metrics.FreeTierRejected()
			return nil, ErrFreeTierLimit
		}
	}

	item := models.NewWishItem(userID, input.Name, input.Price, now, s.waitingDays)
	item.PurchaseURL = input.PurchaseURL
	item.Memo = input.Memo

	if len(input.ImageData) > 0 && s.images != nil {
		img, err := s.images.Normalize(input.ImageData)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
		item.ImageData = img
	}

	// The count above is only a fast path; the store enforces the cap.
	if limit > 0 {
		item, err = s.items.CreateWithinLimit(ctx, item, limit)
	} else {
		item, err = s.items.Create(ctx, item)
	}
	if errors.Is(err, repository.ErrLimitReached) {
		s.metrics.FreeTierRejected()
		return nil, ErrFreeTierLimit
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create wish item: %w", err)
	}

	s.scheduleReminder(ctx, user.ChatID(), item)
	s.metrics.ItemRegistered()
	s.refreshStats(ctx, userID)

	s.logger.WithFields(logrus.Fields{
		"user_id":       userID,
		"item_id":       item.ID,
		"waiting_until": item.WaitingUntil,
	}).Info("Wish item registered")

	return item, nil
}

// ListItems returns the user's items through the given filter. Waiting and
// ready views are ordered by the end of the waiting period, the others by
// creation time, newest first.
func (s *Service) ListItems(ctx context.Context, userID int64, filter ItemFilter) ([]*models.WishItem, error) {
	var filters repository.WishItemFilters
	if filter == ItemFilterWaiting || filter == ItemFilterReady {
		status := models.WishItemStatusWaiting
		filters.Status = &status
	}

	items, err := s.items.GetByUserID(ctx, userID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list wish items: %w", err)
	}

	now := s.now()
	result := make([]*models.WishItem, 0, len(items))
	for _, item := range items {
		switch filter {
		case ItemFilterCompleted:
			if item.IsWaiting() {
				continue
			}
		case ItemFilterReady:
			if !item.IsWaitingComplete(now) {
				continue
			}
		}
		result = append(result, item)
	}

	switch filter {
	case ItemFilterWaiting, ItemFilterReady:
		sort.SliceStable(result, func(i, j int) bool {
			return result[i].WaitingUntil.Before(result[j].WaitingUntil)
		})
	default:
		sort.SliceStable(result, func(i, j int) bool {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		})
	}

	return result, nil
}

// GetItem returns one of the user's items
func (s *Service) GetItem(ctx context.Context, userID int64, itemID uuid.UUID) (*models.WishItem, error) {
	return s.ownedItem(ctx, userID, itemID)
}

// PurchaseItem records that the user bought the item once its waiting period was over
func (s *Service) PurchaseItem(ctx context.Context, userID int64, itemID uuid.UUID) (*models.WishItem, error) {
	return s.decide(ctx, userID, itemID, (*models.WishItem).MarkPurchased)
}

// AbandonItem records that the user gave the item up
func (s *Service) AbandonItem(ctx context.Context, userID int64, itemID uuid.UUID) (*models.WishItem, error) {
	return s.decide(ctx, userID, itemID, (*models.WishItem).MarkAbandoned)
}

// ExtendItem adds another week to the waiting period and moves the reminder along
func (s *Service) ExtendItem(ctx context.Context, userID int64, itemID uuid.UUID) (*models.WishItem, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	item, err := s.ownedItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}

	prevExtensions := item.ExtensionCount
	if err := item.Extend(); err != nil {
		return nil, err
	}
	item, err = s.saveWaiting(ctx, userID, item, prevExtensions)
	if err != nil {
		return nil, err
	}

	s.scheduleReminder(ctx, user.ChatID(), item)
	s.metrics.Extension()
	s.refreshStats(ctx, userID)

	return item, nil
}

// DeleteItem removes an item in any state together with its reminder
func (s *Service) DeleteItem(ctx context.Context, userID int64, itemID uuid.UUID) error {
	if _, err := s.ownedItem(ctx, userID, itemID); err != nil {
		return err
	}

	if err := s.reminders.CancelByItemID(ctx, itemID); err != nil {
		s.logger.WithError(err).WithField("item_id", itemID).Warn("Failed to cancel reminder")
	}
	if err := s.items.Delete(ctx, itemID); err != nil {
		return fmt.Errorf("failed to delete wish item: %w", err)
	}

	s.refreshStats(ctx, userID)
	return nil
}

func (s *Service) decide(ctx context.Context, userID int64, itemID uuid.UUID, mark func(*models.WishItem, time.Time) error) (*models.WishItem, error) {
	item, err := s.ownedItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	if err := mark(item, s.now()); err != nil {
		return nil, err
	}

	item, err = s.saveWaiting(ctx, userID, item, item.ExtensionCount)
	if err != nil {
		return nil, err
	}

	if err := s.reminders.CancelByItemID(ctx, itemID); err != nil {
		s.logger.WithError(err).WithField("item_id", itemID).Warn("Failed to cancel reminder")
	}
	s.metrics.Decision(string(item.Status), item.Price)
	s.refreshStats(ctx, userID)

	s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"item_id": itemID,
		"status":  item.Status,
	}).Info("Wish item decided")

	return item, nil
}

// saveWaiting writes a change made to a waiting item, unless another request
// decided or extended it since it was read.
func (s *Service) saveWaiting(ctx context.Context, userID int64, item *models.WishItem, prevExtensions int) (*models.WishItem, error) {
	saved, err := s.items.UpdateWaiting(ctx, item, prevExtensions)
	if err == nil {
		return saved, nil
	}
	if !errors.Is(err, repository.ErrStaleItem) {
		return nil, fmt.Errorf("failed to update wish item: %w", err)
	}

	current, err := s.ownedItem(ctx, userID, item.ID)
	if err != nil {
		return nil, err
	}
	if !current.IsWaiting() {
		return nil, models.ErrNotWaiting
	}
	return nil, ErrItemChanged
}

// ownedItem hides other users' items behind ErrItemNotFound
func (s *Service) ownedItem(ctx context.Context, userID int64, itemID uuid.UUID) (*models.WishItem, error) {
	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wish item: %w", err)
	}
	if item == nil || item.UserID != userID {
		return nil, ErrItemNotFound
	}
	return item, nil
}

// scheduleReminder arms the end-of-wait reminder. Failures are logged only:
// the item itself is already stored.
func (s *Service) scheduleReminder(ctx context.Context, chatID int64, item *models.WishItem) {
	_, err := s.reminders.Schedule(ctx, &models.Reminder{
		ItemID:   item.ID,
		UserID:   item.UserID,
		ChatID:   chatID,
		RemindAt: item.WaitingUntil,
	})
	if err != nil {
		s.logger.WithError(err).WithField("item_id", item.ID).Warn("Failed to schedule reminder")
	}
}
