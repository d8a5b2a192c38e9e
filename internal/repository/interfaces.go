package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Kerhoff/cooloff/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrStaleItem is returned by UpdateWaiting when the stored item left the
	// waiting state or was extended after it was read
	ErrStaleItem = errors.New("wish item changed since it was read")
	// ErrLimitReached is returned by CreateWithinLimit when the user already
	// has the maximum number of waiting items
	ErrLimitReached = errors.New("waiting item limit reached")
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByBillingCustomerID(ctx context.Context, customerID string) (*models.User, error)
	Update(ctx context.Context, user *models.User) (*models.User, error)
}

// WishItemRepository defines the interface for wish item operations
type WishItemRepository interface {
	Create(ctx context.Context, item *models.WishItem) (*models.WishItem, error)
	// CreateWithinLimit counts the user's waiting items and inserts item in
	// one atomic step.
	CreateWithinLimit(ctx context.Context, item *models.WishItem, limit int) (*models.WishItem, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.WishItem, error)
	GetByUserID(ctx context.Context, userID int64, filters WishItemFilters) ([]*models.WishItem, error)
	CountWaiting(ctx context.Context, userID int64) (int, error)
	Update(ctx context.Context, item *models.WishItem) (*models.WishItem, error)
	// UpdateWaiting stores item only while the stored row is still waiting
	// with the given extension count.
	UpdateWaiting(ctx context.Context, item *models.WishItem, extensionCount int) (*models.WishItem, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// StatsRepository stores the latest computed statistics snapshot per user
type StatsRepository interface {
	Save(ctx context.Context, stats *models.UserStats) error
	GetByUserID(ctx context.Context, userID int64) (*models.UserStats, error)
}

// SubscriptionRepository stores the mirrored subscription status per user
type SubscriptionRepository interface {
	Save(ctx context.Context, status *models.SubscriptionStatus) error
	GetByUserID(ctx context.Context, userID int64) (*models.SubscriptionStatus, error)
	GetExpiredPremium(ctx context.Context, now time.Time) ([]*models.SubscriptionStatus, error)
}

// ReminderRepository defines the interface for reminder operations
type ReminderRepository interface {
	Schedule(ctx context.Context, reminder *models.Reminder) (*models.Reminder, error)
	GetByItemID(ctx context.Context, itemID uuid.UUID) (*models.Reminder, error)
	GetDue(ctx context.Context, now time.Time) ([]*models.Reminder, error)
	MarkSent(ctx context.Context, id int64, sentAt time.Time) error
	CancelByItemID(ctx context.Context, itemID uuid.UUID) error
}

// WishItemFilters represents filters for querying wish items
type WishItemFilters struct {
	Status *models.WishItemStatus
	Limit  int
	Offset int
}
