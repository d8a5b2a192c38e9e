// Package memory keeps every repository in process memory. It backs the
// STORAGE=memory mode and the service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Kerhoff/cooloff/internal/models"
	"github.com/Kerhoff/cooloff/internal/repository"
	"github.com/google/uuid"
)

// Store holds all in-memory state behind a single lock
type Store struct {
	mu            sync.RWMutex
	nextUserID    int64
	nextReminder  int64
	users         map[int64]*models.User
	items         map[uuid.UUID]*models.WishItem
	stats         map[int64]*models.UserStats
	subscriptions map[int64]*models.SubscriptionStatus
	reminders     map[uuid.UUID]*models.Reminder
}

// New creates an empty store
func New() *Store {
	return &Store{
		users:         make(map[int64]*models.User),
		items:         make(map[uuid.UUID]*models.WishItem),
		stats:         make(map[int64]*models.UserStats),
		subscriptions: make(map[int64]*models.SubscriptionStatus),
		reminders:     make(map[uuid.UUID]*models.Reminder),
	}
}

func (s *Store) Users() repository.UserRepository                 { return userRepository{s} }
func (s *Store) Items() repository.WishItemRepository             { return wishItemRepository{s} }
func (s *Store) Stats() repository.StatsRepository                { return statsRepository{s} }
func (s *Store) Subscriptions() repository.SubscriptionRepository { return subscriptionRepository{s} }
func (s *Store) Reminders() repository.ReminderRepository         { return reminderRepository{s} }

// Values are copied on the way in and out so callers never share state with the store.

func copyUser(u *models.User) *models.User {
	c := *u
	if u.BillingCustomerID != nil {
		id := *u.BillingCustomerID
		c.BillingCustomerID = &id
	}
	return &c
}

func copyItem(i *models.WishItem) *models.WishItem {
	c := *i
	if i.ImageData != nil {
		c.ImageData = append([]byte(nil), i.ImageData...)
	}
	if i.DecidedAt != nil {
		t := *i.DecidedAt
		c.DecidedAt = &t
	}
	return &c
}

func copyReminder(r *models.Reminder) *models.Reminder {
	c := *r
	if r.LastSentAt != nil {
		t := *r.LastSentAt
		c.LastSentAt = &t
	}
	return &c
}

func copySubscription(st *models.SubscriptionStatus) *models.SubscriptionStatus {
	c := *st
	if st.ExpiresAt != nil {
		t := *st.ExpiresAt
		c.ExpiresAt = &t
	}
	if st.PurchasedAt != nil {
		t := *st.PurchasedAt
		c.PurchasedAt = &t
	}
	return &c
}

type userRepository struct{ s *Store }

func (r userRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.TelegramID == user.TelegramID {
			return nil, fmt.Errorf("failed to create user: telegram_id %d already exists", user.TelegramID)
		}
	}

	r.s.nextUserID++
	now := time.Now()
	user.ID = r.s.nextUserID
	user.IsActive = true
	user.CreatedAt = now
	user.UpdatedAt = now
	r.s.users[user.ID] = copyUser(user)
	return user, nil
}

func (r userRepository) GetByTelegramID(_ context.Context, telegramID int64) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.TelegramID == telegramID }), nil
}

func (r userRepository) GetByID(_ context.Context, id int64) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id }), nil
}

func (r userRepository) GetByBillingCustomerID(_ context.Context, customerID string) (*models.User, error) {
	return r.find(func(u *models.User) bool {
		return u.BillingCustomerID != nil && *u.BillingCustomerID == customerID
	}), nil
}

func (r userRepository) Update(_ context.Context, user *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[user.ID]; !ok {
		return nil, fmt.Errorf("failed to update user: user with ID %d not found", user.ID)
	}
	user.UpdatedAt = time.Now()
	r.s.users[user.ID] = copyUser(user)
	return user, nil
}

func (r userRepository) find(match func(*models.User) bool) *models.User {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if match(u) {
			return copyUser(u)
		}
	}
	return nil
}

type wishItemRepository struct{ s *Store }

func (r wishItemRepository) Create(_ context.Context, item *models.WishItem) (*models.WishItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.insert(item)
}

func (r wishItemRepository) CreateWithinLimit(_ context.Context, item *models.WishItem, limit int) (*models.WishItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.countWaiting(item.UserID) >= limit {
		return nil, repository.ErrLimitReached
	}
	return r.insert(item)
}

// insert requires the write lock
func (r wishItemRepository) insert(item *models.WishItem) (*models.WishItem, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if _, ok := r.s.items[item.ID]; ok {
		return nil, fmt.Errorf("failed to create wish item: ID %s already exists", item.ID)
	}
	item.UpdatedAt = time.Now()
	r.s.items[item.ID] = copyItem(item)
	return item, nil
}

func (r wishItemRepository) GetByID(_ context.Context, id uuid.UUID) (*models.WishItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	item, ok := r.s.items[id]
	if !ok {
		return nil, nil
	}
	return copyItem(item), nil
}

func (r wishItemRepository) GetByUserID(_ context.Context, userID int64, filters repository.WishItemFilters) ([]*models.WishItem, error) {
	r.s.mu.RLock()
	var items []*models.WishItem
	for _, item := range r.s.items {
		if item.UserID != userID {
			continue
		}
		if filters.Status != nil && item.Status != *filters.Status {
			continue
		}
		items = append(items, copyItem(item))
	}
	r.s.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })

	if filters.Offset > 0 {
		if filters.Offset >= len(items) {
			return nil, nil
		}
		items = items[filters.Offset:]
	}
	if filters.Limit > 0 && filters.Limit < len(items) {
		items = items[:filters.Limit]
	}
	return items, nil
}

func (r wishItemRepository) CountWaiting(_ context.Context, userID int64) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.countWaiting(userID), nil
}

func (r wishItemRepository) countWaiting(userID int64) int {
	count := 0
	for _, item := range r.s.items {
		if item.UserID == userID && item.IsWaiting() {
			count++
		}
	}
	return count
}

func (r wishItemRepository) Update(_ context.Context, item *models.WishItem) (*models.WishItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.items[item.ID]; !ok {
		return nil, fmt.Errorf("wish item with ID %s not found", item.ID)
	}
	item.UpdatedAt = time.Now()
	r.s.items[item.ID] = copyItem(item)
	return item, nil
}

func (r wishItemRepository) UpdateWaiting(_ context.Context, item *models.WishItem, extensionCount int) (*models.WishItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.items[item.ID]
	if !ok || !current.IsWaiting() || current.ExtensionCount != extensionCount {
		return nil, repository.ErrStaleItem
	}
	item.UpdatedAt = time.Now()
	r.s.items[item.ID] = copyItem(item)
	return item, nil
}

func (r wishItemRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.items[id]; !ok {
		return fmt.Errorf("wish item with ID %s not found", id)
	}
	delete(r.s.items, id)
	delete(r.s.reminders, id)
	return nil
}

type statsRepository struct{ s *Store }

func (r statsRepository) Save(_ context.Context, stats *models.UserStats) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c := *stats
	r.s.stats[stats.UserID] = &c
	return nil
}

func (r statsRepository) GetByUserID(_ context.Context, userID int64) (*models.UserStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	stats, ok := r.s.stats[userID]
	if !ok {
		return nil, nil
	}
	c := *stats
	return &c, nil
}

type subscriptionRepository struct{ s *Store }

func (r subscriptionRepository) Save(_ context.Context, status *models.SubscriptionStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.subscriptions[status.UserID] = copySubscription(status)
	return nil
}

func (r subscriptionRepository) GetByUserID(_ context.Context, userID int64) (*models.SubscriptionStatus, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	status, ok := r.s.subscriptions[userID]
	if !ok {
		return nil, nil
	}
	return copySubscription(status), nil
}

func (r subscriptionRepository) GetExpiredPremium(_ context.Context, now time.Time) ([]*models.SubscriptionStatus, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var expired []*models.SubscriptionStatus
	for _, status := range r.s.subscriptions {
		if status.Tier == models.SubscriptionTierPremium && status.IsActive && status.IsExpired(now) {
			expired = append(expired, copySubscription(status))
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ExpiresAt.Before(*expired[j].ExpiresAt) })
	return expired, nil
}

type reminderRepository struct{ s *Store }

func (r reminderRepository) Schedule(_ context.Context, reminder *models.Reminder) (*models.Reminder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now()
	if existing, ok := r.s.reminders[reminder.ItemID]; ok {
		reminder.ID = existing.ID
		reminder.CreatedAt = existing.CreatedAt
	} else {
		r.s.nextReminder++
		reminder.ID = r.s.nextReminder
		reminder.CreatedAt = now
	}
	reminder.Active = true
	reminder.LastSentAt = nil
	reminder.UpdatedAt = now
	r.s.reminders[reminder.ItemID] = copyReminder(reminder)
	return reminder, nil
}

func (r reminderRepository) GetByItemID(_ context.Context, itemID uuid.UUID) (*models.Reminder, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	reminder, ok := r.s.reminders[itemID]
	if !ok {
		return nil, nil
	}
	return copyReminder(reminder), nil
}

func (r reminderRepository) GetDue(_ context.Context, now time.Time) ([]*models.Reminder, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var due []*models.Reminder
	for _, reminder := range r.s.reminders {
		if reminder.IsDue(now) {
			due = append(due, copyReminder(reminder))
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RemindAt.Before(due[j].RemindAt) })
	return due, nil
}

func (r reminderRepository) MarkSent(_ context.Context, id int64, sentAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, reminder := range r.s.reminders {
		if reminder.ID == id {
			reminder.Active = false
			reminder.LastSentAt = &sentAt
			reminder.UpdatedAt = sentAt
			return nil
		}
	}
	return fmt.Errorf("reminder with ID %d not found", id)
}

func (r reminderRepository) CancelByItemID(_ context.Context, itemID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if reminder, ok := r.s.reminders[itemID]; ok {
		reminder.Active = false
		reminder.UpdatedAt = time.Now()
	}
	return nil
}
