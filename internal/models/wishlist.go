package models

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultWaitingDays is the cooling-off window applied to new items.
	DefaultWaitingDays = 7
	// ExtensionDays is added to the waiting period by each extension.
	ExtensionDays = 7
	// MaxExtensions caps how many times a single item can be extended.
	MaxExtensions = 3
)

var (
	ErrNotWaiting     = errors.New("wish item is no longer waiting")
	ErrExtensionLimit = errors.New("wish item has reached the extension limit")
	ErrStillWaiting   = errors.New("waiting period has not elapsed yet")
)

// WishItemStatus represents where an item is in its cooling-off lifecycle
type WishItemStatus string

const (
	WishItemStatusWaiting   WishItemStatus = "waiting"
	WishItemStatusPurchased WishItemStatus = "purchased"
	WishItemStatusAbandoned WishItemStatus = "abandoned"
)

// Emoji returns the marker used when rendering the status in chat
func (s WishItemStatus) Emoji() string {
	switch s {
	case WishItemStatusPurchased:
		return "💸"
	case WishItemStatusAbandoned:
		return "✅"
	default:
		return "⏳"
	}
}

// Valid reports whether s is a known status
func (s WishItemStatus) Valid() bool {
	switch s {
	case WishItemStatusWaiting, WishItemStatusPurchased, WishItemStatusAbandoned:
		return true
	}
	return false
}

// WishItem is something the user wants to buy, held back for a cooling-off window
type WishItem struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	UserID         int64          `json:"user_id" db:"user_id"`
	Name           string         `json:"name" db:"name"`
	Price          int64          `json:"price" db:"price"`
	PurchaseURL    string         `json:"purchase_url,omitempty" db:"purchase_url"`
	Memo           string         `json:"memo,omitempty" db:"memo"`
	ImageData      []byte         `json:"image_data,omitempty" db:"image_data"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	WaitingUntil   time.Time      `json:"waiting_until" db:"waiting_until"`
	Status         WishItemStatus `json:"status" db:"status"`
	ExtensionCount int            `json:"extension_count" db:"extension_count"`
	DecidedAt      *time.Time     `json:"decided_at,omitempty" db:"decided_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// NewWishItem creates a waiting item whose window ends waitingDays after createdAt.
// A non-positive waitingDays falls back to DefaultWaitingDays.
func NewWishItem(userID int64, name string, price int64, createdAt time.Time, waitingDays int) *WishItem {
	if waitingDays <= 0 {
		waitingDays = DefaultWaitingDays
	}
	return &WishItem{
		ID:           uuid.New(),
		UserID:       userID,
		Name:         name,
		Price:        price,
		CreatedAt:    createdAt,
		WaitingUntil: createdAt.AddDate(0, 0, waitingDays),
		Status:       WishItemStatusWaiting,
		UpdatedAt:    createdAt,
	}
}

// IsWaiting returns true while no decision has been made
func (w *WishItem) IsWaiting() bool {
	return w.Status == WishItemStatusWaiting
}

// IsWaitingComplete returns true if the item is still waiting and its window has elapsed
func (w *WishItem) IsWaitingComplete(now time.Time) bool {
	return w.IsWaiting() && !now.Before(w.WaitingUntil)
}

// DaysRemaining returns the whole days left in the waiting window, never negative
func (w *WishItem) DaysRemaining(now time.Time) int {
	left := w.WaitingUntil.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(left / (24 * time.Hour))
}

// Progress returns how much of the waiting window has elapsed, in [0, 1]
func (w *WishItem) Progress(now time.Time) float64 {
	total := w.WaitingUntil.Sub(w.CreatedAt)
	if total <= 0 {
		return 1
	}
	p := float64(now.Sub(w.CreatedAt)) / float64(total)
	return math.Min(1, math.Max(0, p))
}

// RemainingExtensions returns how many more times the item can be extended
func (w *WishItem) RemainingExtensions() int {
	if w.ExtensionCount >= MaxExtensions {
		return 0
	}
	return MaxExtensions - w.ExtensionCount
}

// CanExtend returns true if Extend would succeed
func (w *WishItem) CanExtend() bool {
	return w.IsWaiting() && w.ExtensionCount < MaxExtensions
}

// Extend pushes the waiting window out by ExtensionDays
func (w *WishItem) Extend() error {
	if !w.IsWaiting() {
		return ErrNotWaiting
	}
	if w.ExtensionCount >= MaxExtensions {
		return ErrExtensionLimit
	}
	w.WaitingUntil = w.WaitingUntil.AddDate(0, 0, ExtensionDays)
	w.ExtensionCount++
	return nil
}

// MarkPurchased records that the user bought the item after waiting it out
func (w *WishItem) MarkPurchased(now time.Time) error {
	if !w.IsWaiting() {
		return ErrNotWaiting
	}
	if now.Before(w.WaitingUntil) {
		return ErrStillWaiting
	}
	w.decide(WishItemStatusPurchased, now)
	return nil
}

// MarkAbandoned records that the user gave up on the item. Giving up is
// allowed at any point of the window.
func (w *WishItem) MarkAbandoned(now time.Time) error {
	if !w.IsWaiting() {
		return ErrNotWaiting
	}
	w.decide(WishItemStatusAbandoned, now)
	return nil
}

func (w *WishItem) decide(status WishItemStatus, now time.Time) {
	w.Status = status
	w.DecidedAt = &now
	w.UpdatedAt = now
}
