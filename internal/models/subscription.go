package models

import (
	"math"
	"time"
)

// SubscriptionTier distinguishes the free plan from the paid one
type SubscriptionTier string

const (
	SubscriptionTierFree    SubscriptionTier = "free"
	SubscriptionTierPremium SubscriptionTier = "premium_monthly_3990"
)

// PremiumProductID is the store product that grants the premium tier
const PremiumProductID = string(SubscriptionTierPremium)

// DefaultFreeItemLimit is how many items a free user may keep waiting at once
const DefaultFreeItemLimit = 3

// DisplayName returns a human readable tier name
func (t SubscriptionTier) DisplayName() string {
	if t == SubscriptionTierPremium {
		return "Premium"
	}
	return "Free"
}

// PriceText returns the price label shown on the paywall
func (t SubscriptionTier) PriceText() string {
	if t == SubscriptionTierPremium {
		return "₩3,990/month"
	}
	return "Free"
}

// Features lists what the tier unlocks
func (t SubscriptionTier) Features() []string {
	if t == SubscriptionTierPremium {
		return []string{
			"Unlimited waiting items",
			"Detailed statistics",
			"Custom reminders",
			"Premium badge",
		}
	}
	return []string{
		"Up to 3 waiting items",
		"Basic statistics",
		"Basic reminders",
	}
}

// SubscriptionStatus mirrors the user's entitlement as last seen at the billing provider
type SubscriptionStatus struct {
	UserID      int64            `json:"user_id" db:"user_id"`
	Tier        SubscriptionTier `json:"tier" db:"tier"`
	IsActive    bool             `json:"is_active" db:"is_active"`
	ExpiresAt   *time.Time       `json:"expires_at,omitempty" db:"expires_at"`
	PurchasedAt *time.Time       `json:"purchased_at,omitempty" db:"purchased_at"`
	CheckedAt   time.Time        `json:"checked_at" db:"checked_at"`
}

// FreeSubscription returns the default status for a user without entitlements
func FreeSubscription(userID int64) *SubscriptionStatus {
	return &SubscriptionStatus{
		UserID: userID,
		Tier:   SubscriptionTierFree,
	}
}

// IsExpired returns true if the status carries an expiry that has passed
func (s *SubscriptionStatus) IsExpired(now time.Time) bool {
	if s.ExpiresAt == nil {
		return false
	}
	return now.After(*s.ExpiresAt)
}

// IsPremium returns true if the premium tier is active and not expired
func (s *SubscriptionStatus) IsPremium(now time.Time) bool {
	return s.Tier == SubscriptionTierPremium && s.IsActive && !s.IsExpired(now)
}

// DaysRemaining returns whole days until expiry, or nil when there is no
// expiry or it has already passed
func (s *SubscriptionStatus) DaysRemaining(now time.Time) *int {
	if s.ExpiresAt == nil || s.IsExpired(now) {
		return nil
	}
	days := int(math.Floor(s.ExpiresAt.Sub(now).Hours() / 24))
	return &days
}

// ItemLimit returns the maximum number of concurrently waiting items, 0 meaning unlimited
func (s *SubscriptionStatus) ItemLimit(now time.Time, freeLimit int) int {
	if s.IsPremium(now) {
		return 0
	}
	if freeLimit <= 0 {
		return DefaultFreeItemLimit
	}
	return freeLimit
}

// Entitlement is a provider record proving the user holds a product
type Entitlement struct {
	ProductID   string     `json:"product_id"`
	PurchasedAt *time.Time `json:"purchased_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// StatusFromEntitlements derives a subscription status from the user's
// current entitlements. The premium entitlement expiring last wins; with no
// premium entitlement the free status is returned.
func StatusFromEntitlements(userID int64, entitlements []Entitlement, now time.Time) *SubscriptionStatus {
	var best *Entitlement
	for i := range entitlements {
		e := &entitlements[i]
		if e.ProductID != PremiumProductID {
			continue
		}
		if best == nil || laterExpiry(e.ExpiresAt, best.ExpiresAt) {
			best = e
		}
	}

	if best == nil {
		status := FreeSubscription(userID)
		status.CheckedAt = now
		return status
	}

	return &SubscriptionStatus{
		UserID:      userID,
		Tier:        SubscriptionTierPremium,
		IsActive:    true,
		ExpiresAt:   best.ExpiresAt,
		PurchasedAt: best.PurchasedAt,
		CheckedAt:   now,
	}
}

// laterExpiry treats a missing expiry as never expiring
func laterExpiry(a, b *time.Time) bool {
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	return a.After(*b)
}
