package models

import "time"

// UserStats holds aggregates derived from a user's wish items. It is always
// rebuilt from the full item list, never updated incrementally.
type UserStats struct {
	UserID                 int64     `json:"user_id" db:"user_id"`
	TotalSavedAmount       int64     `json:"total_saved_amount" db:"total_saved_amount"`
	MonthlySavedAmount     int64     `json:"monthly_saved_amount" db:"monthly_saved_amount"`
	TotalPurchasedAmount   int64     `json:"total_purchased_amount" db:"total_purchased_amount"`
	MonthlyPurchasedAmount int64     `json:"monthly_purchased_amount" db:"monthly_purchased_amount"`
	PreventionRate         float64   `json:"prevention_rate" db:"prevention_rate"`
	WaitingCount           int       `json:"waiting_count" db:"waiting_count"`
	TotalWaitingAmount     int64     `json:"total_waiting_amount" db:"total_waiting_amount"`
	ReadyCount             int       `json:"ready_count" db:"ready_count"`
	LastUpdated            time.Time `json:"last_updated" db:"last_updated"`
}

// ComputeStats aggregates items as of now. Monthly figures count items
// created in now's calendar month. PreventionRate is a percentage of decided
// items that were abandoned, or 0 when nothing has been decided.
func ComputeStats(userID int64, items []*WishItem, now time.Time) *UserStats {
	stats := &UserStats{UserID: userID, LastUpdated: now}

	var decided, abandoned int
	for _, item := range items {
		thisMonth := sameMonth(item.CreatedAt, now)

		switch item.Status {
		case WishItemStatusAbandoned:
			decided++
			abandoned++
			stats.TotalSavedAmount += item.Price
			if thisMonth {
				stats.MonthlySavedAmount += item.Price
			}
		case WishItemStatusPurchased:
			decided++
			stats.TotalPurchasedAmount += item.Price
			if thisMonth {
				stats.MonthlyPurchasedAmount += item.Price
			}
		case WishItemStatusWaiting:
			stats.WaitingCount++
			stats.TotalWaitingAmount += item.Price
			if item.IsWaitingComplete(now) {
				stats.ReadyCount++
			}
		}
	}

	if decided > 0 {
		stats.PreventionRate = float64(abandoned) / float64(decided) * 100
	}

	return stats
}

func sameMonth(t, now time.Time) bool {
	t = t.In(now.Location())
	return t.Year() == now.Year() && t.Month() == now.Month()
}
