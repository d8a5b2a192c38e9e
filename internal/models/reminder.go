package models

import (
	"time"

	"github.com/google/uuid"
)

// Reminder is a scheduled nudge telling the user an item's waiting period is over
type Reminder struct {
	ID         int64      `json:"id" db:"id"`
	ItemID     uuid.UUID  `json:"item_id" db:"item_id"`
	UserID     int64      `json:"user_id" db:"user_id"`
	ChatID     int64      `json:"chat_id" db:"chat_id"`
	RemindAt   time.Time  `json:"remind_at" db:"remind_at"`
	Active     bool       `json:"active" db:"active"`
	LastSentAt *time.Time `json:"last_sent_at" db:"last_sent_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// IsDue returns true if the reminder should fire at now
func (r *Reminder) IsDue(now time.Time) bool {
	if !r.Active {
		return false
	}
	return !now.Before(r.RemindAt)
}
