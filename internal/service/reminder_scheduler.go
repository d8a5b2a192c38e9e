package service

import (
	"context"
	"time"

	"github.com/Kerhoff/cooloff/internal/models"
	"github.com/sirupsen/logrus"
)

// ReminderCallback delivers the end-of-wait reminder for item to a chat. A
// returned error leaves the reminder active so the next tick retries it.
type ReminderCallback func(ctx context.Context, chatID int64, item *models.WishItem) error

// StartReminderScheduler runs a background loop that checks for due reminders
// on every interval and invokes the callback for each one. It blocks until the
// context is cancelled, so it should be launched in a separate goroutine.
func (s *Service) StartReminderScheduler(ctx context.Context, interval time.Duration, callback ReminderCallback) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Reminder scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Reminder scheduler stopped")
			return
		case <-ticker.C:
			s.ProcessDueReminders(ctx, callback)
		}
	}
}

// ProcessDueReminders fires every due reminder and returns how many were
// delivered. Reminders whose item is gone or already decided are cancelled;
// reminders that fire early because the item was extended are re-armed.
func (s *Service) ProcessDueReminders(ctx context.Context, callback ReminderCallback) int {
	now := s.now()

	reminders, err := s.reminders.GetDue(ctx, now)
	if err != nil {
		s.logger.Errorf("Failed to get due reminders: %v", err)
		return 0
	}

	sent := 0
	for _, r := range reminders {
		log := s.logger.WithFields(logrus.Fields{"reminder_id": r.ID, "item_id": r.ItemID})

		item, err := s.items.GetByID(ctx, r.ItemID)
		if err != nil {
			log.WithError(err).Error("Failed to load reminder item")
			continue
		}

		if item == nil || !item.IsWaiting() {
			if err := s.reminders.CancelByItemID(ctx, r.ItemID); err != nil {
				log.WithError(err).Error("Failed to cancel stale reminder")
			}
			continue
		}

		if now.Before(item.WaitingUntil) {
			s.scheduleReminder(ctx, r.ChatID, item)
			continue
		}

		if err := callback(ctx, r.ChatID, item); err != nil {
			log.WithError(err).Warn("Failed to deliver reminder, will retry")
			s.metrics.ReminderFailed()
			continue
		}

		if err := s.reminders.MarkSent(ctx, r.ID, now); err != nil {
			log.WithError(err).Error("Failed to mark reminder sent")
		}
		s.metrics.ReminderSent()
		sent++
	}

	return sent
}
