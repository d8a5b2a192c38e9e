package handlers

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Kerhoff/cooloff/internal/models"
	"github.com/Kerhoff/cooloff/internal/service"
)

// Sender delivers a prepared message
type Sender interface {
	Send(c tgbotapi.Chattable) error
}

func reminderText(item *models.WishItem) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🔔 *Time to decide:* %s\n", escape(item.Name)))
	sb.WriteString(fmt.Sprintf("💰 %s\n", formatPrice(item.Price)))
	days := int(item.WaitingUntil.Sub(item.CreatedAt).Hours() / 24)
	sb.WriteString(fmt.Sprintf("⏳ You've waited %d days. Do you still want it?", days))
	if item.Memo != "" {
		sb.WriteString("\n📝 " + escape(item.Memo))
	}
	if item.PurchaseURL != "" {
		sb.WriteString("\n🔗 " + escape(item.PurchaseURL))
	}
	return sb.String()
}

// ReminderMessage builds the end-of-wait message with decision buttons
func ReminderMessage(chatID int64, item *models.WishItem) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, reminderText(item))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = decisionKeyboard(item)
	return msg
}

// NewReminderSender adapts a Sender to the scheduler callback
func NewReminderSender(sender Sender) service.ReminderCallback {
	return func(_ context.Context, chatID int64, item *models.WishItem) error {
		return sender.Send(ReminderMessage(chatID, item))
	}
}
