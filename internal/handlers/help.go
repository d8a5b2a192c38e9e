package handlers

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// HelpHandler handles the /help command
type HelpHandler struct {
	logger *logrus.Logger
}

func NewHelpHandler(logger *logrus.Logger) *HelpHandler {
	return &HelpHandler{logger: logger}
}

func (h *HelpHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	helpText := `📚 *Cooloff Help*

*Items:*
• /add <name> <price> [link] - Start cooling off
• /list [waiting|ready|completed|all] - Show your items
• /ready - Items whose waiting period is over
• /delete <id> - Remove an item

*Decisions:*
• /buy <id> - Buy an item after waiting it out
• /skip <id> - Give up on an item
• /extend <id> - Wait 7 more days (up to 3 times)

*Account:*
• /stats - Money saved and spent
• /premium - Plan and subscription status

_IDs are the short codes shown by /list._`

	if err := sendMarkdown(bot, message.Chat.ID, helpText); err != nil {
		return fmt.Errorf("failed to send help message: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"user_id": message.From.ID,
	}).Info("Sent help message")

	return nil
}
