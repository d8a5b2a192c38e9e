package handlers

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/cooloff/internal/models"
	"github.com/Kerhoff/cooloff/internal/service"
)

// StartHandler handles the /start command
type StartHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewStartHandler creates a new start command handler
func NewStartHandler(svc *service.Service, logger *logrus.Logger) *StartHandler {
	return &StartHandler{
		svc:    svc,
		logger: logger,
	}
}

// Handle processes the /start command
func (h *StartHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	user, err := registerSender(context.Background(), h.svc, message.From)
	if err != nil {
		return err
	}

	welcomeText := fmt.Sprintf(`🧊 *Welcome to Cooloff, %s!*

Want something? Tell me about it and wait %d days before buying.
Most impulses fade. The ones that survive are worth it.

*How it works:*
• /add <name> <price> [link] - Start cooling off on an item
• I'll message you when the waiting period is over
• Then buy it, skip it, or wait another %d days

See /help for all commands.`, escape(user.FullName()), h.svc.WaitingDays(), models.ExtensionDays)

	if err := sendMarkdown(bot, message.Chat.ID, welcomeText); err != nil {
		return fmt.Errorf("failed to send start message: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"user_id": user.ID,
	}).Info("Sent start message")

	return nil
}
