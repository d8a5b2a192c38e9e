package handlers

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/cooloff/internal/service"
)

// DecisionCallbackHandler handles the Buy / Skip / +7 days buttons attached
// to reminders and ready cards.
type DecisionCallbackHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

func NewDecisionCallbackHandler(svc *service.Service, logger *logrus.Logger) *DecisionCallbackHandler {
	return &DecisionCallbackHandler{svc: svc, logger: logger}
}

// HandleCallback applies the pressed action, answers the query and replaces
// the card text with the outcome.
func (h *DecisionCallbackHandler) HandleCallback(bot *tgbotapi.BotAPI, query *tgbotapi.CallbackQuery, action, payload string) error {
	id, err := uuid.Parse(payload)
	if err != nil {
		_, err := bot.Request(tgbotapi.NewCallback(query.ID, "Unknown item"))
		return err
	}

	ctx := context.Background()
	user, err := registerSender(ctx, h.svc, query.From)
	if err != nil {
		return err
	}

	item, err := applyAction(ctx, h.svc, user.ID, action, id)
	if err != nil {
		text, ok := userMessage(err)
		if !ok {
			return fmt.Errorf("%s item: %w", action, err)
		}
		_, err := bot.Request(tgbotapi.NewCallbackWithAlert(query.ID, text))
		return err
	}

	h.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"item_id": item.ID,
		"action":  action,
	}).Info("Item decision via button")

	if _, err := bot.Request(tgbotapi.NewCallback(query.ID, "Done")); err != nil {
		h.logger.WithError(err).Warn("Failed to answer callback query")
	}

	if query.Message == nil {
		return sendMarkdown(bot, query.From.ID, outcomeText(action, item))
	}

	edit := tgbotapi.NewEditMessageText(query.Message.Chat.ID, query.Message.MessageID, outcomeText(action, item))
	edit.ParseMode = tgbotapi.ModeMarkdown
	if _, err := bot.Send(edit); err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}
