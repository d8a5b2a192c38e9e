package handlers

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/cooloff/internal/service"
)

const maxReadyCards = 10

// ---------------------------------------------------------------------------
// AddHandler – /add <name> <price> [url]
// ---------------------------------------------------------------------------

// AddHandler handles the /add command, registering an item for a cooling-off period.
type AddHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewAddHandler creates a new AddHandler.
func NewAddHandler(svc *service.Service, logger *logrus.Logger) *AddHandler {
	return &AddHandler{svc: svc, logger: logger}
}

// Handle processes the /add command.
func (h *AddHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	input, err := parseAddArgs(args)
	if err != nil {
		return sendMarkdown(bot, message.Chat.ID,
			"❌ Please provide a name and a price.\n"+
				"Usage: `/add AirPods Pro 359000 https://shop.example.com/airpods`")
	}

	ctx := context.Background()
	user, err := registerSender(ctx, h.svc, message.From)
	if err != nil {
		return err
	}

	item, err := h.svc.AddItem(ctx, user.ID, input)
	if err != nil {
		if text, ok := userMessage(err); ok {
			return sendMarkdown(bot, message.Chat.ID, text)
		}
		return fmt.Errorf("add item: %w", err)
	}

	text := fmt.Sprintf("🧊 *Cooling off:* %s for %s\n\nI'll check back on *%s* (%d days).\nID: `%s`",
		escape(item.Name), formatPrice(item.Price),
		item.WaitingUntil.Format("Mon, 02 Jan"), item.DaysRemaining(h.svc.Now()), shortID(item.ID))
	return sendMarkdown(bot, message.Chat.ID, text)
}

// ---------------------------------------------------------------------------
// ListHandler – /list [filter], /ready
// ---------------------------------------------------------------------------

// ListHandler shows the user's items. The ready view sends one card per
// item with decision buttons.
type ListHandler struct {
	svc           *service.Service
	logger        *logrus.Logger
	defaultFilter service.ItemFilter
}

// NewListHandler creates a ListHandler that uses defaultFilter when no argument is given.
func NewListHandler(svc *service.Service, logger *logrus.Logger, defaultFilter service.ItemFilter) *ListHandler {
	return &ListHandler{svc: svc, logger: logger, defaultFilter: defaultFilter}
}

// Handle processes the /list and /ready commands.
func (h *ListHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	filter := h.defaultFilter
	if len(args) > 0 {
		f, err := service.ParseItemFilter(args[0])
		if err != nil {
			return sendMarkdown(bot, message.Chat.ID, "❌ Use one of: waiting, ready, completed, all")
		}
		filter = f
	}

	ctx := context.Background()
	user, err := registerSender(ctx, h.svc, message.From)
	if err != nil {
		return err
	}

	items, err := h.svc.ListItems(ctx, user.ID, filter)
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}

	if len(items) == 0 {
		return sendMarkdown(bot, message.Chat.ID, emptyListText(filter))
	}

	now := h.svc.Now()

	if filter == service.ItemFilterReady {
		for i, item := range items {
			if i == maxReadyCards {
				break
			}
			msg := tgbotapi.NewMessage(message.Chat.ID, reminderText(item))
			msg.ParseMode = tgbotapi.ModeMarkdown
			msg.ReplyMarkup = decisionKeyboard(item)
			if _, err := bot.Send(msg); err != nil {
				return fmt.Errorf("failed to send item card: %w", err)
			}
		}
		return nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📋 *Your items* (%s)\n\n", filter))
	for _, item := range items {
		sb.WriteString(itemLine(item, now))
		sb.WriteString("\n")
	}
	return sendMarkdown(bot, message.Chat.ID, sb.String())
}

func emptyListText(filter service.ItemFilter) string {
	switch filter {
	case service.ItemFilterReady:
		return "⏳ Nothing is ready to decide yet."
	case service.ItemFilterCompleted:
		return "📭 You haven't decided on any items yet."
	default:
		return "📭 *No items yet!*\n\nStart cooling off with `/add <name> <price>`"
	}
}

// ---------------------------------------------------------------------------
// DecisionHandler – /buy <id>, /skip <id>, /extend <id>
// ---------------------------------------------------------------------------

// DecisionHandler applies one decision action to the referenced item.
type DecisionHandler struct {
	svc    *service.Service
	logger *logrus.Logger
	action string
}

// NewDecisionHandler creates a handler for ActionBuy, ActionSkip or ActionExtend.
func NewDecisionHandler(svc *service.Service, logger *logrus.Logger, action string) *DecisionHandler {
	return &DecisionHandler{svc: svc, logger: logger, action: action}
}

// Handle processes the decision command.
func (h *DecisionHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	if len(args) == 0 {
		return sendMarkdown(bot, message.Chat.ID,
			fmt.Sprintf("❌ Please provide the item ID.\nUsage: `/%s <id>`", h.action))
	}

	ctx := context.Background()
	user, err := registerSender(ctx, h.svc, message.From)
	if err != nil {
		return err
	}

	item, err := findItem(ctx, h.svc, user.ID, args[0])
	if err == nil {
		item, err = applyAction(ctx, h.svc, user.ID, h.action, item.ID)
	}
	if err != nil {
		if text, ok := userMessage(err); ok {
			return sendMarkdown(bot, message.Chat.ID, text)
		}
		return fmt.Errorf("%s item: %w", h.action, err)
	}

	h.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"item_id": item.ID,
		"action":  h.action,
	}).Info("Item decision via command")

	return sendMarkdown(bot, message.Chat.ID, outcomeText(h.action, item))
}

// ---------------------------------------------------------------------------
// DeleteHandler – /delete <id>
// ---------------------------------------------------------------------------

// DeleteHandler handles the /delete command.
type DeleteHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewDeleteHandler creates a new DeleteHandler.
func NewDeleteHandler(svc *service.Service, logger *logrus.Logger) *DeleteHandler {
	return &DeleteHandler{svc: svc, logger: logger}
}

// Handle processes the /delete command.
func (h *DeleteHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	if len(args) == 0 {
		return sendMarkdown(bot, message.Chat.ID, "❌ Please provide the item ID.\nUsage: `/delete <id>`")
	}

	ctx := context.Background()
	user, err := registerSender(ctx, h.svc, message.From)
	if err != nil {
		return err
	}

	item, err := findItem(ctx, h.svc, user.ID, args[0])
	if err == nil {
		err = h.svc.DeleteItem(ctx, user.ID, item.ID)
	}
	if err != nil {
		if text, ok := userMessage(err); ok {
			return sendMarkdown(bot, message.Chat.ID, text)
		}
		return fmt.Errorf("delete item: %w", err)
	}

	return sendMarkdown(bot, message.Chat.ID, fmt.Sprintf("🗑️ Deleted *%s*.", escape(item.Name)))
}
