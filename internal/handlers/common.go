package handlers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/Kerhoff/cooloff/internal/models"
	"github.com/Kerhoff/cooloff/internal/service"
	"github.com/Kerhoff/cooloff/internal/telegram"
	"github.com/Kerhoff/cooloff/internal/validator"
)

// Inline button and command actions on a waiting item
const (
	ActionBuy    = "buy"
	ActionSkip   = "skip"
	ActionExtend = "extend"
)

const shortIDLen = 8

var errAmbiguousRef = errors.New("item reference matches more than one item")

func registerSender(ctx context.Context, svc *service.Service, from *tgbotapi.User) (*models.User, error) {
	user, err := svc.RegisterUser(ctx, from.ID, from.UserName, from.FirstName, from.LastName)
	if err != nil {
		return nil, fmt.Errorf("register user: %w", err)
	}
	return user, nil
}

func sendMarkdown(bot *tgbotapi.BotAPI, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

// formatPrice renders won with thousands separators, e.g. ₩1,234,000
func formatPrice(price int64) string {
	digits := strconv.FormatInt(price, 10)
	neg := strings.HasPrefix(digits, "-")
	digits = strings.TrimPrefix(digits, "-")

	var sb strings.Builder
	if neg {
		sb.WriteByte('-')
	}
	sb.WriteString("₩")
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// parsePrice accepts plain digits with optional ₩ sign, commas or a "won" suffix
func parsePrice(raw string) (int64, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "₩")
	s = strings.TrimSuffix(s, "won")
	s = strings.TrimSuffix(s, "원")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, fmt.Errorf("empty price")
	}
	price, err := strconv.ParseInt(s, 10, 64)
	if err != nil || price < 0 {
		return 0, fmt.Errorf("invalid price %q", raw)
	}
	return price, nil
}

// parseAddArgs reads "<name...> <price> [url]"
func parseAddArgs(args []string) (service.AddItemInput, error) {
	var input service.AddItemInput
	if n := len(args); n > 0 && (strings.HasPrefix(args[n-1], "http://") || strings.HasPrefix(args[n-1], "https://")) {
		input.PurchaseURL = args[n-1]
		args = args[:n-1]
	}
	if len(args) < 2 {
		return input, fmt.Errorf("name and price are required")
	}

	price, err := parsePrice(args[len(args)-1])
	if err != nil {
		return input, err
	}
	input.Price = price
	input.Name = strings.Join(args[:len(args)-1], " ")
	return input, nil
}

func shortID(id uuid.UUID) string {
	return id.String()[:shortIDLen]
}

// findItem resolves a full UUID or a unique prefix of one among the user's items
func findItem(ctx context.Context, svc *service.Service, userID int64, ref string) (*models.WishItem, error) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if ref == "" {
		return nil, service.ErrItemNotFound
	}
	if id, err := uuid.Parse(ref); err == nil {
		return svc.GetItem(ctx, userID, id)
	}

	items, err := svc.ListItems(ctx, userID, service.ItemFilterAll)
	if err != nil {
		return nil, err
	}

	var match *models.WishItem
	for _, item := range items {
		if !strings.HasPrefix(item.ID.String(), ref) {
			continue
		}
		if match != nil {
			return nil, errAmbiguousRef
		}
		match = item
	}
	if match == nil {
		return nil, service.ErrItemNotFound
	}
	return match, nil
}

// applyAction runs one of the decision actions on an item
func applyAction(ctx context.Context, svc *service.Service, userID int64, action string, id uuid.UUID) (*models.WishItem, error) {
	switch action {
	case ActionBuy:
		return svc.PurchaseItem(ctx, userID, id)
	case ActionSkip:
		return svc.AbandonItem(ctx, userID, id)
	case ActionExtend:
		return svc.ExtendItem(ctx, userID, id)
	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}
}

func outcomeText(action string, item *models.WishItem) string {
	name := escape(item.Name)
	switch action {
	case ActionBuy:
		return fmt.Sprintf("💸 Bought *%s* for %s after waiting it out.", name, formatPrice(item.Price))
	case ActionSkip:
		return fmt.Sprintf("✅ Skipped *%s*. You saved %s!", name, formatPrice(item.Price))
	default:
		return fmt.Sprintf("⏳ Waiting on *%s* for %d more days, until %s. Extensions left: %d.",
			name, models.ExtensionDays, item.WaitingUntil.Format("Jan 02"), item.RemainingExtensions())
	}
}

// userMessage turns an expected failure into chat text. Unexpected errors
// report false and should be returned to the router.
func userMessage(err error) (string, bool) {
	var ve *validator.ValidationError
	switch {
	case errors.As(err, &ve):
		fields := make([]string, 0, len(ve.Errors))
		for field, msg := range ve.Errors {
			fields = append(fields, fmt.Sprintf("%s: %s", escape(field), escape(msg)))
		}
		sort.Strings(fields)
		return "❌ " + strings.Join(fields, "\n"), true
	case errors.Is(err, service.ErrItemNotFound):
		return "❌ Item not found. Use /list to see your items.", true
	case errors.Is(err, errAmbiguousRef):
		return "❌ That ID matches several items. Please use more characters.", true
	case errors.Is(err, service.ErrFreeTierLimit):
		return "🔒 The free plan's limit of waiting items is reached. Decide on one first or see /premium.", true
	case errors.Is(err, service.ErrItemChanged):
		return "🔄 This item was just changed elsewhere. Please try again.", true
	case errors.Is(err, service.ErrBillingDisabled):
		return "💳 Subscriptions are not available right now.", true
	case errors.Is(err, models.ErrStillWaiting):
		return "⏳ Still cooling off. You can buy it once the waiting period is over.", true
	case errors.Is(err, models.ErrNotWaiting):
		return "ℹ️ This item has already been decided.", true
	case errors.Is(err, models.ErrExtensionLimit):
		return fmt.Sprintf("ℹ️ This item was already extended %d times.", models.MaxExtensions), true
	}
	return "", false
}

func itemLine(item *models.WishItem, now time.Time) string {
	line := fmt.Sprintf("%s `%s` *%s* %s", item.Status.Emoji(), shortID(item.ID), escape(item.Name), formatPrice(item.Price))
	switch {
	case item.IsWaitingComplete(now):
		line += " (ready to decide)"
	case item.IsWaiting():
		line += fmt.Sprintf(" (%d days left, %d%%)", item.DaysRemaining(now), int(item.Progress(now)*100))
	}
	return line
}

// decisionKeyboard offers the actions available for a waiting item
func decisionKeyboard(item *models.WishItem) tgbotapi.InlineKeyboardMarkup {
	id := item.ID.String()
	row := tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("💸 Buy", telegram.CallbackData(ActionBuy, id)),
		tgbotapi.NewInlineKeyboardButtonData("✅ Skip", telegram.CallbackData(ActionSkip, id)),
	)
	if item.CanExtend() {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf("⏳ +%d days", models.ExtensionDays), telegram.CallbackData(ActionExtend, id)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}
