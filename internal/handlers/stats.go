package handlers

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/cooloff/internal/models"
	"github.com/Kerhoff/cooloff/internal/service"
)

// StatsHandler handles the /stats command
type StatsHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

func NewStatsHandler(svc *service.Service, logger *logrus.Logger) *StatsHandler {
	return &StatsHandler{svc: svc, logger: logger}
}

func (h *StatsHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	ctx := context.Background()
	user, err := registerSender(ctx, h.svc, message.From)
	if err != nil {
		return err
	}

	stats, err := h.svc.Stats(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	return sendMarkdown(bot, message.Chat.ID, statsText(stats))
}

func statsText(stats *models.UserStats) string {
	var sb strings.Builder
	sb.WriteString("📊 *Your statistics*\n\n")
	sb.WriteString(fmt.Sprintf("*This month*\n✅ Saved: %s\n💸 Spent: %s\n\n",
		formatPrice(stats.MonthlySavedAmount), formatPrice(stats.MonthlyPurchasedAmount)))
	sb.WriteString(fmt.Sprintf("*All time*\n✅ Saved: %s\n💸 Spent: %s\n🛡️ Prevention rate: %.0f%%\n\n",
		formatPrice(stats.TotalSavedAmount), formatPrice(stats.TotalPurchasedAmount), stats.PreventionRate))
	sb.WriteString(fmt.Sprintf("⏳ Waiting: %d items, %s", stats.WaitingCount, formatPrice(stats.TotalWaitingAmount)))
	if stats.ReadyCount > 0 {
		sb.WriteString(fmt.Sprintf("\n🔔 Ready to decide: %d (see /ready)", stats.ReadyCount))
	}
	return sb.String()
}

// PremiumHandler handles the /premium command. "/premium refresh" re-reads
// the subscription from the billing provider.
type PremiumHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

func NewPremiumHandler(svc *service.Service, logger *logrus.Logger) *PremiumHandler {
	return &PremiumHandler{svc: svc, logger: logger}
}

func (h *PremiumHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	ctx := context.Background()
	user, err := registerSender(ctx, h.svc, message.From)
	if err != nil {
		return err
	}

	var status *models.SubscriptionStatus
	if len(args) > 0 && strings.EqualFold(args[0], "refresh") {
		status, err = h.svc.RefreshSubscription(ctx, user.ID)
	} else {
		status, err = h.svc.Subscription(ctx, user.ID)
	}
	if err != nil {
		if text, ok := userMessage(err); ok {
			return sendMarkdown(bot, message.Chat.ID, text)
		}
		return fmt.Errorf("get subscription: %w", err)
	}

	return sendMarkdown(bot, message.Chat.ID, subscriptionText(status, h.svc))
}

func subscriptionText(status *models.SubscriptionStatus, svc *service.Service) string {
	now := svc.Now()

	var sb strings.Builder
	tier := models.SubscriptionTierFree
	if status.IsPremium(now) {
		tier = models.SubscriptionTierPremium
	}
	sb.WriteString(fmt.Sprintf("⭐ *Your plan: %s*\n", tier.DisplayName()))
	if days := status.DaysRemaining(now); days != nil && tier == models.SubscriptionTierPremium {
		sb.WriteString(fmt.Sprintf("Renews or expires in %d days\n", *days))
	}
	for _, f := range tier.Features() {
		sb.WriteString("• " + f + "\n")
	}

	if tier == models.SubscriptionTierFree {
		premium := models.SubscriptionTierPremium
		sb.WriteString(fmt.Sprintf("\n*%s* (%s)\n", premium.DisplayName(), premium.PriceText()))
		for _, f := range premium.Features() {
			sb.WriteString("• " + f + "\n")
		}
		if svc.BillingEnabled() {
			sb.WriteString("\nAlready subscribed? Send `/premium refresh`.")
		}
	}
	return sb.String()
}
