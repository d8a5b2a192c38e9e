package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kerhoff/cooloff/internal/api"
	"github.com/Kerhoff/cooloff/internal/billing"
	"github.com/Kerhoff/cooloff/internal/config"
	"github.com/Kerhoff/cooloff/internal/handlers"
	"github.com/Kerhoff/cooloff/internal/imageproc"
	"github.com/Kerhoff/cooloff/internal/metrics"
	"github.com/Kerhoff/cooloff/internal/repository/memory"
	"github.com/Kerhoff/cooloff/internal/repository/postgres"
	"github.com/Kerhoff/cooloff/internal/service"
	"github.com/Kerhoff/cooloff/internal/telegram"
	"github.com/Kerhoff/cooloff/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l := logger.New(cfg.LogLevel)
	l.Info("Starting Cooloff...")

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		l.Info("Received shutdown signal...")
		cancel()
	}()

	// Storage
	var repos service.Repositories
	switch cfg.Storage {
	case config.StorageMemory:
		l.Warn("Using in-memory storage, data will be lost on restart")
		store := memory.New()
		repos = service.Repositories{
			Users:         store.Users(),
			Items:         store.Items(),
			Stats:         store.Stats(),
			Subscriptions: store.Subscriptions(),
			Reminders:     store.Reminders(),
		}
	default:
		db, err := config.NewDatabase(ctx, cfg.DatabaseURL, cfg.DatabasePool, l)
		if err != nil {
			l.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := db.Migrate(cfg.MigrationsPath); err != nil {
			l.Fatalf("Failed to run migrations: %v", err)
		}

		repos = service.Repositories{
			Users:         postgres.NewUserRepository(db.DB),
			Items:         postgres.NewWishItemRepository(db.DB),
			Stats:         postgres.NewStatsRepository(db.DB),
			Subscriptions: postgres.NewSubscriptionRepository(db.DB),
			Reminders:     postgres.NewReminderRepository(db.DB),
		}
	}

	m := metrics.New()

	opts := service.Options{
		WaitingDays:   cfg.WaitingDays,
		FreeItemLimit: cfg.FreeItemLimit,
		Images:        imageproc.NewProcessor(800, 85),
		Metrics:       m,
	}
	if cfg.BillingEnabled() {
		opts.Entitlements = billing.NewStripeSource(cfg.StripeSecretKey, cfg.StripePremiumPriceID, l)
		l.Info("Stripe billing enabled")
	}

	// Service layer
	svc := service.New(l, repos, opts)

	// Telegram bot
	bot, err := telegram.NewBot(cfg.TelegramToken, l)
	if err != nil {
		l.Fatalf("Failed to create Telegram bot: %v", err)
	}

	bot.RegisterCommand("start", handlers.NewStartHandler(svc, l))
	bot.RegisterCommand("help", handlers.NewHelpHandler(l))

	// Item handlers
	bot.RegisterCommand("add", handlers.NewAddHandler(svc, l))
	bot.RegisterCommand("list", handlers.NewListHandler(svc, l, service.ItemFilterWaiting))
	bot.RegisterCommand("ready", handlers.NewListHandler(svc, l, service.ItemFilterReady))
	bot.RegisterCommand("delete", handlers.NewDeleteHandler(svc, l))

	// Decisions
	bot.RegisterCommand(handlers.ActionBuy, handlers.NewDecisionHandler(svc, l, handlers.ActionBuy))
	bot.RegisterCommand(handlers.ActionSkip, handlers.NewDecisionHandler(svc, l, handlers.ActionSkip))
	bot.RegisterCommand(handlers.ActionExtend, handlers.NewDecisionHandler(svc, l, handlers.ActionExtend))

	decisions := handlers.NewDecisionCallbackHandler(svc, l)
	bot.RegisterCallback(handlers.ActionBuy, decisions)
	bot.RegisterCallback(handlers.ActionSkip, decisions)
	bot.RegisterCallback(handlers.ActionExtend, decisions)

	// Account
	bot.RegisterCommand("stats", handlers.NewStatsHandler(svc, l))
	bot.RegisterCommand("premium", handlers.NewPremiumHandler(svc, l))

	// Background workers
	go svc.StartReminderScheduler(ctx, cfg.ReminderInterval, handlers.NewReminderSender(bot))
	go svc.StartSubscriptionWorker(ctx, cfg.SubscriptionSweepInterval)

	// HTTP API
	apiServer := api.NewServer(svc, billing.NewWebhookVerifier(cfg.StripeWebhookSecret), l)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		l.Infof("HTTP server listening on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Errorf("HTTP server error: %v", err)
		}
	}()

	// Metrics
	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", m.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.PrometheusPort,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		l.Infof("Metrics server listening on :%s", cfg.PrometheusPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Errorf("Metrics server error: %v", err)
		}
	}()

	// Start Telegram bot polling
	go func() {
		if err := bot.Start(ctx); err != nil {
			l.Errorf("Bot error: %v", err)
		}
	}()

	l.Info("Cooloff started successfully")

	<-ctx.Done()

	l.Info("Shutting down HTTP servers...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		l.Errorf("HTTP server shutdown error: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		l.Errorf("Metrics server shutdown error: %v", err)
	}

	l.Info("Cooloff stopped")
}
