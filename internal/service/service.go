package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Kerhoff/cooloff/internal/metrics"
	"github.com/Kerhoff/cooloff/internal/models"
	"github.com/Kerhoff/cooloff/internal/repository"
	"github.com/Kerhoff/cooloff/internal/validator"
	"github.com/sirupsen/logrus"
)

var (
	ErrItemNotFound    = errors.New("wish item not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrFreeTierLimit   = errors.New("free tier waiting item limit reached")
	ErrBillingDisabled = errors.New("billing is not configured")
	ErrInvalidImage    = errors.New("invalid item image")
	ErrItemChanged     = errors.New("wish item was changed by another request, try again")
)

// EntitlementSource returns the products a billing customer currently holds
type EntitlementSource interface {
	Entitlements(ctx context.Context, customerID string) ([]models.Entitlement, error)
}

// ImageNormalizer turns an uploaded picture into the stored representation
type ImageNormalizer interface {
	Normalize(data []byte) ([]byte, error)
}

// Repositories bundles the storage the service works against
type Repositories struct {
	Users         repository.UserRepository
	Items         repository.WishItemRepository
	Stats         repository.StatsRepository
	Subscriptions repository.SubscriptionRepository
	Reminders     repository.ReminderRepository
}

// Options configures optional collaborators and policy. Zero values fall
// back to the defaults of the models package and the wall clock.
type Options struct {
	WaitingDays   int
	FreeItemLimit int
	Entitlements  EntitlementSource
	Images        ImageNormalizer
	Metrics       *metrics.Metrics
	Now           func() time.Time
}

// Service is the central business logic layer. Every user-facing surface
// (bot handlers, HTTP API, background workers) goes through it.
type Service struct {
	logger        *logrus.Logger
	users         repository.UserRepository
	items         repository.WishItemRepository
	stats         repository.StatsRepository
	subscriptions repository.SubscriptionRepository
	reminders     repository.ReminderRepository

	entitlements EntitlementSource
	images       ImageNormalizer
	metrics      *metrics.Metrics
	validate     *validator.Validator

	waitingDays int
	freeLimit   int
	now         func() time.Time
}

// New creates a new Service with all required dependencies.
func New(logger *logrus.Logger, repos Repositories, opts Options) *Service {
	s := &Service{
		logger:        logger,
		users:         repos.Users,
		items:         repos.Items,
		stats:         repos.Stats,
		subscriptions: repos.Subscriptions,
		reminders:     repos.Reminders,
		entitlements:  opts.Entitlements,
		images:        opts.Images,
		metrics:       opts.Metrics,
		validate:      validator.New(),
		waitingDays:   opts.WaitingDays,
		freeLimit:     opts.FreeItemLimit,
		now:           opts.Now,
	}
	if s.waitingDays <= 0 {
		s.waitingDays = models.DefaultWaitingDays
	}
	if s.freeLimit <= 0 {
		s.freeLimit = models.DefaultFreeItemLimit
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// BillingEnabled reports whether an entitlement source is wired in
func (s *Service) BillingEnabled() bool {
	return s.entitlements != nil
}

// WaitingDays returns the cooling-off window applied to new items
func (s *Service) WaitingDays() int {
	return s.waitingDays
}

// Now returns the service clock
func (s *Service) Now() time.Time {
	return s.now()
}

// RegisterUser retrieves an existing user by Telegram ID, or creates a new one
// if not found. Changed profile fields (username, first name, last name) are
// written back.
func (s *Service) RegisterUser(ctx context.Context, telegramID int64, username, firstName, lastName string) (*models.User, error) {
	username = strings.TrimSpace(username)
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)

	user, err := s.users.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup user (telegram_id=%d): %w", telegramID, err)
	}
	if user == nil {
		user = &models.User{
			TelegramID:       telegramID,
			TelegramUsername: username,
			FirstName:        firstName,
			LastName:         lastName,
			IsActive:         true,
		}
		user, err = s.users.Create(ctx, user)
		if err != nil {
			return nil, fmt.Errorf("failed to create user (telegram_id=%d): %w", telegramID, err)
		}
		s.logger.Infof("Created new user: %s (telegram_id=%d)", user.DisplayName(), telegramID)
		return user, nil
	}

	if user.TelegramUsername == username && user.FirstName == firstName && user.LastName == lastName {
		return user, nil
	}

	user.TelegramUsername = username
	user.FirstName = firstName
	user.LastName = lastName
	user, err = s.users.Update(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to update user (telegram_id=%d): %w", telegramID, err)
	}
	s.logger.Infof("Updated user profile: %s (telegram_id=%d)", user.DisplayName(), telegramID)

	return user, nil
}

// GetUser returns the user with the given internal ID
func (s *Service) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
