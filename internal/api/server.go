package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Kerhoff/cooloff/internal/billing"
	"github.com/Kerhoff/cooloff/internal/models"
	"github.com/Kerhoff/cooloff/internal/service"
	"github.com/Kerhoff/cooloff/internal/validator"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	maxWebhookBody = 64 << 10
	// maxJSONBody fits a base64 encoded image of imageproc.MaxInputBytes
	maxJSONBody = 16 << 20
)

// Server provides the JSON HTTP API and the Stripe webhook endpoint.
type Server struct {
	svc      *service.Service
	webhooks *billing.WebhookVerifier
	logger   *logrus.Logger
	mux      *http.ServeMux
}

// NewServer creates a Server, registers all routes, and returns it. A nil
// webhooks verifier disables the Stripe webhook endpoint.
func NewServer(svc *service.Service, webhooks *billing.WebhookVerifier, logger *logrus.Logger) *Server {
	s := &Server{svc: svc, webhooks: webhooks, logger: logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

// Handler returns the http.Handler that can be passed to http.Server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ---------------------------------------------------------------------------
// Routes
// ---------------------------------------------------------------------------

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	// API – Items
	s.mux.HandleFunc("GET /api/items", s.handleListItems)
	s.mux.HandleFunc("POST /api/items", s.handleAddItem)
	s.mux.HandleFunc("GET /api/items/{id}", s.handleGetItem)
	s.mux.HandleFunc("GET /api/items/{id}/image", s.handleGetItemImage)
	s.mux.HandleFunc("PUT /api/items/{id}/purchase", s.handlePurchaseItem)
	s.mux.HandleFunc("PUT /api/items/{id}/abandon", s.handleAbandonItem)
	s.mux.HandleFunc("PUT /api/items/{id}/extend", s.handleExtendItem)
	s.mux.HandleFunc("DELETE /api/items/{id}", s.handleDeleteItem)

	// API – Statistics
	s.mux.HandleFunc("GET /api/stats", s.handleGetStats)

	// API – Subscription
	s.mux.HandleFunc("GET /api/subscription", s.handleGetSubscription)
	s.mux.HandleFunc("POST /api/subscription/refresh", s.handleRefreshSubscription)
	s.mux.HandleFunc("PUT /api/subscription/customer", s.handleLinkCustomer)

	// Webhooks
	s.mux.HandleFunc("POST /api/webhooks/stripe", s.handleStripeWebhook)
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.WithError(err).Error("failed to encode JSON response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps service and domain errors to HTTP statuses.
// Anything unrecognised is logged and reported as a 500 with the action name.
func (s *Server) respondServiceError(w http.ResponseWriter, err error, action string) {
	var ve *validator.ValidationError
	switch {
	case errors.As(err, &ve):
		s.respondJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": ve.Errors,
		})
	case errors.Is(err, service.ErrItemNotFound):
		s.respondError(w, http.StatusNotFound, "item not found")
	case errors.Is(err, service.ErrUserNotFound):
		s.respondError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, service.ErrFreeTierLimit):
		s.respondError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, service.ErrInvalidImage):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrBillingDisabled):
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, service.ErrItemChanged),
		errors.Is(err, models.ErrNotWaiting),
		errors.Is(err, models.ErrExtensionLimit),
		errors.Is(err, models.ErrStillWaiting):
		s.respondError(w, http.StatusConflict, err.Error())
	default:
		s.logger.WithError(err).Errorf("failed to %s", action)
		s.respondError(w, http.StatusInternalServerError, "failed to "+action)
	}
}

// decodeJSON reads at most maxJSONBody bytes of the request body into dst.
// On failure it writes the error response and returns false.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		s.respondError(w, http.StatusBadRequest, "request body is empty")
		return false
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return false
	}
	return true
}

// pathID extracts the {id} path value as an item UUID.
func pathID(r *http.Request) (uuid.UUID, error) {
	raw := r.PathValue("id")
	if raw == "" {
		return uuid.Nil, fmt.Errorf("missing id in path")
	}
	return uuid.Parse(raw)
}

// requireUser reads the user_id query parameter and loads the user.  It
// writes an error response and returns nil when the parameter is absent,
// invalid or unknown.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) *models.User {
	raw := r.URL.Query().Get("user_id")
	if raw == "" {
		s.respondError(w, http.StatusBadRequest, "user_id query parameter is required")
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "user_id must be an integer")
		return nil
	}
	user, err := s.svc.GetUser(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, err, "get user")
		return nil
	}
	return user
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ---------------------------------------------------------------------------
// Items
// ---------------------------------------------------------------------------

// itemResponse adds the time-dependent views of an item. Image bytes are
// served separately.
type itemResponse struct {
	ID                  uuid.UUID             `json:"id"`
	Name                string                `json:"name"`
	Price               int64                 `json:"price"`
	PurchaseURL         string                `json:"purchase_url,omitempty"`
	Memo                string                `json:"memo,omitempty"`
	HasImage            bool                  `json:"has_image"`
	Status              models.WishItemStatus `json:"status"`
	CreatedAt           time.Time             `json:"created_at"`
	WaitingUntil        time.Time             `json:"waiting_until"`
	DecidedAt           *time.Time            `json:"decided_at,omitempty"`
	ExtensionCount      int                   `json:"extension_count"`
	RemainingExtensions int                   `json:"remaining_extensions"`
	DaysRemaining       int                   `json:"days_remaining"`
	Progress            float64               `json:"progress"`
	Ready               bool                  `json:"ready"`
}

func (s *Server) newItemResponse(item *models.WishItem) itemResponse {
	now := s.svc.Now()
	return itemResponse{
		ID:                  item.ID,
		Name:                item.Name,
		Price:               item.Price,
		PurchaseURL:         item.PurchaseURL,
		Memo:                item.Memo,
		HasImage:            len(item.ImageData) > 0,
		Status:              item.Status,
		CreatedAt:           item.CreatedAt,
		WaitingUntil:        item.WaitingUntil,
		DecidedAt:           item.DecidedAt,
		ExtensionCount:      item.ExtensionCount,
		RemainingExtensions: item.RemainingExtensions(),
		DaysRemaining:       item.DaysRemaining(now),
		Progress:            item.Progress(now),
		Ready:               item.IsWaitingComplete(now),
	}
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	user := s.requireUser(w, r)
	if user == nil {
		return
	}

	filter, err := service.ParseItemFilter(r.URL.Query().Get("filter"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "filter must be one of all, waiting, completed, ready")
		return
	}

	items, err := s.svc.ListItems(r.Context(), user.ID, filter)
	if err != nil {
		s.respondServiceError(w, err, "list items")
		return
	}

	out := make([]itemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, s.newItemResponse(item))
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	user := s.requireUser(w, r)
	if user == nil {
		return
	}

	var req service.AddItemInput
	if !s.decodeJSON(w, r, &req) {
		return
	}

	item, err := s.svc.AddItem(r.Context(), user.ID, req)
	if err != nil {
		s.respondServiceError(w, err, "add item")
		return
	}

	s.respondJSON(w, http.StatusCreated, s.newItemResponse(item))
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	user := s.requireUser(w, r)
	if user == nil {
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := s.svc.GetItem(r.Context(), user.ID, id)
	if err != nil {
		s.respondServiceError(w, err, "get item")
		return
	}

	s.respondJSON(w, http.StatusOK, s.newItemResponse(item))
}

func (s *Server) handleGetItemImage(w http.ResponseWriter, r *http.Request) {
	user := s.requireUser(w, r)
	if user == nil {
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := s.svc.GetItem(r.Context(), user.ID, id)
	if err != nil {
		s.respondServiceError(w, err, "get item")
		return
	}
	if len(item.ImageData) == 0 {
		s.respondError(w, http.StatusNotFound, "item has no image")
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(item.ImageData))
	w.Header().Set("Content-Length", strconv.Itoa(len(item.ImageData)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(item.ImageData); err != nil {
		s.logger.WithError(err).Warn("failed to write item image")
	}
}

type itemAction func(svc *service.Service, r *http.Request, userID int64, id uuid.UUID) (*models.WishItem, error)

func (s *Server) handleItemAction(w http.ResponseWriter, r *http.Request, action string, fn itemAction) {
	user := s.requireUser(w, r)
	if user == nil {
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := fn(s.svc, r, user.ID, id)
	if err != nil {
		s.respondServiceError(w, err, action)
		return
	}

	s.respondJSON(w, http.StatusOK, s.newItemResponse(item))
}

func (s *Server) handlePurchaseItem(w http.ResponseWriter, r *http.Request) {
	s.handleItemAction(w, r, "purchase item", func(svc *service.Service, r *http.Request, userID int64, id uuid.UUID) (*models.WishItem, error) {
		return svc.PurchaseItem(r.Context(), userID, id)
	})
}

func (s *Server) handleAbandonItem(w http.ResponseWriter, r *http.Request) {
	s.handleItemAction(w, r, "abandon item", func(svc *service.Service, r *http.Request, userID int64, id uuid.UUID) (*models.WishItem, error) {
		return svc.AbandonItem(r.Context(), userID, id)
	})
}

func (s *Server) handleExtendItem(w http.ResponseWriter, r *http.Request) {
	s.handleItemAction(w, r, "extend item", func(svc *service.Service, r *http.Request, userID int64, id uuid.UUID) (*models.WishItem, error) {
		return svc.ExtendItem(r.Context(), userID, id)
	})
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	user := s.requireUser(w, r)
	if user == nil {
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	if err := s.svc.DeleteItem(r.Context(), user.ID, id); err != nil {
		s.respondServiceError(w, err, "delete item")
		return
	}

	s.respondJSON(w, http.StatusNoContent, nil)
}

// ---------------------------------------------------------------------------
// Statistics
// ---------------------------------------------------------------------------

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	user := s.requireUser(w, r)
	if user == nil {
		return
	}

	stats, err := s.svc.Stats(r.Context(), user.ID)
	if err != nil {
		s.respondServiceError(w, err, "get statistics")
		return
	}

	s.respondJSON(w, http.StatusOK, stats)
}

// ---------------------------------------------------------------------------
// Subscription
// ---------------------------------------------------------------------------

type subscriptionResponse struct {
	Tier          models.SubscriptionTier `json:"tier"`
	DisplayName   string                  `json:"display_name"`
	PriceText     string                  `json:"price_text"`
	Features      []string                `json:"features"`
	IsPremium     bool                    `json:"is_premium"`
	IsActive      bool                    `json:"is_active"`
	ExpiresAt     *time.Time              `json:"expires_at,omitempty"`
	PurchasedAt   *time.Time              `json:"purchased_at,omitempty"`
	DaysRemaining *int                    `json:"days_remaining,omitempty"`
}

func (s *Server) newSubscriptionResponse(status *models.SubscriptionStatus) subscriptionResponse {
	now := s.svc.Now()
	return subscriptionResponse{
		Tier:          status.Tier,
		DisplayName:   status.Tier.DisplayName(),
		PriceText:     status.Tier.PriceText(),
		Features:      status.Tier.Features(),
		IsPremium:     status.IsPremium(now),
		IsActive:      status.IsActive,
		ExpiresAt:     status.ExpiresAt,
		PurchasedAt:   status.PurchasedAt,
		DaysRemaining: status.DaysRemaining(now),
	}
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	user := s.requireUser(w, r)
	if user == nil {
		return
	}

	status, err := s.svc.Subscription(r.Context(), user.ID)
	if err != nil {
		s.respondServiceError(w, err, "get subscription")
		return
	}

	s.respondJSON(w, http.StatusOK, s.newSubscriptionResponse(status))
}

func (s *Server) handleRefreshSubscription(w http.ResponseWriter, r *http.Request) {
	user := s.requireUser(w, r)
	if user == nil {
		return
	}

	status, err := s.svc.RefreshSubscription(r.Context(), user.ID)
	if err != nil {
		s.respondServiceError(w, err, "refresh subscription")
		return
	}

	s.respondJSON(w, http.StatusOK, s.newSubscriptionResponse(status))
}

type linkCustomerRequest struct {
	CustomerID string `json:"customer_id"`
}

func (s *Server) handleLinkCustomer(w http.ResponseWriter, r *http.Request) {
	user := s.requireUser(w, r)
	if user == nil {
		return
	}

	var req linkCustomerRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.CustomerID) == "" {
		s.respondError(w, http.StatusBadRequest, "customer_id is required")
		return
	}

	if _, err := s.svc.LinkBillingCustomer(r.Context(), user.ID, req.CustomerID); err != nil {
		s.respondServiceError(w, err, "link billing customer")
		return
	}

	status, err := s.svc.Subscription(r.Context(), user.ID)
	if err != nil {
		s.respondServiceError(w, err, "get subscription")
		return
	}

	s.respondJSON(w, http.StatusOK, s.newSubscriptionResponse(status))
}

// ---------------------------------------------------------------------------
// Webhooks
// ---------------------------------------------------------------------------

// handleStripeWebhook refreshes the subscription of the customer an event
// refers to. Events that do not concern a known customer are acknowledged
// and ignored so Stripe stops retrying them.
func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if s.webhooks == nil {
		s.respondError(w, http.StatusServiceUnavailable, "stripe webhooks are not configured")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		s.respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	event, err := s.webhooks.Parse(payload, r.Header.Get("Stripe-Signature"))
	if errors.Is(err, billing.ErrNoCustomer) {
		s.logger.WithField("event_id", event.ID).Warn("Stripe event without customer ignored")
		s.respondJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if err != nil {
		s.logger.WithError(err).Warn("Rejected Stripe webhook")
		s.respondError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	log := s.logger.WithFields(logrus.Fields{"event_id": event.ID, "type": event.Type})
	if !event.AffectsSubscription() {
		log.Debug("Stripe event ignored")
		s.respondJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	_, err = s.svc.RefreshSubscriptionByCustomer(r.Context(), event.CustomerID)
	if errors.Is(err, service.ErrUserNotFound) {
		log.WithField("customer", event.CustomerID).Warn("Stripe event for unknown customer")
		s.respondJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if err != nil {
		s.respondServiceError(w, err, "refresh subscription")
		return
	}

	log.Info("Subscription refreshed from Stripe event")
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
