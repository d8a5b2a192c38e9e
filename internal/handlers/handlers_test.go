package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/cooloff/internal/models"
	"github.com/Kerhoff/cooloff/internal/repository/memory"
	"github.com/Kerhoff/cooloff/internal/service"
	"github.com/Kerhoff/cooloff/internal/validator"
	"github.com/Kerhoff/cooloff/pkg/logger"
)

type apiCall struct {
	method string
	params url.Values
}

// fakeTelegram records every Bot API call and answers with a generic message
type fakeTelegram struct {
	mu    sync.Mutex
	calls []apiCall
}

func (f *fakeTelegram) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	method := path.Base(r.URL.Path)

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{method: method, params: r.PostForm})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if method == "getMe" {
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Cooloff","username":"cooloff_bot"}}`))
		return
	}
	_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":10,"date":0,"chat":{"id":42,"type":"private"}}}`))
}

func (f *fakeTelegram) byMethod(method string) []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []apiCall
	for _, c := range f.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeTelegram) lastText(t *testing.T) string {
	t.Helper()
	sent := f.byMethod("sendMessage")
	require.NotEmpty(t, sent)
	return sent[len(sent)-1].params.Get("text")
}

type env struct {
	bot   *tgbotapi.BotAPI
	tg    *fakeTelegram
	svc   *service.Service
	now   *time.Time
	from  *tgbotapi.User
	store *memory.Store
}

func newEnv(t *testing.T) *env {
	t.Helper()
	tg := &fakeTelegram{}
	srv := httptest.NewServer(tg)
	t.Cleanup(srv.Close)

	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint("TOKEN", srv.URL+"/bot%s/%s")
	require.NoError(t, err)

	now := time.Date(2025, time.October, 10, 9, 0, 0, 0, time.UTC)
	e := &env{bot: bot, tg: tg, now: &now, store: memory.New()}
	e.from = &tgbotapi.User{ID: 42, FirstName: "Dana", UserName: "dana"}
	e.svc = service.New(logger.Discard(), service.Repositories{
		Users:         e.store.Users(),
		Items:         e.store.Items(),
		Stats:         e.store.Stats(),
		Subscriptions: e.store.Subscriptions(),
		Reminders:     e.store.Reminders(),
	}, service.Options{Now: func() time.Time { return *e.now }})
	return e
}

func (e *env) message() *tgbotapi.Message {
	return &tgbotapi.Message{MessageID: 1, From: e.from, Chat: &tgbotapi.Chat{ID: e.from.ID, Type: "private"}}
}

func (e *env) items(t *testing.T) []*models.WishItem {
	t.Helper()
	user, err := e.svc.RegisterUser(context.Background(), e.from.ID, e.from.UserName, e.from.FirstName, "")
	require.NoError(t, err)
	items, err := e.svc.ListItems(context.Background(), user.ID, service.ItemFilterAll)
	require.NoError(t, err)
	return items
}

func TestAddAndDecideThroughCommands(t *testing.T) {
	e := newEnv(t)
	l := logger.Discard()

	require.NoError(t, NewAddHandler(e.svc, l).Handle(e.bot, e.message(), []string{"Espresso", "machine", "₩450,000", "https://shop.example.com/e"}))
	assert.Contains(t, e.tg.lastText(t), "Cooling off")

	items := e.items(t)
	require.Len(t, items, 1)
	assert.Equal(t, "Espresso machine", items[0].Name)
	assert.Equal(t, int64(450000), items[0].Price)
	assert.Equal(t, "https://shop.example.com/e", items[0].PurchaseURL)
	ref := shortID(items[0].ID)

	require.NoError(t, NewDecisionHandler(e.svc, l, ActionBuy).Handle(e.bot, e.message(), []string{ref}))
	assert.Contains(t, e.tg.lastText(t), "Still cooling off")

	require.NoError(t, NewDecisionHandler(e.svc, l, ActionSkip).Handle(e.bot, e.message(), []string{ref}))
	assert.Contains(t, e.tg.lastText(t), "You saved ₩450,000")

	require.NoError(t, NewStatsHandler(e.svc, l).Handle(e.bot, e.message(), nil))
	assert.Contains(t, e.tg.lastText(t), "Prevention rate: 100%")

	require.NoError(t, NewDeleteHandler(e.svc, l).Handle(e.bot, e.message(), []string{ref}))
	assert.Empty(t, e.items(t))
}

func TestAddHandlerUsage(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, NewAddHandler(e.svc, logger.Discard()).Handle(e.bot, e.message(), []string{"Bike"}))

	assert.Contains(t, e.tg.lastText(t), "Usage")
	assert.Empty(t, e.items(t))
}

func TestReadyListSendsDecisionCards(t *testing.T) {
	e := newEnv(t)
	l := logger.Discard()
	require.NoError(t, NewAddHandler(e.svc, l).Handle(e.bot, e.message(), []string{"Jacket", "129000"}))

	*e.now = e.now.AddDate(0, 0, 7)

	require.NoError(t, NewListHandler(e.svc, l, service.ItemFilterReady).Handle(e.bot, e.message(), nil))

	last := e.tg.byMethod("sendMessage")
	card := last[len(last)-1]
	assert.Contains(t, card.params.Get("text"), "Time to decide")

	var markup tgbotapi.InlineKeyboardMarkup
	require.NoError(t, json.Unmarshal([]byte(card.params.Get("reply_markup")), &markup))
	require.Len(t, markup.InlineKeyboard, 1)
	assert.Len(t, markup.InlineKeyboard[0], 3)
}

func TestDecisionCallback(t *testing.T) {
	e := newEnv(t)
	l := logger.Discard()
	require.NoError(t, NewAddHandler(e.svc, l).Handle(e.bot, e.message(), []string{"Speaker", "99000"}))
	item := e.items(t)[0]

	query := &tgbotapi.CallbackQuery{ID: "cb1", From: e.from, Message: e.message()}
	h := NewDecisionCallbackHandler(e.svc, l)

	require.NoError(t, h.HandleCallback(e.bot, query, ActionExtend, item.ID.String()))
	edits := e.tg.byMethod("editMessageText")
	require.Len(t, edits, 1)
	assert.Contains(t, edits[0].params.Get("text"), "Extensions left: 2")

	*e.now = e.now.AddDate(0, 0, 14)
	require.NoError(t, h.HandleCallback(e.bot, query, ActionBuy, item.ID.String()))
	assert.Equal(t, models.WishItemStatusPurchased, e.items(t)[0].Status)

	require.NoError(t, h.HandleCallback(e.bot, query, ActionSkip, item.ID.String()))
	answers := e.tg.byMethod("answerCallbackQuery")
	require.NotEmpty(t, answers)
	assert.Equal(t, "true", answers[len(answers)-1].params.Get("show_alert"))
	assert.Contains(t, answers[len(answers)-1].params.Get("text"), "already been decided")
}

func TestReminderSender(t *testing.T) {
	e := newEnv(t)
	item := models.NewWishItem(1, "Guitar", 780000, *e.now, 7)
	item.Memo = "second hand is fine"

	send := NewReminderSender(botSender{e.bot})
	require.NoError(t, send(context.Background(), 42, item))

	text := e.tg.lastText(t)
	assert.Contains(t, text, "Guitar")
	assert.Contains(t, text, "₩780,000")
	assert.Contains(t, text, "waited 7 days")
}

type botSender struct{ api *tgbotapi.BotAPI }

func (s botSender) Send(c tgbotapi.Chattable) error {
	_, err := s.api.Send(c)
	return err
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "₩0", formatPrice(0))
	assert.Equal(t, "₩999", formatPrice(999))
	assert.Equal(t, "₩1,000", formatPrice(1000))
	assert.Equal(t, "₩3,990", formatPrice(3990))
	assert.Equal(t, "₩1,234,567", formatPrice(1234567))
}

func TestParsePrice(t *testing.T) {
	for raw, want := range map[string]int64{"359000": 359000, "₩3,990": 3990, "12000won": 12000, "5000원": 5000} {
		got, err := parsePrice(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
	for _, raw := range []string{"", "abc", "-5", "₩"} {
		_, err := parsePrice(raw)
		assert.Error(t, err, raw)
	}
}

func TestParseAddArgs(t *testing.T) {
	in, err := parseAddArgs([]string{"Nintendo", "Switch", "2", "398000"})
	require.NoError(t, err)
	assert.Equal(t, "Nintendo Switch 2", in.Name)
	assert.Equal(t, int64(398000), in.Price)
	assert.Empty(t, in.PurchaseURL)

	in, err = parseAddArgs([]string{"Mouse", "45000", "https://example.com/m"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/m", in.PurchaseURL)

	_, err = parseAddArgs([]string{"45000"})
	assert.Error(t, err)
	_, err = parseAddArgs([]string{"Mouse", "cheap"})
	assert.Error(t, err)
}

func TestStartRegistersUser(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, NewStartHandler(e.svc, logger.Discard()).Handle(e.bot, e.message(), nil))

	user, err := e.store.Users().GetByTelegramID(context.Background(), 42)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "dana", user.TelegramUsername)
	assert.Contains(t, e.tg.lastText(t), "Welcome to Cooloff, Dana")
}

func TestUserMessageEscapesValidationFields(t *testing.T) {
	text, ok := userMessage(&validator.ValidationError{Errors: map[string]string{
		"purchase_url": "Must be a valid URL",
	}})

	require.True(t, ok)
	assert.Equal(t, `❌ purchase\_url: Must be a valid URL`, text)
}

func TestUserMessageItemChanged(t *testing.T) {
	text, ok := userMessage(fmt.Errorf("extend: %w", service.ErrItemChanged))

	require.True(t, ok)
	assert.Contains(t, text, "try again")
}
