package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Router handles message routing and command parsing
type Router struct {
	logger    *logrus.Logger
	handlers  map[string]CommandHandler
	callbacks map[string]CallbackHandler
}

// CommandHandler defines the interface for command handlers
type CommandHandler interface {
	Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error
}

// CallbackHandler handles inline keyboard presses. Callback data has the
// form "<action>:<payload>"; the handler receives both parts.
type CallbackHandler interface {
	HandleCallback(bot *tgbotapi.BotAPI, query *tgbotapi.CallbackQuery, action, payload string) error
}

// NewRouter creates a new message router
func NewRouter(logger *logrus.Logger) *Router {
	return &Router{
		logger:    logger,
		handlers:  make(map[string]CommandHandler),
		callbacks: make(map[string]CallbackHandler),
	}
}

// RegisterCommand registers a command handler
func (r *Router) RegisterCommand(command string, handler CommandHandler) {
	r.handlers[command] = handler
	r.logger.Debugf("Registered command: %s", command)
}

// RegisterCallback registers a handler for one callback action
func (r *Router) RegisterCallback(action string, handler CallbackHandler) {
	r.callbacks[action] = handler
	r.logger.Debugf("Registered callback action: %s", action)
}

// HandleMessage handles incoming messages
func (r *Router) HandleMessage(bot *tgbotapi.BotAPI, message *tgbotapi.Message) {
	if message.From == nil {
		return
	}

	r.logger.WithFields(logrus.Fields{
		"chat_id":    message.Chat.ID,
		"user_id":    message.From.ID,
		"username":   message.From.UserName,
		"message_id": message.MessageID,
		"text":       message.Text,
	}).Info("Received message")

	if message.Text == "" || !message.IsCommand() {
		return
	}

	command := message.Command()
	args := strings.Fields(message.CommandArguments())

	handler, exists := r.handlers[command]
	if !exists {
		r.logger.WithFields(logrus.Fields{
			"command": command,
			"chat_id": message.Chat.ID,
			"user_id": message.From.ID,
		}).Warn("Unknown command")

		unknownMsg := tgbotapi.NewMessage(message.Chat.ID, "❓ Unknown command. Use /help to see available commands.")
		bot.Send(unknownMsg)
		return
	}

	if err := handler.Handle(bot, message, args); err != nil {
		r.logger.WithFields(logrus.Fields{
			"command": command,
			"chat_id": message.Chat.ID,
			"user_id": message.From.ID,
			"error":   err,
		}).Error("Command handler failed")

		errorMsg := tgbotapi.NewMessage(message.Chat.ID, "❌ An error occurred while processing your command. Please try again.")
		bot.Send(errorMsg)
	}
}

// HandleCallbackQuery dispatches inline keyboard presses by action. The
// handler is responsible for answering the query.
func (r *Router) HandleCallbackQuery(bot *tgbotapi.BotAPI, callbackQuery *tgbotapi.CallbackQuery) {
	r.logger.WithFields(logrus.Fields{
		"callback_id": callbackQuery.ID,
		"user_id":     callbackQuery.From.ID,
		"data":        callbackQuery.Data,
	}).Info("Received callback query")

	action, payload := ParseCallbackData(callbackQuery.Data)
	handler, exists := r.callbacks[action]
	if !exists {
		bot.Request(tgbotapi.NewCallback(callbackQuery.ID, ""))
		r.logger.WithField("action", action).Warn("Unknown callback action")
		return
	}

	if err := handler.HandleCallback(bot, callbackQuery, action, payload); err != nil {
		r.logger.WithFields(logrus.Fields{
			"action":  action,
			"user_id": callbackQuery.From.ID,
			"error":   err,
		}).Error("Callback handler failed")

		bot.Request(tgbotapi.NewCallbackWithAlert(callbackQuery.ID, "❌ Something went wrong. Please try again."))
	}
}

// CallbackData builds the data string carried by an inline button
func CallbackData(action, payload string) string {
	return action + ":" + payload
}

// ParseCallbackData splits data produced by CallbackData
func ParseCallbackData(data string) (action, payload string) {
	action, payload, _ = strings.Cut(data, ":")
	return action, payload
}
