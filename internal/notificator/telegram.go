package notificator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	tgModels "github.com/go-telegram/bot/models"

	"github.com/promohive/rewards/internal/models"
	"github.com/promohive/rewards/pkg/logger"
)

type TelegramNotificator struct {
	logger *logger.Logger
	bot    *bot.Bot

	db models.Repository
}

// NewTelegramNotificator connects the bot. Users link their chat by sending
// "/start <token>" with a token from POST /api/v1/telegram/link.
func NewTelegramNotificator(logger *logger.Logger, token string, db models.Repository) (*TelegramNotificator, error) {
	provider := &TelegramNotificator{
		logger: logger.Named("telegram"),
		db:     db,
	}
	opts := []bot.Option{
		bot.WithDefaultHandler(provider.handler),
	}

	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	provider.bot = b

	return provider, nil
}

// Start polls for updates until ctx is cancelled.
func (t *TelegramNotificator) Start(ctx context.Context) {
	go t.bot.Start(ctx)
}

func (t *TelegramNotificator) SendNotification(chatID string, notification *models.Notification) error {
	return t.send(context.Background(), chatID, notification.String())
}

func (t *TelegramNotificator) send(ctx context.Context, chatID, text string) error {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}
	if _, err := t.bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

func (t *TelegramNotificator) handler(ctx context.Context, b *bot.Bot, update *tgModels.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	t.logger.Debug("Telegram update", "username", update.Message.From.Username, "text", update.Message.Text)

	token, ok := parseStartCommand(update.Message.Text)
	if !ok {
		return
	}
	chatID := fmt.Sprint(update.Message.Chat.ID)
	if reply := t.linkChat(token, chatID); reply != "" {
		t.reply(ctx, chatID, reply)
	}
}

// linkChat consumes a link token and returns the reply for the chat. An empty
// reply means nothing should be sent.
func (t *TelegramNotificator) linkChat(token, chatID string) string {
	if token == "" {
		return "Open your PromoHive account and request a Telegram link, then send /start followed by the token."
	}
	userID, err := t.db.LinkTelegramChat(token, chatID, time.Now().Unix())
	if errors.Is(err, models.ErrTelegramLinkInvalid) {
		return "This link is invalid or has expired. Request a new one from your account."
	}
	if err != nil {
		t.logger.Error("Failed to link telegram chat", "error", err)
		return ""
	}
	t.logger.Info("Telegram chat linked", "user_id", userID)
	return "You will now receive PromoHive notifications here."
}

func (t *TelegramNotificator) reply(ctx context.Context, chatID, text string) {
	if err := t.send(ctx, chatID, text); err != nil {
		t.logger.Error("Failed to reply", "error", err)
	}
}

// parseStartCommand extracts the argument of "/start <token>".
func parseStartCommand(text string) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || fields[0] != "/start" {
		return "", false
	}
	if len(fields) < 2 {
		return "", true
	}
	return strings.ToLower(fields[1]), true
}
