package telegram

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ticketgate/internal/domain/ports/adapter"
)

var _ adapter.TelegramMessenger = (*RealBot)(nil)

// RealBot sends plain-text messages through the Telegram Bot API.
type RealBot struct {
	bot *tgbotapi.BotAPI
}

// NewRealBot authenticates the token with getMe.
func NewRealBot(token string) (*RealBot, error) {
	return NewRealBotWithEndpoint(token, tgbotapi.APIEndpoint, nil)
}

// NewRealBotWithEndpoint targets a custom API endpoint, in the
// "https://host/bot%s/%s" form, with an optional HTTP client.
func NewRealBotWithEndpoint(token, endpoint string, client tgbotapi.HTTPClient) (*RealBot, error) {
	if token == "" {
		return nil, errors.New("telegram token is empty")
	}
	var (
		bot *tgbotapi.BotAPI
		err error
	)
	if client != nil {
		bot, err = tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	} else {
		bot, err = tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	}
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return &RealBot{bot: bot}, nil
}

func (r *RealBot) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := r.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	return nil
}

// Username of the authenticated bot.
func (r *RealBot) Username() string { return r.bot.Self.UserName }
