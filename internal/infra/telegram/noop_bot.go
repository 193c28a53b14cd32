package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"ticketgate/internal/domain/ports/adapter"
)

var _ adapter.TelegramMessenger = (*NoopBot)(nil)

// NoopBot logs messages instead of sending them; used when no token is configured.
type NoopBot struct {
	log *zerolog.Logger
}

func NewNoopBot(logger *zerolog.Logger) *NoopBot {
	l := logger.With().Str("component", "NoopTelegram").Logger()
	return &NoopBot{log: &l}
}

func (b *NoopBot) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.log.Debug().Int64("chat_id", chatID).Str("text", text).Msg("message suppressed")
	return nil
}
