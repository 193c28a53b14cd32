package presentation

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"ticketgate/internal/domain/model"
	"ticketgate/internal/domain/ports/adapter"
	"ticketgate/internal/infra/i18n"
)

var _ adapter.PresentationSink = (*TelegramSink)(nil)

// TelegramSink reports concluded sessions to staff chats. Progress events are skipped.
type TelegramSink struct {
	bot     adapter.TelegramMessenger
	chatIDs []int64
	tr      *i18n.Translator
	station string
	log     *zerolog.Logger
}

func NewTelegramSink(bot adapter.TelegramMessenger, chatIDs []int64, tr *i18n.Translator, station string, logger *zerolog.Logger) *TelegramSink {
	l := logger.With().Str("component", "TelegramSink").Logger()
	return &TelegramSink{bot: bot, chatIDs: chatIDs, tr: tr, station: station, log: &l}
}

func (s *TelegramSink) Publish(ctx context.Context, ev model.Event) {
	if !ev.Kind.Terminal() || ev.Kind == model.EventCancelled {
		return
	}
	text := s.format(ev)
	for _, id := range s.chatIDs {
		if err := s.bot.SendMessage(ctx, id, text); err != nil {
			s.log.Warn().Err(err).Int64("chat_id", id).Msg("notify failed")
		}
	}
}

func (s *TelegramSink) format(ev model.Event) string {
	mark := "❌"
	if ev.Success {
		mark = "✅"
	}
	var b strings.Builder
	b.WriteString(mark + " " + localize(s.tr, ev))
	if ev.Success && ev.Record != nil {
		if ev.Record.Key != "" {
			b.WriteString("\n" + ev.Record.Key)
		}
		b.WriteString("\n" + ev.Record.Name)
	}
	if s.station != "" {
		b.WriteString("\n@" + s.station)
	}
	return b.String()
}
