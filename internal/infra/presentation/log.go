package presentation

import (
	"context"

	"github.com/rs/zerolog"

	"ticketgate/internal/domain/model"
	"ticketgate/internal/domain/ports/adapter"
	"ticketgate/internal/infra/logging"
)

var _ adapter.PresentationSink = (*LogSink)(nil)

// LogSink writes every event to the structured log.
type LogSink struct {
	log *zerolog.Logger
	dev bool
}

func NewLogSink(logger *zerolog.Logger, dev bool) *LogSink {
	l := logger.With().Str("component", "LogSink").Logger()
	return &LogSink{log: &l, dev: dev}
}

func (s *LogSink) Publish(_ context.Context, ev model.Event) {
	lvl := zerolog.DebugLevel
	if ev.Kind.Terminal() {
		lvl = zerolog.InfoLevel
	}
	e := s.log.WithLevel(lvl).
		Str("session_id", ev.SessionID).
		Str("event", string(ev.Kind)).
		Bool("success", ev.Success).
		Time("at", ev.At)
	if ev.Record != nil {
		e = e.Str("holder", logging.Redact(ev.Record.Name, s.dev))
	}
	e.Msg(ev.Message)
}
