package presentation

import (
	"context"

	"github.com/rs/zerolog"

	"ticketgate/internal/domain/model"
	"ticketgate/internal/domain/ports/adapter"
	"ticketgate/internal/infra/worker"
)

var _ adapter.PresentationSink = (*AsyncSink)(nil)

// AsyncSink hands events for a slow sink to the worker pool so the scan loop never waits on it.
// Events are dropped when the pool queue is full.
type AsyncSink struct {
	inner adapter.PresentationSink
	pool  *worker.Pool
	log   *zerolog.Logger
}

func NewAsyncSink(inner adapter.PresentationSink, pool *worker.Pool, logger *zerolog.Logger) *AsyncSink {
	l := logger.With().Str("component", "AsyncSink").Logger()
	return &AsyncSink{inner: inner, pool: pool, log: &l}
}

func (s *AsyncSink) Publish(ctx context.Context, ev model.Event) {
	detached := context.WithoutCancel(ctx)
	err := s.pool.Submit(func(context.Context) error {
		s.inner.Publish(detached, ev)
		return nil
	})
	if err != nil {
		s.log.Warn().Err(err).Str("event", string(ev.Kind)).Msg("event dropped")
	}
}
