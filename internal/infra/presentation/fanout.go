package presentation

import (
	"context"

	"ticketgate/internal/domain/model"
	"ticketgate/internal/domain/ports/adapter"
)

// Fanout publishes each event to every sink, in order.
type Fanout []adapter.PresentationSink

var _ adapter.PresentationSink = Fanout(nil)

func (f Fanout) Publish(ctx context.Context, ev model.Event) {
	for _, s := range f {
		if s != nil {
			s.Publish(ctx, ev)
		}
	}
}
