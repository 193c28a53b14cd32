package adapter

import (
	"context"

	"ticketgate/internal/domain/model"
)

// PresentationSink consumes session status events (flash, popup and text updates).
type PresentationSink interface {
	Publish(ctx context.Context, ev model.Event)
}

// SinkFunc adapts a function to PresentationSink.
type SinkFunc func(ctx context.Context, ev model.Event)

func (f SinkFunc) Publish(ctx context.Context, ev model.Event) { f(ctx, ev) }
