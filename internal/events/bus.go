// Package events provides the fire-and-forget fan-out bus that carries
// domain events to downstream consumers (live broadcast, analytics).
// Each handler is invoked independently; a handler failure or panic is
// logged and counted but never reaches the publishing caller.
package events

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/b3hniya/tenderd-fms-sub000/internal/domain"
	"github.com/b3hniya/tenderd-fms-sub000/internal/metrics"
)

// Handler consumes one domain event. Errors are isolated per handler.
type Handler interface {
	Name() string
	Handle(ctx context.Context, event domain.Event) error
}

// Bus fans events out to zero or more handlers.
type Bus struct {
	handlers []Handler
	logger   *zap.Logger
}

func NewBus(logger *zap.Logger, handlers ...Handler) *Bus {
	return &Bus{handlers: handlers, logger: logger}
}

// Publish delivers the event to every handler. Best-effort by contract:
// nothing a handler does can fail the caller.
func (b *Bus) Publish(ctx context.Context, event domain.Event) {
	for _, h := range b.handlers {
		if err := b.dispatch(ctx, h, event); err != nil {
			metrics.PublishFailures.WithLabelValues(h.Name()).Inc()
			b.logger.Error("event handler failed",
				zap.String("handler", h.Name()),
				zap.String("event", event.EventName()),
				zap.Error(err),
			)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, h Handler, event domain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(ctx, event)
}
