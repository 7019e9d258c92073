package cache

import (
	"context"
	"log/slog"

	"github.com/matiasleandrokruk/solidstate/internal/infra/eventbus"
	"github.com/matiasleandrokruk/solidstate/internal/infra/metrics"
)

// Writer drains TopicCompleted events into a Store.
type Writer struct {
	store   *Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewWriter creates a Writer. m may be nil.
func NewWriter(store *Store, logger *slog.Logger, m *metrics.Metrics) *Writer {
	return &Writer{store: store, logger: logger, metrics: m}
}

// Start subscribes to bus and runs until ctx is done or the bus is closed.
// It returns a channel closed when the loop exits.
func (w *Writer) Start(ctx context.Context, bus eventbus.EventBus) <-chan struct{} {
	events := bus.Subscribe(TopicCompleted)
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.run(ctx, events)
	}()
	return done
}

func (w *Writer) run(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			w.handle(ctx, evt)
		}
	}
}

func (w *Writer) handle(ctx context.Context, evt eventbus.Event) {
	e, ok := evt.Payload.(Entry)
	if !ok {
		w.logger.Warn("cache.writer.unexpected_payload", "topic", evt.Topic)
		return
	}
	if err := w.store.Put(ctx, e); err != nil {
		w.metrics.CacheEvent(e.Op, "error")
		w.logger.Error("cache.writer.put_failed", "op", e.Op, "request_hash", e.RequestHash, "error", err)
		return
	}
	w.metrics.CacheEvent(e.Op, "stored")
}
