package events

import (
	"context"
	"sync"
	"time"

	"leadpilot_backend/platform/logger"
)

// InMemoryBus is a process-local Bus implementation. Async handlers run in
// their own goroutine with a bounded timeout so a slow subscriber cannot
// stall the publisher.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *logger.Logger
	wg       sync.WaitGroup
}

// NewInMemoryBus creates a bus with no registered handlers.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

// Subscribe registers a handler for the given event name.
func (b *InMemoryBus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// Publish dispatches the event to all handlers asynchronously.
// Handler errors are logged, never propagated to the publisher.
func (b *InMemoryBus) Publish(_ context.Context, event Event) {
	b.mu.RLock()
	handlers := b.handlers[event.EventName()]
	b.mu.RUnlock()

	for _, h := range handlers {
		b.wg.Add(1)
		go func(h Handler) {
			defer b.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := h.Handle(ctx, event); err != nil {
				b.log.Error("event_handler_failed",
					"event", event.EventName(),
					"error", err.Error(),
				)
			}
		}(h)
	}
}

// PublishSync dispatches the event and waits for every handler.
// The first handler error is returned.
func (b *InMemoryBus) PublishSync(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := b.handlers[event.EventName()]
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h.Handle(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// Wait blocks until all in-flight async handlers finish. Used during shutdown.
func (b *InMemoryBus) Wait() {
	b.wg.Wait()
}
