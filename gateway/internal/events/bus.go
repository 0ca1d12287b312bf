package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/leadgate/leadgate/common/logging"
	"github.com/leadgate/leadgate/gateway/internal/metrics"
)

// Handler receives one published event.
type Handler func(ctx context.Context, event any) error

type subscriber struct {
	name    string
	handler Handler
}

// Bus delivers events synchronously to subscribers in registration order.
// A failing or panicking subscriber is logged and skipped; the remaining
// subscribers still receive the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Type][]subscriber
	logger *slog.Logger
}

// NewBus creates an empty bus. A nil logger falls back to slog.Default().
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[Type][]subscriber),
		logger: logger.With(slog.String("component", "bus")),
	}
}

// Subscribe registers h for eventType. name identifies the subscriber in logs.
func (b *Bus) Subscribe(eventType Type, name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventType] = append(b.subs[eventType], subscriber{name: name, handler: h})
}

// Subscribers returns the subscriber names for eventType in delivery order.
func (b *Bus) Subscribers(eventType Type) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.subs[eventType]))
	for _, s := range b.subs[eventType] {
		names = append(names, s.name)
	}
	return names
}

// Publish calls every subscriber of eventType in order on the calling
// goroutine. Subscribers may publish further events. The returned error
// joins all subscriber failures; it is informational only.
func (b *Bus) Publish(ctx context.Context, eventType Type, event any) error {
	b.mu.RLock()
	subs := b.subs[eventType]
	b.mu.RUnlock()

	var errs []error
	for _, s := range subs {
		if err := b.deliver(ctx, eventType, s, event); err != nil {
			metrics.BusHandlerFailures.WithLabelValues(string(eventType)).Inc()
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

func (b *Bus) deliver(ctx context.Context, eventType Type, s subscriber, event any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.ErrorContext(ctx, "subscriber panicked",
				logging.EventType(string(eventType)),
				slog.String("subscriber", s.name),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if err := s.handler(ctx, event); err != nil {
		b.logger.ErrorContext(ctx, "subscriber failed",
			logging.EventType(string(eventType)),
			slog.String("subscriber", s.name),
			logging.Error(err),
		)
		return err
	}
	return nil
}

// On adapts a typed handler. Events of any other type are reported as errors.
func On[T any](fn func(ctx context.Context, event T) error) Handler {
	return func(ctx context.Context, event any) error {
		typed, ok := event.(T)
		if !ok {
			var zero T
			return fmt.Errorf("unexpected event %T, want %T", event, zero)
		}
		return fn(ctx, typed)
	}
}
