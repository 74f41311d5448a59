// Package messaging provides event delivery: a local in-process dispatcher
// and an AWS EventBridge publisher for cross-service fan-out.
package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"analyst-backend/application/ports"
	"analyst-backend/domain/events"
)

// EventHandler processes one domain event.
type EventHandler func(ctx context.Context, event events.DomainEvent) error

// Dispatcher delivers domain events to in-process subscribers. A handler
// failure is logged and never fails the publishing operation.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]EventHandler
	logger   *zap.Logger
}

// NewDispatcher creates an empty local dispatcher
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string][]EventHandler),
		logger:   logger,
	}
}

// Subscribe registers a handler for the given event type
func (d *Dispatcher) Subscribe(eventType string, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// Publish delivers each event to its subscribers
func (d *Dispatcher) Publish(ctx context.Context, domainEvents ...events.DomainEvent) error {
	for _, event := range domainEvents {
		d.dispatch(ctx, event)
	}
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, event events.DomainEvent) {
	d.mu.RLock()
	handlers := d.handlers[event.EventType()]
	d.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	start := time.Now()
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			d.logger.Error("event handler failed",
				zap.String("eventType", event.EventType()),
				zap.String("aggregateId", event.AggregateID()),
				zap.Error(err))
		}
	}
	d.logger.Debug("event dispatched",
		zap.String("eventType", event.EventType()),
		zap.String("aggregateId", event.AggregateID()),
		zap.Int("handlers", len(handlers)),
		zap.Duration("duration", time.Since(start)))
}

// Fanout publishes to several publishers in order, collecting the first error.
type Fanout struct {
	targets []ports.EventPublisher
}

// NewFanout creates a publisher that forwards to every target
func NewFanout(targets ...ports.EventPublisher) *Fanout {
	return &Fanout{targets: targets}
}

// Publish forwards the events to every target
func (f *Fanout) Publish(ctx context.Context, domainEvents ...events.DomainEvent) error {
	var firstErr error
	for _, target := range f.targets {
		if err := target.Publish(ctx, domainEvents...); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("fanout publish: %w", err)
		}
	}
	return firstErr
}
