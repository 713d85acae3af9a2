// pkg/event/event.go
// Package event provides a simple publish-subscribe event bus for decoupled communication.
package event

import (
	"context"
	"sync"
)

// Handler is a function that handles an event.
type Handler func(ctx context.Context, data any)

// EventBus defines the interface for an event system.
type EventBus interface {
	Subscribe(event string, handler Handler)
	Publish(ctx context.Context, event string, data any)
}

// Bus represents the event bus.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]Handler
	wildcard    []Handler
	sync        bool
	wg          sync.WaitGroup
}

// Option configures a Bus.
type Option func(*Bus)

// Synchronous makes Publish call handlers in the publishing goroutine.
func Synchronous() Option {
	return func(b *Bus) { b.sync = true }
}

// New creates a new event bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		subscribers: make(map[string][]Handler),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe adds a handler for a specific event. The event name "*"
// receives every event.
func (b *Bus) Subscribe(event string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if event == "*" {
		b.wildcard = append(b.wildcard, handler)
		return
	}
	b.subscribers[event] = append(b.subscribers[event], handler)
}

// Publish triggers all handlers subscribed to the event.
func (b *Bus) Publish(ctx context.Context, event string, data any) {
	b.mu.RLock()
	handlers := append([]Handler{}, b.subscribers[event]...) // copy to avoid race
	handlers = append(handlers, b.wildcard...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		if b.sync {
			handler(ctx, data)
			continue
		}
		b.wg.Add(1)
		go func(h Handler) {
			defer b.wg.Done()
			h(ctx, data)
		}(handler)
	}
}

// Wait blocks until every asynchronously dispatched handler returned.
func (b *Bus) Wait() {
	b.wg.Wait()
}
