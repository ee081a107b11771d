package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kapu/blockext-go/internal/util"
	"go.uber.org/zap"
)

var ErrBusClosed = errors.New("event bus closed")

type Handler func(ctx context.Context, event Event)

type handlerEntry struct {
	id      int
	handler Handler
}

// Bus delivers host lifecycle events to extension handlers in registration
// order. Publish dispatches synchronously on the caller's goroutine.
type Bus struct {
	handlers map[Name][]handlerEntry
	nextID   int
	closed   bool
	mu       sync.RWMutex
	logger   *zap.Logger
}

func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		handlers: make(map[Name][]handlerEntry),
		nextID:   1,
		logger:   util.OrNop(logger),
	}
}

// Subscribe registers handler for name and returns its unsubscribe func.
func (b *Bus) Subscribe(name Name, handler Handler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	id := b.nextID
	b.nextID++
	b.handlers[name] = append(b.handlers[name], handlerEntry{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		entries := b.handlers[name]
		for i, entry := range entries {
			if entry.id == id {
				b.handlers[name] = append(entries[:i:i], entries[i+1:]...)
				break
			}
		}
	}, nil
}

// On subscribes a handler typed to a single event struct.
func On[E Event](b *Bus, handler func(ctx context.Context, event E)) (func(), error) {
	var zero E
	return b.Subscribe(zero.Name(), func(ctx context.Context, event Event) {
		if typed, ok := event.(E); ok {
			handler(ctx, typed)
		}
	})
}

// Publish runs every handler registered for the event's name. A panicking
// handler is logged and does not stop the others.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	entries := b.handlers[event.Name()]
	snapshot := make([]handlerEntry, len(entries))
	copy(snapshot, entries)
	b.mu.RUnlock()

	b.logger.Debug("Publishing event",
		zap.String("event", event.Name().String()),
		zap.Int("handlers", len(snapshot)),
	)

	for _, entry := range snapshot {
		b.dispatch(ctx, event, entry)
	}
	return nil
}

func (b *Bus) dispatch(ctx context.Context, event Event, entry handlerEntry) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event handler panicked",
				zap.String("event", event.Name().String()),
				zap.Int("handler_id", entry.id),
				zap.Error(fmt.Errorf("%v", r)),
			)
		}
	}()
	entry.handler(ctx, event)
}

func (b *Bus) HandlerCount(name Name) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[name])
}

// Close drops every handler; later Subscribe and Publish calls fail with ErrBusClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = make(map[Name][]handlerEntry)
}
