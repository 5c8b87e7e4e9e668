// Package eventbus provides the in-process publish/subscribe dispatcher.
//
// Events are retained in a bounded in-memory history and, when a durable
// store is attached, appended to it best-effort. Delivery to subscribers is
// synchronous, in registration order, and at-least-once: a slow or failing
// handler never blocks siblings or the publisher beyond its own run time.
package eventbus

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cgarryZA/garryOS/internal/domain"
)

// DefaultHistoryCapacity bounds the in-memory event history.
const DefaultHistoryCapacity = 1000

// Handler consumes one published event. Errors are logged and isolated;
// they never propagate to the publisher or to sibling handlers.
type Handler func(ctx context.Context, event domain.Event) error

// DurableStore persists published events. Append failures are logged and
// never block in-memory delivery.
type DurableStore interface {
	AppendEvent(ctx context.Context, event domain.Event) error
}

// MetricsSink defines the interface for recording bus metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	EventPublished(eventType string)
	HandlerError(eventType string)
	HistorySizeUpdate(size int)
	DurableAppendError()
}

// Subscription identifies one handler registration. Function values are not
// comparable in Go, so unsubscription works through this token instead of
// the handler itself.
type Subscription struct {
	eventType string
	id        uint64
}

type registration struct {
	id      uint64
	handler Handler
}

// Bus is the in-process event dispatcher. The zero value is not usable;
// construct with New.
type Bus struct {
	mu     sync.Mutex
	subs   map[string][]registration
	nextID uint64

	// history is a ring: head is the index of the oldest entry, count the
	// number of live entries.
	history []domain.Event
	head    int
	count   int

	durable DurableStore
	metrics MetricsSink
	clock   func() time.Time
}

// Option configures a Bus.
type Option func(*Bus)

// WithHistoryCapacity overrides the history ring capacity.
func WithHistoryCapacity(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.history = make([]domain.Event, n)
		}
	}
}

// WithDurableStore attaches a best-effort durable event store.
func WithDurableStore(store DurableStore) Option {
	return func(b *Bus) { b.durable = store }
}

// WithMetrics attaches a metrics sink.
func WithMetrics(sink MetricsSink) Option {
	return func(b *Bus) { b.metrics = sink }
}

// WithClock overrides the time source. Only for tests.
func WithClock(clock func() time.Time) Option {
	return func(b *Bus) { b.clock = clock }
}

// New creates an event bus with a bounded history.
func New(opts ...Option) *Bus {
	b := &Bus{
		subs:    make(map[string][]registration),
		history: make([]domain.Event, DefaultHistoryCapacity),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers handler for eventType and returns its subscription
// token. Registering the same handler twice registers it twice.
func (b *Bus) Subscribe(eventType string, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.subs[eventType] = append(b.subs[eventType], registration{id: b.nextID, handler: handler})

	log.Printf("eventbus: subscribed to %s (%d handlers)", eventType, len(b.subs[eventType]))
	return &Subscription{eventType: eventType, id: b.nextID}
}

// Unsubscribe removes the registration identified by sub. Unknown or nil
// subscriptions are a no-op.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	regs := b.subs[sub.eventType]
	for i, reg := range regs {
		if reg.id == sub.id {
			b.subs[sub.eventType] = append(regs[:i:i], regs[i+1:]...)
			log.Printf("eventbus: unsubscribed from %s", sub.eventType)
			return
		}
	}
}

// Publish constructs an Event, records it in the history and durable store,
// and invokes every subscriber for eventType synchronously in registration
// order. It returns after all handlers have run or failed; handler failures
// are logged, counted, and swallowed. Subscribers added mid-publish do not
// see the in-flight event.
func (b *Bus) Publish(ctx context.Context, eventType string, payload map[string]any) domain.Event {
	event := domain.Event{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payload,
		Timestamp: b.clock().UTC(),
	}

	b.mu.Lock()
	b.append(event)
	size := b.count
	handlers := make([]Handler, len(b.subs[eventType]))
	for i, reg := range b.subs[eventType] {
		handlers[i] = reg.handler
	}
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.EventPublished(eventType)
		b.metrics.HistorySizeUpdate(size)
	}

	if b.durable != nil {
		if err := b.durable.AppendEvent(ctx, event); err != nil {
			log.Printf("eventbus: durable append failed for %s: %v", eventType, err)
			if b.metrics != nil {
				b.metrics.DurableAppendError()
			}
		}
	}

	for _, handler := range handlers {
		if err := b.invoke(ctx, handler, event); err != nil {
			log.Printf("eventbus: handler error for %s: %v", eventType, err)
			if b.metrics != nil {
				b.metrics.HandlerError(eventType)
			}
		}
	}

	return event
}

// invoke runs one handler, converting panics into errors so a misbehaving
// subscriber cannot take down the publisher.
func (b *Bus) invoke(ctx context.Context, handler Handler, event domain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, event)
}

// append adds an event to the ring, evicting the oldest entry when full.
// Caller must hold b.mu.
func (b *Bus) append(event domain.Event) {
	if b.count < len(b.history) {
		b.history[(b.head+b.count)%len(b.history)] = event
		b.count++
		return
	}
	b.history[b.head] = event
	b.head = (b.head + 1) % len(b.history)
}

// History returns up to limit of the most recent events, oldest first,
// optionally filtered by type. A non-positive limit returns all retained
// events (subject to the ring capacity).
func (b *Bus) History(eventType string, limit int) []domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	matched := make([]domain.Event, 0, b.count)
	for i := 0; i < b.count; i++ {
		event := b.history[(b.head+i)%len(b.history)]
		if eventType == "" || event.Type == eventType {
			matched = append(matched, event)
		}
	}

	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched
}
