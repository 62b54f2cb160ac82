// Package event provides the in-process publish/subscribe bus used to announce
// content refreshes and ingestion runs.
package event

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Event is a message published on the bus.
type Event struct {
	Seq       uint64    `json:"seq"`
	Topic     string    `json:"topic"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// Handler receives events.
type Handler func(ctx context.Context, e Event)

// Sequence hands out event sequence numbers.
type Sequence interface {
	Next() uint64
}

// Counter is a monotonic Sequence starting at 1.
type Counter struct {
	n atomic.Uint64
}

// Next returns the next sequence number.
func (c *Counter) Next() uint64 { return c.n.Add(1) }

type subscription struct {
	id      uint64
	handler Handler
}

// Bus dispatches events to topic subscribers and catch-all subscribers.
type Bus struct {
	mu     sync.RWMutex
	topics map[string][]subscription
	all    []subscription
	nextID uint64
	seq    Sequence
	logger *zap.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithSequence injects the sequence generator.
func WithSequence(s Sequence) Option {
	return func(b *Bus) { b.seq = s }
}

// NewBus returns a bus numbering events with a fresh Counter unless a
// Sequence is injected.
func NewBus(logger *zap.Logger, opts ...Option) *Bus {
	b := &Bus{
		topics: make(map[string][]subscription),
		seq:    &Counter{},
		logger: logger,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Subscribe registers h for topic and returns its unsubscribe function.
func (b *Bus) Subscribe(topic string, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.topics[topic] = append(b.topics[topic], subscription{id: id, handler: h})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.topics[topic] = remove(b.topics[topic], id)
	}
}

// SubscribeAll registers h for every topic.
func (b *Bus) SubscribeAll(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscription{id: id, handler: h})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.all = remove(b.all, id)
	}
}

// Publish stamps e and runs every matching handler synchronously. A panicking
// handler is logged and does not stop the others.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	e = b.stamp(e)
	for _, s := range b.handlers(e.Topic) {
		b.invoke(ctx, s.handler, e)
	}
	return nil
}

// PublishAsync stamps e and runs each matching handler in its own goroutine.
func (b *Bus) PublishAsync(ctx context.Context, e Event) {
	e = b.stamp(e)
	for _, s := range b.handlers(e.Topic) {
		go b.invoke(ctx, s.handler, e)
	}
}

func (b *Bus) stamp(e Event) Event {
	e.Seq = b.seq.Next()
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	return e
}

func (b *Bus) handlers(topic string) []subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]subscription, 0, len(b.topics[topic])+len(b.all))
	out = append(out, b.topics[topic]...)
	out = append(out, b.all...)
	return out
}

func (b *Bus) invoke(ctx context.Context, h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("topic", e.Topic),
				zap.Any("panic", r),
			)
		}
	}()
	h(ctx, e)
}

func remove(subs []subscription, id uint64) []subscription {
	out := subs[:0:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}
