package testutil

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/HerbHall/curio/internal/event"
)

// Recorder captures every event published on a bus for later inspection.
type Recorder struct {
	mu     sync.Mutex
	events []event.Event
}

// NewBus returns a real bus with a Recorder subscribed to all topics.
func NewBus() (*event.Bus, *Recorder) {
	bus := event.NewBus(zap.NewNop())
	rec := &Recorder{}
	bus.SubscribeAll(rec.handle)
	return bus, rec
}

func (r *Recorder) handle(_ context.Context, e event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of all recorded events.
func (r *Recorder) Events() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Topic returns the recorded events published on topic.
func (r *Recorder) Topic(topic string) []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event.Event
	for _, e := range r.events {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}

// Reset clears all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
