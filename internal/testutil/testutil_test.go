package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/HerbHall/curio/internal/event"
)

func TestLogger_NotNil(t *testing.T) {
	l := Logger(t)
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	l.Debug("logger writes through t")
}

func TestNewStore_Usable(t *testing.T) {
	db := NewStore(t)
	if db == nil {
		t.Fatal("expected non-nil store")
	}
	if err := db.DB().PingContext(context.Background()); err != nil {
		t.Fatalf("PingContext: %v", err)
	}
}

func TestRecorder_RecordsEvents(t *testing.T) {
	bus, rec := NewBus()

	if err := bus.Publish(context.Background(), event.Event{Topic: "test.topic", Source: "test"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := bus.Publish(context.Background(), event.Event{Topic: "test.other", Source: "test"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	events := rec.Events()
	if len(events) != 2 {
		t.Fatalf("Events len = %d, want 2", len(events))
	}
	if events[0].Seq >= events[1].Seq {
		t.Errorf("Seq not increasing: %d then %d", events[0].Seq, events[1].Seq)
	}
	if got := rec.Topic("test.other"); len(got) != 1 {
		t.Errorf("Topic(test.other) len = %d, want 1", len(got))
	}

	rec.Reset()
	if len(rec.Events()) != 0 {
		t.Error("Reset did not clear events")
	}
}

func TestClock(t *testing.T) {
	c := NewClock()
	if !c.Now().Equal(Epoch) {
		t.Errorf("Now = %v, want %v", c.Now(), Epoch)
	}
	c.Advance(time.Hour)
	c.Advance(30 * time.Minute)
	if got := c.Now().Sub(Epoch); got != 90*time.Minute {
		t.Errorf("elapsed = %v, want 1h30m", got)
	}
}

func TestFixtures(t *testing.T) {
	movies := Movies(37)
	if len(movies) != 37 {
		t.Fatalf("Movies(37) len = %d", len(movies))
	}
	if movies[0]["Title"] != "Movie 01" {
		t.Errorf("first title = %v", movies[0]["Title"])
	}
	if len(Gadgets()) != 3 {
		t.Errorf("Gadgets len = %d, want 3", len(Gadgets()))
	}
}
