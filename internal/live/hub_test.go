package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HerbHall/curio/internal/event"
)

func TestHub_StreamsBusEvents(t *testing.T) {
	hub := NewHub(zap.NewNop())
	bus := event.NewBus(zap.NewNop())
	unsubscribe := hub.Attach(bus)
	t.Cleanup(unsubscribe)

	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, bus.Publish(ctx, event.Event{
		Topic:   event.TopicContentRefreshed,
		Source:  "movies",
		Payload: event.RefreshedPayload{Page: "movies", Counts: map[string]int{"movies": 37}},
	}))

	typ, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, typ)

	var got struct {
		Seq     uint64 `json:"seq"`
		Topic   string `json:"topic"`
		Source  string `json:"source"`
		Payload struct {
			Page   string         `json:"page"`
			Counts map[string]int `json:"counts"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, event.TopicContentRefreshed, got.Topic)
	assert.Equal(t, uint64(1), got.Seq)
	assert.Equal(t, "movies", got.Payload.Page)
	assert.Equal(t, 37, got.Payload.Counts["movies"])

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_OriginPatterns(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		origin   string
		wantOK   bool
	}{
		{name: "cross origin rejected by default", origin: "https://app.example.com"},
		{name: "allowed host", patterns: []string{"app.example.com"}, origin: "https://app.example.com", wantOK: true},
		{name: "wildcard host", patterns: []string{"*.example.com"}, origin: "https://app.example.com", wantOK: true},
		{name: "other host", patterns: []string{"app.example.com"}, origin: "https://evil.example.org"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := NewHub(zap.NewNop(), WithOriginPatterns(tt.patterns...))
			srv := httptest.NewServer(hub)
			t.Cleanup(srv.Close)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			conn, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), &websocket.DialOptions{
				HTTPHeader: http.Header{"Origin": []string{tt.origin}},
			})
			if !tt.wantOK {
				require.Error(t, err)
				require.NotNil(t, resp)
				assert.Equal(t, http.StatusForbidden, resp.StatusCode)
				return
			}
			require.NoError(t, err)
			defer conn.CloseNow()
			assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
		})
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	reg := prometheus.NewRegistry()
	hub := NewHub(zap.NewNop(), WithBufferSize(1), WithRegisterer(reg))

	cancelled := false
	slow := &client{send: make(chan []byte, 1), cancel: func() { cancelled = true }}
	fast := &client{send: make(chan []byte, 8), cancel: func() {}}
	hub.add(slow)
	hub.add(fast)

	e := event.Event{Topic: event.TopicIngestCompleted}
	hub.Broadcast(context.Background(), e)
	hub.Broadcast(context.Background(), e)

	assert.True(t, cancelled)
	assert.True(t, slow.dropped.Load())
	assert.False(t, fast.dropped.Load())
	assert.Len(t, fast.send, 2)
	assert.Equal(t, 1, hub.ClientCount())
	assert.InDelta(t, 1, promtest.ToFloat64(hub.dropped), 0)
	assert.InDelta(t, 1, promtest.ToFloat64(hub.connected), 0)
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(zap.NewNop())
	n := 0
	for range 3 {
		hub.add(&client{send: make(chan []byte, 1), cancel: func() { n++ }})
	}

	hub.Close()
	assert.Equal(t, 3, n)
	assert.Equal(t, 0, hub.ClientCount())
}
