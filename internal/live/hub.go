// Package live pushes bus events to browsers over websockets so a front end
// knows when to refetch a page.
package live

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/HerbHall/curio/internal/event"
)

const (
	defaultBufferSize   = 16
	defaultWriteTimeout = 10 * time.Second
	defaultPingInterval = 30 * time.Second
)

// Subscriber is the part of the event bus the hub listens on.
type Subscriber interface {
	SubscribeAll(h event.Handler) func()
}

type client struct {
	send    chan []byte
	cancel  context.CancelFunc
	dropped atomic.Bool
}

// Hub fans bus events out to every connected websocket. A client whose buffer
// is full is disconnected; publishing never blocks on a socket.
type Hub struct {
	logger         *zap.Logger
	bufferSize     int
	writeTimeout   time.Duration
	pingInterval   time.Duration
	originPatterns []string

	mu      sync.Mutex
	clients map[*client]struct{}

	connected prometheus.Gauge
	dropped   prometheus.Counter
	sent      prometheus.Counter
}

// Option configures a Hub.
type Option func(*Hub)

// WithBufferSize sets how many messages may queue per client before it is
// dropped.
func WithBufferSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.bufferSize = n
		}
	}
}

// WithWriteTimeout bounds each socket write.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Hub) { h.writeTimeout = d }
}

// WithPingInterval sets the keepalive period. Zero disables pings.
func WithPingInterval(d time.Duration) Option {
	return func(h *Hub) { h.pingInterval = d }
}

// WithOriginPatterns allows cross-origin connections from the given host
// patterns.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Hub) { h.originPatterns = patterns }
}

// WithRegisterer registers the hub's metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(h *Hub) { h.initMetrics(reg) }
}

// NewHub creates a hub with no clients.
func NewHub(logger *zap.Logger, opts ...Option) *Hub {
	h := &Hub{
		logger:       logger,
		bufferSize:   defaultBufferSize,
		writeTimeout: defaultWriteTimeout,
		pingInterval: defaultPingInterval,
		clients:      make(map[*client]struct{}),
	}
	h.initMetrics(nil)
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) initMetrics(reg prometheus.Registerer) {
	f := promauto.With(reg)
	h.connected = f.NewGauge(prometheus.GaugeOpts{
		Namespace: "curio",
		Subsystem: "live",
		Name:      "clients",
		Help:      "Connected websocket clients.",
	})
	h.dropped = f.NewCounter(prometheus.CounterOpts{
		Namespace: "curio",
		Subsystem: "live",
		Name:      "dropped_clients_total",
		Help:      "Clients disconnected for falling behind.",
	})
	h.sent = f.NewCounter(prometheus.CounterOpts{
		Namespace: "curio",
		Subsystem: "live",
		Name:      "messages_total",
		Help:      "Messages queued to clients.",
	})
}

// Attach subscribes the hub to every topic on bus and returns the
// unsubscribe function.
func (h *Hub) Attach(bus Subscriber) func() {
	return bus.SubscribeAll(h.Broadcast)
}

// Broadcast queues e for every client. It matches event.Handler.
func (h *Hub) Broadcast(_ context.Context, e event.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		h.logger.Warn("failed to encode event", zap.String("topic", e.Topic), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
			h.sent.Inc()
		default:
			delete(h.clients, c)
			c.dropped.Store(true)
			c.cancel()
			h.connected.Dec()
			h.dropped.Inc()
			h.logger.Debug("dropped slow client")
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.cancel()
		h.connected.Dec()
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.connected.Inc()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		h.connected.Dec()
	}
}

// ServeHTTP upgrades the request and streams events until the client goes
// away, falls behind or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// The server's read and write timeouts must not cut the stream.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	// Incoming messages are ignored; the read side only tracks closure.
	ctx := conn.CloseRead(r.Context())
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c := &client{send: make(chan []byte, h.bufferSize), cancel: cancel}
	h.add(c)
	defer h.remove(c)
	h.logger.Debug("live client connected", zap.String("remote_addr", r.RemoteAddr))

	if err := h.serve(ctx, conn, c); err != nil {
		h.logger.Debug("live client disconnected", zap.Error(err))
	}
}

func (h *Hub) serve(ctx context.Context, conn *websocket.Conn, c *client) error {
	var ping <-chan time.Time
	if h.pingInterval > 0 {
		t := time.NewTicker(h.pingInterval)
		defer t.Stop()
		ping = t.C
	}

	for {
		select {
		case <-ctx.Done():
			if c.dropped.Load() {
				return conn.Close(websocket.StatusPolicyViolation, "client too slow")
			}
			return conn.Close(websocket.StatusNormalClosure, "")

		case data := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return err
			}

		case <-ping:
			pctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
