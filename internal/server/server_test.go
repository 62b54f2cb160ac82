package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/HerbHall/curio/internal/config"
	"github.com/HerbHall/curio/internal/plugin"
)

type stubPlugin struct {
	name string
}

func (p *stubPlugin) Name() string                                 { return p.name }
func (p *stubPlugin) Version() string                              { return "1.2.3" }
func (p *stubPlugin) Description() string                          { return "stub " + p.name }
func (p *stubPlugin) Init(context.Context, plugin.Dependencies) error { return nil }
func (p *stubPlugin) Start(context.Context) error                  { return nil }
func (p *stubPlugin) Stop(context.Context) error                   { return nil }

func (p *stubPlugin) Routes() []plugin.Route {
	return []plugin.Route{{
		Method: "GET",
		Path:   "/items/{id}",
		Handler: func(w http.ResponseWriter, r *http.Request) {
			WriteJSON(w, http.StatusOK, map[string]string{"id": r.PathValue("id")})
		},
	}}
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	reg := plugin.NewRegistry(zap.NewNop())
	for _, name := range []string{"movies", "hidden"} {
		if err := reg.Register(&stubPlugin{name: name}); err != nil {
			t.Fatalf("Register(%q): %v", name, err)
		}
	}

	v := viper.New()
	v.Set("plugins.movies.enabled", true)
	v.Set("plugins.hidden.enabled", false)
	if err := reg.InitAll(context.Background(), config.New(v), plugin.Dependencies{}); err != nil {
		t.Fatalf("InitAll: %v", err)
	}
	return New(cfg, reg, zap.NewNop(), WithMetricsRegistry(prometheus.NewRegistry()))
}

func serve(s *Server, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, http.NoBody)
	req.RemoteAddr = "192.0.2.10:5555"
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, Config{})
	w := serve(s, http.MethodGet, "/api/v1/health")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Header().Get("X-Curio-Version") == "" {
		t.Error("X-Curio-Version header missing")
	}
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["service"] != "curio" {
		t.Errorf("body = %v", body)
	}
}

func TestPlugins_ListsEnabledOnly(t *testing.T) {
	s := newTestServer(t, Config{})
	w := serve(s, http.MethodGet, "/api/v1/plugins")

	var info []PluginInfo
	if err := json.NewDecoder(w.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(info) != 1 {
		t.Fatalf("plugins = %v, want only movies", info)
	}
	want := PluginInfo{Name: "movies", Version: "1.2.3", Description: "stub movies"}
	if info[0] != want {
		t.Errorf("plugin = %+v, want %+v", info[0], want)
	}
}

func TestPluginRoutesMounted(t *testing.T) {
	s := newTestServer(t, Config{})

	w := serve(s, http.MethodGet, "/api/v1/movies/items/42")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"id":"42"`) {
		t.Errorf("body = %s", w.Body.String())
	}

	if w := serve(s, http.MethodGet, "/api/v1/hidden/items/1"); w.Code != http.StatusNotFound {
		t.Errorf("disabled plugin route status = %d, want 404", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, Config{})
	serve(s, http.MethodGet, "/api/v1/movies/items/7")

	w := serve(s, http.MethodGet, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		"curio_http_requests_total",
		`route="GET /api/v1/movies/items/{id}"`,
		"curio_http_request_duration_seconds",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, Config{RateLimitRPS: 1, RateLimitBurst: 2})

	for i := range 2 {
		if w := serve(s, http.MethodGet, "/api/v1/health"); w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, w.Code)
		}
	}
	w := serve(s, http.MethodGet, "/api/v1/health")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestClientLimiter_PerClientAndSweep(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewClientLimiter(1, 1, time.Minute)
	l.now = func() time.Time { return now }

	if !l.Allow("a") || l.Allow("a") {
		t.Fatal("client a should get exactly one request in the burst")
	}
	if !l.Allow("b") {
		t.Fatal("client b has its own bucket")
	}

	now = now.Add(2 * time.Minute)
	if !l.Allow("c") {
		t.Fatal("client c should be allowed")
	}
	if got := l.Len(); got != 1 {
		t.Errorf("Len() = %d after sweep, want 1", got)
	}
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}), mw("outer"), mw("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if strings.Join(order, ",") != "outer,inner" {
		t.Errorf("order = %v", order)
	}
}

func TestStatusRecorder_DefaultsToOK(t *testing.T) {
	rw := wrap(httptest.NewRecorder())
	if _, err := rw.Write([]byte("hi")); err != nil {
		t.Fatal(err)
	}
	rw.WriteHeader(http.StatusTeapot)
	if rw.code() != http.StatusOK || rw.bytes != 2 {
		t.Errorf("code = %d bytes = %d", rw.code(), rw.bytes)
	}
}
