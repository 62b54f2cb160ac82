package plugin

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/HerbHall/curio/internal/config"
)

// testPlugin is a minimal plugin for testing.
type testPlugin struct {
	name    string
	initErr error
	routes  []Route

	initCfg *config.Config
	started bool
	stopped bool
	calls   *[]string
}

func newTestPlugin(name string, calls *[]string) *testPlugin {
	return &testPlugin{name: name, calls: calls}
}

func (p *testPlugin) Name() string        { return p.name }
func (p *testPlugin) Version() string     { return "1.0.0" }
func (p *testPlugin) Description() string { return "test plugin " + p.name }
func (p *testPlugin) Routes() []Route     { return p.routes }

func (p *testPlugin) Init(_ context.Context, deps Dependencies) error {
	p.initCfg = deps.Config
	return p.initErr
}

func (p *testPlugin) Start(_ context.Context) error {
	p.started = true
	if p.calls != nil {
		*p.calls = append(*p.calls, "start:"+p.name)
	}
	return nil
}

func (p *testPlugin) Stop(_ context.Context) error {
	p.stopped = true
	if p.calls != nil {
		*p.calls = append(*p.calls, "stop:"+p.name)
	}
	return nil
}

func testConfig(enabled map[string]bool) *config.Config {
	v := viper.New()
	for name, on := range enabled {
		v.Set("plugins."+name+".enabled", on)
		v.Set("plugins."+name+".per_page", 12)
	}
	return config.New(v)
}

func TestRegister(t *testing.T) {
	reg := NewRegistry(zap.NewNop())

	p := newTestPlugin("movies", nil)
	if err := reg.Register(p); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	// Duplicate registration should fail.
	if err := reg.Register(p); err == nil {
		t.Fatal("Register() expected error for duplicate, got nil")
	}

	if got, ok := reg.Get("movies"); !ok || got != p {
		t.Errorf("Get(movies) = %v, %v", got, ok)
	}
}

func TestRegisterEmptyName(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	if err := reg.Register(newTestPlugin("", nil)); err == nil {
		t.Fatal("Register() expected error for empty name, got nil")
	}
}

func TestInitAllSkipsDisabled(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	movies := newTestPlugin("movies", nil)
	youtube := newTestPlugin("youtube", nil)
	reg.Register(movies)
	reg.Register(youtube)

	cfg := testConfig(map[string]bool{"movies": true, "youtube": false})
	if err := reg.InitAll(context.Background(), cfg, Dependencies{}); err != nil {
		t.Fatalf("InitAll() error = %v", err)
	}

	enabled := reg.Enabled()
	if len(enabled) != 1 || enabled[0].Name() != "movies" {
		t.Fatalf("Enabled() = %v, want [movies]", enabled)
	}
	if movies.initCfg.GetInt("per_page") != 12 {
		t.Errorf("plugin config subtree per_page = %d, want 12", movies.initCfg.GetInt("per_page"))
	}
	if youtube.initCfg != nil {
		t.Error("disabled plugin should not be initialized")
	}

	if err := reg.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll() error = %v", err)
	}
	if !movies.started || youtube.started {
		t.Errorf("started: movies=%v youtube=%v", movies.started, youtube.started)
	}
}

func TestInitAllError(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	p := newTestPlugin("movies", nil)
	p.initErr = errors.New("bad config")
	reg.Register(p)

	err := reg.InitAll(context.Background(), testConfig(map[string]bool{"movies": true}), Dependencies{})
	if err == nil {
		t.Fatal("InitAll() expected error, got nil")
	}
	if !errors.Is(err, p.initErr) {
		t.Errorf("InitAll() error = %v, want wrapped %v", err, p.initErr)
	}
}

func TestStopAllReverseOrder(t *testing.T) {
	var calls []string
	reg := NewRegistry(zap.NewNop())
	reg.Register(newTestPlugin("a", &calls))
	reg.Register(newTestPlugin("b", &calls))
	reg.Register(newTestPlugin("c", &calls))

	cfg := testConfig(map[string]bool{"a": true, "b": true, "c": true})
	if err := reg.InitAll(context.Background(), cfg, Dependencies{}); err != nil {
		t.Fatalf("InitAll() error = %v", err)
	}
	if err := reg.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll() error = %v", err)
	}
	reg.StopAll(context.Background())

	want := []string{"start:a", "start:b", "start:c", "stop:c", "stop:b", "stop:a"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("calls[%d] = %q, want %q", i, calls[i], want[i])
		}
	}
}

func TestAllRoutes(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	handler := func(w http.ResponseWriter, r *http.Request) {}

	withRoutes := newTestPlugin("movies", nil)
	withRoutes.routes = []Route{{Method: "GET", Path: "/items", Handler: handler}}
	noRoutes := newTestPlugin("quiet", nil)
	disabled := newTestPlugin("technews", nil)
	disabled.routes = []Route{{Method: "GET", Path: "/items", Handler: handler}}

	reg.Register(withRoutes)
	reg.Register(noRoutes)
	reg.Register(disabled)

	cfg := testConfig(map[string]bool{"movies": true, "quiet": true, "technews": false})
	if err := reg.InitAll(context.Background(), cfg, Dependencies{}); err != nil {
		t.Fatalf("InitAll() error = %v", err)
	}

	routes := reg.AllRoutes()
	if len(routes) != 1 {
		t.Fatalf("AllRoutes() returned %d entries, want 1", len(routes))
	}
	if len(routes["movies"]) != 1 {
		t.Errorf("movies routes = %d, want 1", len(routes["movies"]))
	}
}
