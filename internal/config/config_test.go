package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestViperConfigGetString(t *testing.T) {
	v := viper.New()
	v.Set("name", "test")
	cfg := New(v)

	if got := cfg.GetString("name"); got != "test" {
		t.Errorf("GetString('name') = %q, want %q", got, "test")
	}
}

func TestViperConfigGetInt(t *testing.T) {
	v := viper.New()
	v.Set("port", 8080)
	cfg := New(v)

	if got := cfg.GetInt("port"); got != 8080 {
		t.Errorf("GetInt('port') = %d, want %d", got, 8080)
	}
}

func TestViperConfigGetBool(t *testing.T) {
	v := viper.New()
	v.Set("enabled", true)
	cfg := New(v)

	if got := cfg.GetBool("enabled"); !got {
		t.Error("GetBool('enabled') = false, want true")
	}
}

func TestViperConfigGetDuration(t *testing.T) {
	v := viper.New()
	v.Set("timeout", "5s")
	cfg := New(v)

	want := 5 * time.Second
	if got := cfg.GetDuration("timeout"); got != want {
		t.Errorf("GetDuration('timeout') = %v, want %v", got, want)
	}
}

func TestViperConfigIsSet(t *testing.T) {
	v := viper.New()
	v.Set("exists", true)
	cfg := New(v)

	if !cfg.IsSet("exists") {
		t.Error("IsSet('exists') = false, want true")
	}
	if cfg.IsSet("missing") {
		t.Error("IsSet('missing') = true, want false")
	}
}

func TestViperConfigSub(t *testing.T) {
	v := viper.New()
	v.Set("plugins.movies.enabled", true)
	v.Set("plugins.movies.per_page", 12)
	cfg := New(v)

	sub := cfg.Sub("plugins.movies")
	if sub == nil {
		t.Fatal("Sub('plugins.movies') = nil")
	}
	if got := sub.GetBool("enabled"); !got {
		t.Error("sub.GetBool('enabled') = false, want true")
	}
	if got := sub.GetInt("per_page"); got != 12 {
		t.Errorf("sub.GetInt('per_page') = %d, want %d", got, 12)
	}
}

func TestViperConfigSubMissing(t *testing.T) {
	v := viper.New()
	cfg := New(v)

	sub := cfg.Sub("nonexistent")
	if sub == nil {
		t.Fatal("Sub('nonexistent') should return empty Config, not nil")
	}
	// Should return zero values without panic.
	if got := cfg.GetString("anything"); got != "" {
		t.Errorf("empty config GetString() = %q, want empty", got)
	}
	_ = sub
}

func TestViperConfigUnmarshal(t *testing.T) {
	v := viper.New()
	v.Set("host", "localhost")
	v.Set("port", 9090)
	cfg := New(v)

	var target struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	}
	if err := cfg.Unmarshal(&target); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if target.Host != "localhost" {
		t.Errorf("Host = %q, want %q", target.Host, "localhost")
	}
	if target.Port != 9090 {
		t.Errorf("Port = %d, want %d", target.Port, 9090)
	}
}

func TestNilViper(t *testing.T) {
	cfg := New(nil)
	// Should not panic and return zero values.
	if got := cfg.GetString("key"); got != "" {
		t.Errorf("nil viper GetString() = %q, want empty", got)
	}
}

func TestNilConfigReceiver(t *testing.T) {
	var cfg *Config
	if got := cfg.GetInt("server.port"); got != 0 {
		t.Errorf("nil Config GetInt() = %d, want 0", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.GetString("server.port"); got != "8080" {
		t.Errorf("server.port = %q, want %q", got, "8080")
	}
	if got := cfg.GetDuration("fetch.timeout"); got != 15*time.Second {
		t.Errorf("fetch.timeout = %v, want 15s", got)
	}
	if got := cfg.GetStringSlice("live.origin_patterns"); len(got) != 0 {
		t.Errorf("live.origin_patterns default = %v, want empty", got)
	}
	if !cfg.GetBool("plugins.movies.enabled") {
		t.Error("plugins.movies.enabled default = false, want true")
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "curio.yaml")
	body := []byte(`
server:
  port: "9090"
live:
  origin_patterns:
    - app.example.com
    - "*.curio.example"
plugins:
  movies:
    sources:
      movies: https://sheets.example/movies
      tv: https://sheets.example/tv
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CURIO_DATABASE_PATH", "/tmp/env.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.GetString("server.port"); got != "9090" {
		t.Errorf("server.port = %q, want %q", got, "9090")
	}
	if got := cfg.GetString("database.path"); got != "/tmp/env.db" {
		t.Errorf("database.path = %q, want env override", got)
	}
	if got := cfg.GetStringSlice("live.origin_patterns"); len(got) != 2 || got[0] != "app.example.com" {
		t.Errorf("live.origin_patterns = %v", got)
	}
	sources := cfg.Sub("plugins.movies").GetStringMapString("sources")
	if sources["tv"] != "https://sheets.example/tv" {
		t.Errorf("sources = %v", sources)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("CURIO_LOGGING_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("CURIO_LOGGING_LEVEL") })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.GetString("logging.level"); got != "debug" {
		t.Errorf("logging.level = %q, want debug from .env", got)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := Load("does-not-exist.yaml"); err == nil {
		t.Error("Load() with missing explicit file: expected error")
	}
}
