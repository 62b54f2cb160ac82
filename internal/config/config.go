// Package config loads Curio configuration from defaults, an optional YAML
// file, a .env file and CURIO_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CURIO_SERVER_PORT.
const EnvPrefix = "CURIO"

// Config is a read-only view over a viper instance. The zero value and a
// Config built from a nil viper return zero values for every key.
type Config struct {
	v *viper.Viper
}

// New wraps v. A nil v yields an empty configuration.
func New(v *viper.Viper) *Config {
	if v == nil {
		v = viper.New()
	}
	return &Config{v: v}
}

// Load reads configuration. Priority: environment > config file > defaults.
// A missing config file is not an error when configPath is empty.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("curio")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.curio")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return New(v), nil
}

// loadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is ignored.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// SetDefaults registers the default value of every known key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.rate_limit.rps", 20.0)
	v.SetDefault("server.rate_limit.burst", 40)

	v.SetDefault("database.path", "curio.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", true)

	v.SetDefault("fetch.timeout", "15s")
	v.SetDefault("fetch.user_agent", "")

	v.SetDefault("sessions.ttl", "30m")
	v.SetDefault("sessions.sweep_cron", "*/5 * * * *")

	v.SetDefault("live.origin_patterns", []string{})

	v.SetDefault("ingest.cron", "*/30 * * * *")
	v.SetDefault("ingest.feeds", []string{})
	v.SetDefault("ingest.gadgets_url", "")
	v.SetDefault("ingest.gadgets_items_key", "")

	for _, page := range []string{"movies", "aitools", "youtube", "technews", "smarttech"} {
		v.SetDefault("plugins."+page+".enabled", true)
		v.SetDefault("plugins."+page+".refresh_cron", "0 * * * *")
	}
}

// GetString returns the value of key as a string.
func (c *Config) GetString(key string) string { return c.viper().GetString(key) }

// GetInt returns the value of key as an int.
func (c *Config) GetInt(key string) int { return c.viper().GetInt(key) }

// GetFloat64 returns the value of key as a float64.
func (c *Config) GetFloat64(key string) float64 { return c.viper().GetFloat64(key) }

// GetBool returns the value of key as a bool.
func (c *Config) GetBool(key string) bool { return c.viper().GetBool(key) }

// GetDuration returns the value of key as a time.Duration.
func (c *Config) GetDuration(key string) time.Duration { return c.viper().GetDuration(key) }

// GetStringSlice returns the value of key as a []string.
func (c *Config) GetStringSlice(key string) []string { return c.viper().GetStringSlice(key) }

// GetStringMapString returns the value of key as a map[string]string.
func (c *Config) GetStringMapString(key string) map[string]string {
	return c.viper().GetStringMapString(key)
}

// IsSet reports whether key has a value from any source.
func (c *Config) IsSet(key string) bool { return c.viper().IsSet(key) }

// Sub returns the sub-tree rooted at key. A missing key yields an empty
// Config, never nil.
func (c *Config) Sub(key string) *Config {
	return New(c.viper().Sub(key))
}

// Unmarshal decodes the whole configuration into target.
func (c *Config) Unmarshal(target any) error {
	return c.viper().Unmarshal(target)
}

func (c *Config) viper() *viper.Viper {
	if c == nil || c.v == nil {
		return viper.New()
	}
	return c.v
}
