package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Session backends understood by kv.Open.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	APIURL      string        `yaml:"api_url"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	LogLevel    string        `yaml:"log_level"`
	LogFile     string        `yaml:"log_file"`

	Session SessionConfig `yaml:"session"`
	Stub    StubConfig    `yaml:"stub"`
}

// SessionConfig selects where the token/username pair is persisted.
type SessionConfig struct {
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path"`      // sqlite database or yaml file
	RedisURL string `yaml:"redis_url"` // redis://host:port/db
}

// StubConfig configures the bundled demo backend.
type StubConfig struct {
	Addr     string        `yaml:"addr"`
	Secret   string        `yaml:"secret"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	dir := homeDir()
	return &Config{
		APIURL:      "http://localhost:5000",
		HTTPTimeout: 15 * time.Second,
		LogLevel:    "info",
		LogFile:     filepath.Join(dir, "stockview.log"),
		Session: SessionConfig{
			Backend: BackendSQLite,
			Path:    filepath.Join(dir, "session.db"),
		},
		Stub: StubConfig{
			Addr:     ":5000",
			Secret:   "stockview-dev-secret",
			TokenTTL: 24 * time.Hour,
		},
	}
}

// Load builds the config from defaults, the optional YAML file and the
// environment, in that order.
func Load() (*Config, error) {
	cfg := Default()

	path := envStr("STOCKVIEW_CONFIG", filepath.Join(homeDir(), "config.yaml"))
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}

	cfg.APIURL = envStr("STOCKVIEW_API_URL", cfg.APIURL)
	cfg.HTTPTimeout = envDuration("STOCKVIEW_HTTP_TIMEOUT", cfg.HTTPTimeout)
	cfg.LogLevel = envStr("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = envStr("STOCKVIEW_LOG_FILE", cfg.LogFile)
	cfg.Session.Backend = envStr("STOCKVIEW_SESSION_BACKEND", cfg.Session.Backend)
	cfg.Session.Path = envStr("STOCKVIEW_SESSION_PATH", cfg.Session.Path)
	cfg.Session.RedisURL = envStr("STOCKVIEW_REDIS_URL", cfg.Session.RedisURL)
	cfg.Stub.Addr = envStr("STOCKVIEW_STUB_ADDR", cfg.Stub.Addr)
	cfg.Stub.Secret = envStr("STOCKVIEW_STUB_SECRET", cfg.Stub.Secret)
	cfg.Stub.TokenTTL = envDuration("STOCKVIEW_STUB_TOKEN_TTL", cfg.Stub.TokenTTL)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// mergeFile overlays the YAML file at path. A missing file is not an error.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("STOCKVIEW_API_URL must be an absolute URL, got %q", c.APIURL)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("STOCKVIEW_HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout)
	}
	switch c.Session.Backend {
	case BackendSQLite, BackendFile:
		if c.Session.Path == "" {
			return fmt.Errorf("STOCKVIEW_SESSION_PATH must not be empty for the %s backend", c.Session.Backend)
		}
	case BackendRedis:
		if c.Session.RedisURL == "" {
			return fmt.Errorf("STOCKVIEW_REDIS_URL must not be empty for the redis backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}
	if c.Stub.Secret == "" {
		return fmt.Errorf("STOCKVIEW_STUB_SECRET must not be empty")
	}
	return nil
}

// homeDir returns ~/.stockview, or .stockview when the home dir is unknown.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".stockview"
	}
	return filepath.Join(home, ".stockview")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	// bare integers are seconds
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
