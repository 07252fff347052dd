package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration.
//
// Values come from Default(), then an optional TOML file, then
// environment variables. Fields carry no envconfig defaults so that file
// values survive when the variable is unset.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Logging   LogConfig       `toml:"logging"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Sandbox   SandboxConfig   `toml:"sandbox"`
	Progress  ProgressConfig  `toml:"progress"`
	Catalog   CatalogConfig   `toml:"catalog"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string   `envconfig:"PORT" toml:"port"`
	Host            string   `envconfig:"HOST" toml:"host"`
	AllowedOrigins  []string `envconfig:"ALLOWED_ORIGINS" toml:"allowed_origins"`
	ShutdownTimeout Duration `envconfig:"SHUTDOWN_TIMEOUT" toml:"shutdown_timeout"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" toml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" toml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" toml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" toml:"enabled"`
}

// SandboxConfig holds code execution limits.
type SandboxConfig struct {
	Timeout        Duration `envconfig:"SANDBOX_TIMEOUT" toml:"timeout"`
	AlertDelay     Duration `envconfig:"SANDBOX_ALERT_DELAY" toml:"alert_delay"`
	PoolSize       int      `envconfig:"SANDBOX_POOL_SIZE" toml:"pool_size"`
	MaxCallStack   int      `envconfig:"SANDBOX_MAX_CALL_STACK" toml:"max_call_stack"`
	MaxSourceBytes int      `envconfig:"SANDBOX_MAX_SOURCE_BYTES" toml:"max_source_bytes"`
	DropEnums      bool     `envconfig:"STRIP_DROP_ENUMS" toml:"drop_enums"`
}

// Progress backends
const (
	BackendMemory    = "memory"
	BackendFile      = "file"
	BackendRedis     = "redis"
	BackendSQL       = "sql"
	BackendFirestore = "firestore"
)

// ProgressConfig selects and configures the progress store.
type ProgressConfig struct {
	Backend  string   `envconfig:"PROGRESS_BACKEND" toml:"backend"`
	Fallback bool     `envconfig:"PROGRESS_FALLBACK" toml:"fallback"`
	Timeout  Duration `envconfig:"PROGRESS_TIMEOUT" toml:"timeout"`
	Dir      string   `envconfig:"PROGRESS_DIR" toml:"dir"`

	RedisAddr     string `envconfig:"REDIS_ADDR" toml:"redis_addr"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" toml:"redis_password"`
	RedisDB       int    `envconfig:"REDIS_DB" toml:"redis_db"`

	DatabaseDriver string `envconfig:"DATABASE_DRIVER" toml:"database_driver"`
	DatabaseDSN    string `envconfig:"DATABASE_DSN" toml:"database_dsn"`

	FirestoreProject string `envconfig:"FIRESTORE_PROJECT" toml:"firestore_project"`
	FirestoreURL     string `envconfig:"FIRESTORE_URL" toml:"firestore_url"`
	FirestoreToken   string `envconfig:"FIRESTORE_TOKEN" toml:"firestore_token"`
}

// CatalogConfig points at an alternative lesson catalog.
type CatalogConfig struct {
	Path string `envconfig:"CATALOG_PATH" toml:"path"`
}

// Duration is a time.Duration read from strings such as "2s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML and env.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the standard library duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Load loads configuration from CONFIG_FILE, if set, and the environment.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile loads configuration from a TOML file and the environment. An
// empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate rejects inconsistent settings.
func (c *Config) Validate() error {
	switch c.Progress.Backend {
	case BackendMemory, BackendFile, BackendRedis, BackendSQL, BackendFirestore:
	default:
		return fmt.Errorf("unknown progress backend %q", c.Progress.Backend)
	}
	if c.Progress.Backend == BackendSQL {
		switch c.Progress.DatabaseDriver {
		case "sqlite", "postgres":
		default:
			return fmt.Errorf("unknown database driver %q", c.Progress.DatabaseDriver)
		}
	}
	if c.Progress.Backend == BackendFirestore && c.Progress.FirestoreProject == "" {
		return errors.New("firestore backend needs FIRESTORE_PROJECT")
	}
	if c.Sandbox.MaxSourceBytes <= 0 {
		return errors.New("max source bytes must be positive")
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "0.0.0.0",
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Sandbox: SandboxConfig{
			Timeout:        Duration(2 * time.Second),
			AlertDelay:     Duration(10 * time.Millisecond),
			PoolSize:       4,
			MaxCallStack:   1024,
			MaxSourceBytes: 64 * 1024,
		},
		Progress: ProgressConfig{
			Backend:        BackendMemory,
			Timeout:        Duration(5 * time.Second),
			Dir:            "data/progress",
			RedisAddr:      "localhost:6379",
			DatabaseDriver: "sqlite",
			DatabaseDSN:    "gorilin.db",
			FirestoreURL:   "https://firestore.googleapis.com/v1",
		},
	}
}
