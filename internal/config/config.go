package config

import (
	"errors"
	"fmt"
	"time"
)

// Mode selects how writers wake readers.
const (
	// ModeLocal signals the in-process notifier directly.
	ModeLocal = "local"
	// ModeDistributed publishes room ids on the shared channel; a relay per
	// process turns them back into local wakeups.
	ModeDistributed = "distributed"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendPebble = "pebble"
	BackendRedis  = "redis"
)

// Config holds server configuration values.
type Config struct {
	Addr               string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout  time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel           string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat          string        `mapstructure:"log_format" yaml:"log_format"`
	MaxMessageBytes    int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	Mode               string        `mapstructure:"mode" yaml:"mode"`
	Store              StoreConfig   `mapstructure:"store" yaml:"store"`
	Relay              RelayConfig   `mapstructure:"relay" yaml:"relay"`
}

// StoreConfig selects and configures the message store backend.
type StoreConfig struct {
	Backend       string `mapstructure:"backend" yaml:"backend"`
	KeyPrefix     string `mapstructure:"key_prefix" yaml:"key_prefix"`
	SQLitePath    string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	PebbleDir     string `mapstructure:"pebble_dir" yaml:"pebble_dir"`
	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db"`
}

// RelayConfig tunes resubscription after the shared channel drops.
type RelayConfig struct {
	BackoffMin time.Duration `mapstructure:"backoff_min" yaml:"backoff_min"`
	BackoffMax time.Duration `mapstructure:"backoff_max" yaml:"backoff_max"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:               ":8080",
		ReadHeaderTimeout:  5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		LogLevel:           "info",
		LogFormat:          "console",
		MaxMessageBytes:    4 << 10,
		RateLimitPerMinute: 120,
		Mode:               ModeLocal,
		Store: StoreConfig{
			Backend:    BackendMemory,
			KeyPrefix:  "wirechat",
			SQLitePath: "wirechat.db",
			PebbleDir:  "wirechat-data",
			RedisAddr:  "localhost:6379",
		},
		Relay: RelayConfig{
			BackoffMin: 100 * time.Millisecond,
			BackoffMax: 10 * time.Second,
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if other.RateLimitPerMinute != 0 {
		c.RateLimitPerMinute = other.RateLimitPerMinute
	}
	if other.Mode != "" {
		c.Mode = other.Mode
	}
	if other.Store.Backend != "" {
		c.Store.Backend = other.Store.Backend
	}
	if other.Store.KeyPrefix != "" {
		c.Store.KeyPrefix = other.Store.KeyPrefix
	}
	if other.Store.SQLitePath != "" {
		c.Store.SQLitePath = other.Store.SQLitePath
	}
	if other.Store.PebbleDir != "" {
		c.Store.PebbleDir = other.Store.PebbleDir
	}
	if other.Store.RedisAddr != "" {
		c.Store.RedisAddr = other.Store.RedisAddr
	}
	if other.Store.RedisPassword != "" {
		c.Store.RedisPassword = other.Store.RedisPassword
	}
	if other.Store.RedisDB != 0 {
		c.Store.RedisDB = other.Store.RedisDB
	}
	if other.Relay.BackoffMin != 0 {
		c.Relay.BackoffMin = other.Relay.BackoffMin
	}
	if other.Relay.BackoffMax != 0 {
		c.Relay.BackoffMax = other.Relay.BackoffMax
	}
}

// Validate checks that the mode and backend fit together.
func (c Config) Validate() error {
	var errs []error

	switch c.Store.Backend {
	case BackendMemory, BackendSQLite, BackendPebble, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}

	switch c.Mode {
	case ModeLocal:
	case ModeDistributed:
		if c.Store.Backend != BackendRedis && c.Store.Backend != BackendMemory {
			errs = append(errs, fmt.Errorf("mode %q needs a backend with pub/sub (redis or memory), got %q", c.Mode, c.Store.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown mode %q", c.Mode))
	}

	if c.MaxMessageBytes <= 0 {
		errs = append(errs, errors.New("max_message_bytes must be positive"))
	}
	if c.Relay.BackoffMax < c.Relay.BackoffMin {
		errs = append(errs, errors.New("relay.backoff_max must not be below relay.backoff_min"))
	}
	return errors.Join(errs...)
}
