package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	LogLevel     string             `toml:"log_level"`
	API          APIConfig          `toml:"api"`
	Database     DatabaseConfig     `toml:"database"`
	Store        StoreConfig        `toml:"store"`
	Redis        RedisConfig        `toml:"redis"`
	Queue        QueueConfig        `toml:"queue"`
	Connectivity ConnectivityConfig `toml:"connectivity"`
	Server       ServerConfig       `toml:"server"`
	Telemetry    TelemetryConfig    `toml:"telemetry"`
}

// APIConfig describes the watchlist API that queued actions are replayed against.
type APIConfig struct {
	BaseURL    string `toml:"base_url"`
	Token      string `toml:"token"`
	HealthPath string `toml:"health_path"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// StoreConfig selects the queue storage backend.
type StoreConfig struct {
	Driver string `toml:"driver"`
}

// RedisConfig contains connection settings for the redis store driver.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

// QueueConfig tunes replay behavior.
type QueueConfig struct {
	MaxRetries    int           `toml:"max_retries"`
	ReplayTimeout time.Duration `toml:"replay_timeout"`
	RateLimit     float64       `toml:"rate_limit"`
	Burst         int           `toml:"burst"`
	LeaseTTL      time.Duration `toml:"lease_ttl"`
	Schedule      string        `toml:"schedule"`
}

// ConnectivityConfig tunes the API health probe.
type ConnectivityConfig struct {
	ProbeInterval time.Duration `toml:"probe_interval"`
	ProbeTimeout  time.Duration `toml:"probe_timeout"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// TelemetryConfig toggles tracing of replay attempts.
type TelemetryConfig struct {
	Enabled     bool   `toml:"enabled"`
	ServiceName string `toml:"service_name"`
}

// Addr returns the host:port the local server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate reports configuration values the queue cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "redis":
	default:
		return fmt.Errorf("%w: unknown store driver %q", ErrInvalidConfig, c.Store.Driver)
	}
	if c.Queue.MaxRetries < 1 {
		return fmt.Errorf("%w: queue.max_retries must be at least 1", ErrInvalidConfig)
	}
	if c.Queue.RateLimit < 0 {
		return fmt.Errorf("%w: queue.rate_limit must not be negative", ErrInvalidConfig)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadOrDefault loads the config at path when it exists and falls back to [DefaultConfig] otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return DefaultConfig(), nil
	}
	return LoadConfig(path)
}
