package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all service configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Events   EventsConfig   `mapstructure:"events"`
	Store    StoreConfig    `mapstructure:"store"`
}

// ServerConfig holds the dashboard's own HTTP surface.
type ServerConfig struct {
	Addr     string `mapstructure:"addr"`
	APIToken string `mapstructure:"api_token"`
}

// UpstreamConfig holds the pipeline REST API the poller and trigger
// proxy talk to.
type UpstreamConfig struct {
	URL          string        `mapstructure:"url"`
	Token        string        `mapstructure:"token"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// EventsConfig holds the WebSocket push feed.
type EventsConfig struct {
	URL           string        `mapstructure:"url"`
	RetryBudget   int           `mapstructure:"retry_budget"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

// StoreConfig holds store tuning and the last-sync cache location.
type StoreConfig struct {
	CachePath   string        `mapstructure:"cache_path"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Upstream: UpstreamConfig{
			URL:          "http://127.0.0.1:9000",
			PollInterval: 30 * time.Second,
		},
		Events: EventsConfig{
			URL:           "ws://127.0.0.1:9000/v1/events",
			RetryBudget:   5,
			RetryInterval: 3 * time.Second,
		},
		Store: StoreConfig{
			CachePath:   "syncboard.db",
			ReadTimeout: 5 * time.Second,
		},
	}
}

// Load reads configuration from an optional YAML file and SYNCBOARD_*
// environment overrides, on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("syncboard")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/syncboard")
	}

	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.api_token", cfg.Server.APIToken)
	v.SetDefault("upstream.url", cfg.Upstream.URL)
	v.SetDefault("upstream.token", cfg.Upstream.Token)
	v.SetDefault("upstream.poll_interval", cfg.Upstream.PollInterval)
	v.SetDefault("events.url", cfg.Events.URL)
	v.SetDefault("events.retry_budget", cfg.Events.RetryBudget)
	v.SetDefault("events.retry_interval", cfg.Events.RetryInterval)
	v.SetDefault("store.cache_path", cfg.Store.CachePath)
	v.SetDefault("store.read_timeout", cfg.Store.ReadTimeout)

	v.SetEnvPrefix("SYNCBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine, defaults and env cover it.
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Upstream.PollInterval <= 0 {
		return fmt.Errorf("upstream.poll_interval must be positive")
	}
	if c.Events.RetryInterval <= 0 {
		return fmt.Errorf("events.retry_interval must be positive")
	}
	return nil
}
