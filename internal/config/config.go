// ABOUTME: Configuration loading and defaults for the percept collector
// ABOUTME: Handles YAML config files and environment variable overrides

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the complete configuration for percept.
type Config struct {
	// Data directory for the event journal.
	DataDir string `yaml:"data_dir"`

	// HTTP collector configuration.
	HTTP HTTPConfig `yaml:"http"`

	// Mixpanel backend configuration.
	Mixpanel MixpanelConfig `yaml:"mixpanel"`

	// NATS fan-out configuration.
	NATS NATSConfig `yaml:"nats"`

	// Redis profile cache configuration.
	Redis RedisConfig `yaml:"redis"`

	// Journal configuration.
	Journal JournalConfig `yaml:"journal"`

	// Export configuration.
	Export ExportConfig `yaml:"export"`

	// Logging configuration.
	Log LogConfig `yaml:"log"`

	// Tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// MixpanelConfig holds Mixpanel settings. The token can also be
// supplied via PERCEPT_MIXPANEL_TOKEN to keep it out of config files.
type MixpanelConfig struct {
	Token       string `yaml:"token"`
	EUResidency bool   `yaml:"eu_residency"`
}

// NATSConfig holds NATS fan-out settings.
type NATSConfig struct {
	// Disabled by default; set URL to enable.
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// RedisConfig holds profile cache settings.
type RedisConfig struct {
	// Disabled by default; set Addr to enable.
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTL      string `yaml:"ttl"`
}

// JournalConfig holds event journal settings.
type JournalConfig struct {
	Enabled    bool `yaml:"enabled"`
	SyncWrites bool `yaml:"sync_writes"`
}

// ExportConfig holds GCS export settings.
type ExportConfig struct {
	Bucket          string `yaml:"bucket"`
	ObjectPrefix    string `yaml:"object_prefix"`
	CredentialsFile string `yaml:"credentials_file"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig holds tracing settings.
type TracingConfig struct {
	Enabled       bool    `yaml:"enabled"`
	Endpoint      string  `yaml:"endpoint"`
	Insecure      bool    `yaml:"insecure"`
	SamplingRatio float64 `yaml:"sampling_ratio"`
}

// DefaultConfig returns a Config with default values. External
// dependencies (NATS, Redis, tracing, export) are disabled by default
// for standalone single-binary operation.
func DefaultConfig() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Mixpanel: MixpanelConfig{},
		NATS: NATSConfig{
			URL:     "",
			Subject: "percept.tracking",
		},
		Redis: RedisConfig{
			Addr: "",
			TTL:  "24h",
		},
		Journal: JournalConfig{
			Enabled: true,
		},
		Export: ExportConfig{
			ObjectPrefix: "percept/",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:       false,
			Endpoint:      "localhost:4317",
			Insecure:      true,
			SamplingRatio: 1.0,
		},
	}
}

// Load reads configuration from an optional YAML file layered over the
// defaults, then applies environment overrides. An empty path skips
// the file entirely.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides secrets and endpoints from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("PERCEPT_MIXPANEL_TOKEN"); v != "" {
		c.Mixpanel.Token = v
	}
	if v := os.Getenv("PERCEPT_NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("PERCEPT_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("PERCEPT_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
}

// DefaultDataDir returns the default data directory.
func DefaultDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "percept")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "/var/lib/percept"
	}
	return filepath.Join(home, ".local", "share", "percept")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "percept", "config.yaml")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "/etc/percept/config.yaml"
	}
	return filepath.Join(home, ".config", "percept", "config.yaml")
}
