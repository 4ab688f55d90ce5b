package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr      string `yaml:"addr" env:"ADDR"`
	Password  string `yaml:"password" env:"PASSWORD"`
	DB        int    `yaml:"db" env:"DB"`
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// StorageConfig selects the persistent and session surfaces
type StorageConfig struct {
	Backend        string  `yaml:"backend" env:"BACKEND"` // memory, sqlite, redis
	SQLitePath     string  `yaml:"sqlite_path" env:"SQLITE_PATH"`
	DefaultTTLDays float64 `yaml:"default_ttl_days" env:"DEFAULT_TTL_DAYS"`

	// CacheTTL fronts sqlite and redis with an in-process copy; 0 disables it.
	CacheTTL time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
}

// BreakerConfig holds per-host circuit breaker settings. A zero ErrorPct
// disables breaking.
type BreakerConfig struct {
	ErrorPct     float64       `yaml:"error_pct" env:"ERROR_PCT"`
	MinCalls     int           `yaml:"min_calls" env:"MIN_CALLS"`
	Window       time.Duration `yaml:"window" env:"WINDOW"`
	OpenDuration time.Duration `yaml:"open_duration" env:"OPEN_DURATION"`
	Probes       int           `yaml:"probes" env:"PROBES"`
}

// ClientConfig holds request interpreter settings
type ClientConfig struct {
	BaseURL       string        `yaml:"base_url" env:"BASE_URL"`
	Timeout       time.Duration `yaml:"timeout" env:"TIMEOUT"`
	DeviceType    string        `yaml:"device_type" env:"DEVICE_TYPE"`
	DeviceHeader  string        `yaml:"device_header" env:"DEVICE_HEADER"`
	TokenHeader   string        `yaml:"token_header" env:"TOKEN_HEADER"`
	TokenKey      string        `yaml:"token_key" env:"TOKEN_KEY"`
	OfflineWindow time.Duration `yaml:"offline_window" env:"OFFLINE_WINDOW"`
	Guard         string        `yaml:"guard" env:"GUARD"` // memory, redis
	TimeMarker    string        `yaml:"time_marker" env:"TIME_MARKER"`
	Timezone      string        `yaml:"timezone" env:"TIMEZONE"`
	ProbeAddr     string        `yaml:"probe_addr" env:"PROBE_ADDR"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout" env:"PROBE_TIMEOUT"`
	Breaker       BreakerConfig `yaml:"breaker" envPrefix:"BREAKER_"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level   string `yaml:"level" env:"LEVEL"`
	Format  string `yaml:"format" env:"FORMAT"` // text, json
	CallLog string `yaml:"call_log" env:"CALL_LOG"`
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
	Addr      string `yaml:"addr" env:"ADDR"`
	PushURL   string `yaml:"push_url" env:"PUSH_URL"` // Pushgateway; empty disables pushing
	Job       string `yaml:"job" env:"JOB"`
}

// TelemetryConfig holds OpenTelemetry settings
type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled" env:"ENABLED"`
	Endpoint    string  `yaml:"endpoint" env:"ENDPOINT"`
	ServiceName string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate  float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// Environment is one deployment target. HostMarker is matched against the
// base URI of the running front end to pick the active environment.
type Environment struct {
	Name       string `yaml:"name"`
	HostMarker string `yaml:"host_marker"`
	APIURL     string `yaml:"api_url"`
	AjaxURL    string `yaml:"ajax_url"`
	ImgURL     string `yaml:"img_url"`
}

// Config is the central configuration struct embedding all component configs
type Config struct {
	Storage      StorageConfig   `yaml:"storage" envPrefix:"STORAGE_"`
	Redis        RedisConfig     `yaml:"redis" envPrefix:"REDIS_"`
	Client       ClientConfig    `yaml:"client" envPrefix:"CLIENT_"`
	Log          LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Metrics      MetricsConfig   `yaml:"metrics" envPrefix:"METRICS_"`
	Telemetry    TelemetryConfig `yaml:"telemetry" envPrefix:"TELEMETRY_"`
	Environment  string          `yaml:"environment" env:"ENVIRONMENT"`
	Environments []Environment   `yaml:"environments"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend:        "sqlite",
			SQLitePath:     "courier.db",
			DefaultTTLDays: 30,
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: "courier:",
		},
		Client: ClientConfig{
			Timeout:       30 * time.Second,
			DeviceType:    "pc",
			DeviceHeader:  "XX-Device-Type",
			TokenHeader:   "XX-token",
			TokenKey:      "token",
			OfflineWindow: time.Second,
			Guard:         "memory",
			TimeMarker:    "中国标准时间",
			Timezone:      "Local",
			ProbeTimeout:  2 * time.Second,
			Breaker: BreakerConfig{
				MinCalls:     5,
				Window:       30 * time.Second,
				OpenDuration: 10 * time.Second,
				Probes:       1,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Namespace: "courier",
			Addr:      ":9464",
			Job:       "courier",
		},
		Telemetry: TelemetryConfig{
			Endpoint:    "localhost:4318",
			ServiceName: "courier",
			SampleRate:  1.0,
		},
		Environment: "local",
		Environments: []Environment{
			{Name: "production", HostMarker: "benbird.hcolor.pro", APIURL: "/api/"},
			{Name: "test", HostMarker: "benbird-test.hcolor.pro", APIURL: "/api/"},
			{
				Name:       "local",
				HostMarker: "localhost",
				APIURL:     "http://localhost:8080",
				AjaxURL:    "http://localhost:8080",
				ImgURL:     "http://localhost:8081/",
			},
		},
	}
}

// LoadFromFile loads configuration from a YAML (or JSON) file on top of the defaults
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromEnv applies COURIER_* environment variable overrides to the config
func LoadFromEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "COURIER_"}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load returns defaults, overlaid with path (when set) and then the environment.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		cfg, err = LoadFromFile(path)
		if err != nil {
			return nil, err
		}
	}
	if err := LoadFromEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "memory", "sqlite", "redis":
	default:
		return fmt.Errorf("invalid storage backend: %q (valid: memory, sqlite, redis)", c.Storage.Backend)
	}
	switch c.Client.Guard {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid offline guard: %q (valid: memory, redis)", c.Client.Guard)
	}
	if c.Storage.Backend == "sqlite" && strings.TrimSpace(c.Storage.SQLitePath) == "" {
		return fmt.Errorf("storage.sqlite_path is required for the sqlite backend")
	}
	if c.Storage.CacheTTL < 0 {
		return fmt.Errorf("storage.cache_ttl must not be negative")
	}
	if b := c.Client.Breaker; b.ErrorPct < 0 || b.ErrorPct > 100 {
		return fmt.Errorf("client.breaker.error_pct must be between 0 and 100")
	}
	if c.Client.OfflineWindow <= 0 {
		return fmt.Errorf("client.offline_window must be positive")
	}
	if _, err := c.Client.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the client timezone. "Local" and "" mean the process zone.
func (c ClientConfig) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid client.timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ActiveEnvironment returns the environment named by c.Environment.
func (c *Config) ActiveEnvironment() (Environment, bool) {
	for _, e := range c.Environments {
		if e.Name == c.Environment {
			return e, true
		}
	}
	return Environment{}, false
}

// EnvironmentFor returns the first environment whose host marker occurs in baseURI.
func (c *Config) EnvironmentFor(baseURI string) (Environment, bool) {
	for _, e := range c.Environments {
		if e.HostMarker != "" && strings.Contains(baseURI, e.HostMarker) {
			return e, true
		}
	}
	return Environment{}, false
}

// APIBaseURL returns Client.BaseURL when set, else the active environment's API URL.
func (c *Config) APIBaseURL() string {
	if c.Client.BaseURL != "" {
		return c.Client.BaseURL
	}
	if e, ok := c.ActiveEnvironment(); ok {
		return e.APIURL
	}
	return ""
}
