package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultWindow            = 60 * time.Second
	DefaultLogLevel          = "info"
	DefaultMaxLineBytes      = 1 << 20
	DefaultPrecision         = 2
	DefaultHTTPPort          = 8080
	DefaultBroadcastInterval = 5 * time.Second
	DefaultAuthHeader        = "X-API-Key"
	DefaultRedisChannel      = "rolling-median"
	DefaultBufferSize        = 1000
)

// Config is the top-level configuration. Fields map 1:1 to config.example.yaml.
type Config struct {
	// Window is the trailing window length. It is fixed for the lifetime of
	// the process; changes picked up by Watch are ignored until restart.
	Window time.Duration `yaml:"window"`

	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	Input  InputConfig  `yaml:"input"`
	Output OutputConfig `yaml:"output"`
	Server ServerConfig `yaml:"server"`
	Redis  RedisConfig  `yaml:"redis"`
	Alerts AlertsConfig `yaml:"alerts"`
}

// InputConfig controls how transaction lines are read.
type InputConfig struct {
	// Path is an optional file replayed through the tracker at server start.
	Path string `yaml:"path"`

	// MaxLineBytes caps a single input line.
	MaxLineBytes int `yaml:"max_line_bytes"`
}

// OutputConfig controls where medians are written.
type OutputConfig struct {
	// Path is an optional file receiving one median per accepted record.
	Path string `yaml:"path"`

	// Precision is the number of decimals per median.
	Precision int `yaml:"precision"`
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API, WebSocket hub and /metrics listen on.
	HTTPPort int `yaml:"http_port"`

	// BroadcastInterval controls how often the WebSocket hub pushes a full
	// window snapshot to connected clients.
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`

	// Auth configures authentication of the ingestion endpoint.
	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig configures REST API authentication.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// Header is the HTTP header carrying the key. Defaults to X-API-Key.
	Header string `yaml:"header"`

	// KeyEnv is the name of the environment variable holding the expected key.
	KeyEnv string `yaml:"key_env"`
}

// Key returns the API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns Header, or DefaultAuthHeader when unset.
func (a AuthConfig) EffectiveHeader() string {
	if a.Header == "" {
		return DefaultAuthHeader
	}
	return a.Header
}

// RedisConfig configures the optional emission shipper.
type RedisConfig struct {
	// Addr is host:port of the Redis server. Empty disables the shipper.
	Addr string `yaml:"addr"`

	// Channel is the pub/sub channel emissions are published to.
	Channel string `yaml:"channel"`

	// PasswordEnv is the name of the environment variable holding the password.
	PasswordEnv string `yaml:"password_env"`

	DB int `yaml:"db"`

	// BufferSize is the maximum number of emissions held while Redis is
	// unreachable. The oldest are dropped first.
	BufferSize int `yaml:"buffer_size"`
}

// Password returns the Redis password resolved from the environment.
func (r RedisConfig) Password() string {
	if r.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(r.PasswordEnv)
}

// Enabled reports whether the shipper should run.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one threshold-based alert condition.
type AlertRule struct {
	// Name is the human-readable alert identifier, used as the deduplication key.
	Name string `yaml:"name"`

	// Condition is a simple expression: "median > 3", "participants >= 100",
	// "window_transactions < 1".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: slack | teams | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a Config pre-populated with default values.
func Defaults() *Config {
	return &Config{
		Window:   DefaultWindow,
		LogLevel: DefaultLogLevel,
		Input: InputConfig{
			MaxLineBytes: DefaultMaxLineBytes,
		},
		Output: OutputConfig{
			Precision: DefaultPrecision,
		},
		Server: ServerConfig{
			HTTPPort:          DefaultHTTPPort,
			BroadcastInterval: DefaultBroadcastInterval,
		},
		Redis: RedisConfig{
			Channel:    DefaultRedisChannel,
			BufferSize: DefaultBufferSize,
		},
	}
}

// Level maps LogLevel to a slog.Level. Unknown values map to Info.
func (c *Config) Level() slog.Level {
	lvl, _ := ParseLevel(c.LogLevel)
	return lvl
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.Window <= 0 {
		return fmt.Errorf("window must be positive")
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if cfg.Input.MaxLineBytes <= 0 {
		return fmt.Errorf("input.max_line_bytes must be positive")
	}
	if cfg.Output.Precision < 0 {
		return fmt.Errorf("output.precision must not be negative")
	}
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d out of range", cfg.Server.HTTPPort)
	}
	if cfg.Server.BroadcastInterval <= 0 {
		return fmt.Errorf("server.broadcast_interval must be positive")
	}
	switch cfg.Server.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth: unknown mode %q", cfg.Server.Auth.Mode)
	}
	if cfg.Redis.Enabled() {
		if cfg.Redis.Channel == "" {
			return fmt.Errorf("redis.channel is required when redis.addr is set")
		}
		if cfg.Redis.BufferSize <= 0 {
			return fmt.Errorf("redis.buffer_size must be positive")
		}
	}
	for i, r := range cfg.Alerts.Rules {
		if r.Name == "" {
			return fmt.Errorf("alerts.rules[%d]: name is required", i)
		}
		if len(strings.Fields(r.Condition)) != 3 {
			return fmt.Errorf("alerts.rules[%d] %q: condition must be \"field op value\"", i, r.Name)
		}
		switch r.Severity {
		case "critical", "warning", "info", "":
		default:
			return fmt.Errorf("alerts.rules[%d] %q: unknown severity %q", i, r.Name, r.Severity)
		}
	}
	for i, w := range cfg.Alerts.Webhooks {
		switch w.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("alerts.webhooks[%d]: unknown type %q", i, w.Type)
		}
	}
	return nil
}
