package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Valid(t *testing.T) {
	yaml := `
window: 30s
log_level: debug
input:
  path: "venmo_input/venmo-trans.txt"
  max_line_bytes: 4096
output:
  path: "venmo_output/output.txt"
  precision: 3
server:
  http_port: 9090
  broadcast_interval: 2s
  auth:
    mode: apikey
    key_env: RM_API_KEY
redis:
  addr: "localhost:6379"
  channel: medians
alerts:
  rules:
    - name: hot-graph
      condition: "median > 3"
      severity: warning
      cooldown: 1m
  webhooks:
    - type: slack
      url_env: SLACK_URL
`
	cfg := loadFromString(t, yaml)

	if cfg.Window != 30*time.Second {
		t.Errorf("window: got %v", cfg.Window)
	}
	if cfg.Level() != slog.LevelDebug {
		t.Errorf("level: got %v", cfg.Level())
	}
	if cfg.Input.MaxLineBytes != 4096 {
		t.Errorf("max_line_bytes: got %d", cfg.Input.MaxLineBytes)
	}
	if cfg.Output.Precision != 3 {
		t.Errorf("precision: got %d", cfg.Output.Precision)
	}
	if cfg.Server.HTTPPort != 9090 {
		t.Errorf("http_port: got %d", cfg.Server.HTTPPort)
	}
	if cfg.Server.Auth.EffectiveHeader() != DefaultAuthHeader {
		t.Errorf("auth header: got %q", cfg.Server.Auth.EffectiveHeader())
	}
	if !cfg.Redis.Enabled() || cfg.Redis.Channel != "medians" {
		t.Errorf("redis: got %+v", cfg.Redis)
	}
	if cfg.Redis.BufferSize != DefaultBufferSize {
		t.Errorf("redis buffer_size: got %d", cfg.Redis.BufferSize)
	}
	if len(cfg.Alerts.Rules) != 1 || cfg.Alerts.Rules[0].Cooldown != time.Minute {
		t.Errorf("alerts rules: got %+v", cfg.Alerts.Rules)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadFromString(t, "log_level: info\n")

	if cfg.Window != DefaultWindow {
		t.Errorf("default window: got %v, want %v", cfg.Window, DefaultWindow)
	}
	if cfg.Output.Precision != DefaultPrecision {
		t.Errorf("default precision: got %d, want %d", cfg.Output.Precision, DefaultPrecision)
	}
	if cfg.Server.HTTPPort != DefaultHTTPPort {
		t.Errorf("default http_port: got %d, want %d", cfg.Server.HTTPPort, DefaultHTTPPort)
	}
	if cfg.Server.BroadcastInterval != DefaultBroadcastInterval {
		t.Errorf("default broadcast_interval: got %v", cfg.Server.BroadcastInterval)
	}
	if cfg.Redis.Enabled() {
		t.Error("redis should be disabled without an addr")
	}
}

func TestLoad_ExampleFile(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config.example.yaml"))
	if err != nil {
		t.Fatalf("Load example: %v", err)
	}
	if cfg.Window != time.Minute {
		t.Errorf("window: got %v, want 1m", cfg.Window)
	}
	if len(cfg.Alerts.Rules) != 2 {
		t.Fatalf("alert rules: got %d, want 2", len(cfg.Alerts.Rules))
	}
	if cfg.Alerts.Rules[0].Cooldown != 15*time.Minute {
		t.Errorf("cooldown: got %v, want 15m", cfg.Alerts.Rules[0].Cooldown)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"negative window", "window: -1s\n"},
		{"bad log level", "log_level: chatty\n"},
		{"negative precision", "output:\n  precision: -1\n"},
		{"port out of range", "server:\n  http_port: 70000\n"},
		{"unknown auth mode", "server:\n  auth:\n    mode: magictoken\n"},
		{"redis without channel", "redis:\n  addr: localhost:6379\n  channel: \"\"\n"},
		{"rule without name", "alerts:\n  rules:\n    - condition: \"median > 1\"\n"},
		{"rule bad condition", "alerts:\n  rules:\n    - name: x\n      condition: \"median\"\n"},
		{"rule bad severity", "alerts:\n  rules:\n    - name: x\n      condition: \"median > 1\"\n      severity: loud\n"},
		{"unknown webhook", "alerts:\n  webhooks:\n    - type: pager\n"},
		{"not yaml", "window: [\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := loadStringErr(t, tc.yaml); err == nil {
				t.Fatalf("expected error for %s, got nil", tc.name)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestAuthConfig_Key(t *testing.T) {
	t.Setenv("TEST_API_KEY", "supersecret")
	a := AuthConfig{Mode: "apikey", KeyEnv: "TEST_API_KEY"}
	if got := a.Key(); got != "supersecret" {
		t.Errorf("Key(): got %q, want %q", got, "supersecret")
	}
	if got := (AuthConfig{Mode: "apikey"}).Key(); got != "" {
		t.Errorf("Key() with no KeyEnv: got %q, want empty", got)
	}
}

func TestRedisConfig_Password(t *testing.T) {
	t.Setenv("TEST_REDIS_PASSWORD", "hunter2")
	r := RedisConfig{PasswordEnv: "TEST_REDIS_PASSWORD"}
	if got := r.Password(); got != "hunter2" {
		t.Errorf("Password(): got %q, want %q", got, "hunter2")
	}
}

func TestWebhookConfig_URL(t *testing.T) {
	t.Setenv("TEAMS_URL", "https://teams.example.com/webhook")
	w := WebhookConfig{Type: "teams", URLEnv: "TEAMS_URL"}
	if got := w.URL(); got != "https://teams.example.com/webhook" {
		t.Errorf("URL(): got %q", got)
	}
}

func TestLoadEnv(t *testing.T) {
	const key = "ROLLING_MEDIAN_TEST_ENV_KEY"
	t.Cleanup(func() { os.Unsetenv(key) })

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(key+"=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := LoadEnv(path); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if got := os.Getenv(key); got != "from-file" {
		t.Errorf("%s = %q, want from-file", key, got)
	}

	// Already-set variables win over the file.
	os.Setenv(key, "from-env")
	if err := LoadEnv(path); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if got := os.Getenv(key); got != "from-env" {
		t.Errorf("%s = %q, want from-env", key, got)
	}
}

func TestLoadEnv_MissingFileIsNotAnError(t *testing.T) {
	if err := LoadEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("LoadEnv(missing) = %v, want nil", err)
	}
	if err := LoadEnv(""); err != nil {
		t.Errorf("LoadEnv(\"\") = %v, want nil", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tc := range tests {
		got, err := ParseLevel(tc.in)
		if err != nil {
			t.Errorf("ParseLevel(%q) unexpected error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestDiff(t *testing.T) {
	base := loadFromString(t, "window: 60s\nlog_level: info\n")
	rule := AlertRule{Name: "hot", Condition: "median > 3"}

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   Change
	}{
		{"unchanged", func(c *Config) {}, Change{}},
		{"level", func(c *Config) { c.LogLevel = "debug" }, Change{LevelChanged: true}},
		{"level case only", func(c *Config) { c.LogLevel = "INFO" }, Change{}},
		{"rule added", func(c *Config) { c.Alerts.Rules = []AlertRule{rule} }, Change{AlertsChanged: true}},
		{"webhook added", func(c *Config) {
			c.Alerts.Webhooks = []WebhookConfig{{Type: "http", URLEnv: "HOOK"}}
		}, Change{AlertsChanged: true}},
		{"window", func(c *Config) { c.Window = 2 * time.Minute }, Change{WindowIgnored: true}},
		{"port is not reloadable", func(c *Config) { c.Server.HTTPPort = 9090 }, Change{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next := *base
			tc.mutate(&next)
			got := Diff(base, &next)
			if got.Config != &next {
				t.Error("Config: not the reloaded config")
			}
			got.Config = nil
			if got != tc.want {
				t.Errorf("Diff = %+v, want %+v", got, tc.want)
			}
			if got.Empty() != (tc.want == Change{}) {
				t.Errorf("Empty = %v", got.Empty())
			}
		})
	}
}

// startWatch runs Watch on a fresh file holding content and returns the
// file path and the channel of reported changes.
func startWatch(t *testing.T, content string) (string, <-chan Change) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	running, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	changes := make(chan Change, 16)
	go func() {
		_ = Watch(ctx, path, running, func(c Change) { changes <- c })
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	return path, changes
}

func nextChange(t *testing.T, changes <-chan Change) Change {
	t.Helper()
	select {
	case c := <-changes:
		return c
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reloaded config")
		return Change{}
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path, changes := startWatch(t, "log_level: info\n")

	if err := os.WriteFile(path, []byte("log_level: debug\n"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	c := nextChange(t, changes)
	if !c.LevelChanged || c.Config.Level() != slog.LevelDebug {
		t.Errorf("change = %+v, want level changed to debug", c)
	}
	if c.AlertsChanged || c.WindowIgnored {
		t.Errorf("change = %+v, want only the level", c)
	}
}

func TestWatch_ReloadsOnRename(t *testing.T) {
	path, changes := startWatch(t, "log_level: info\n")

	tmp := filepath.Join(filepath.Dir(path), ".config.yaml.swp")
	rules := "log_level: info\nalerts:\n  rules:\n    - name: hot\n      condition: \"median > 3\"\n"
	if err := os.WriteFile(tmp, []byte(rules), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("rename over config: %v", err)
	}

	c := nextChange(t, changes)
	if !c.AlertsChanged || len(c.Config.Alerts.Rules) != 1 {
		t.Errorf("change = %+v, want one new alert rule", c)
	}
}

func TestWatch_WindowReportedAsIgnored(t *testing.T) {
	path, changes := startWatch(t, "window: 60s\n")

	if err := os.WriteFile(path, []byte("window: 90s\n"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	c := nextChange(t, changes)
	if !c.WindowIgnored || c.Config.Window != 90*time.Second {
		t.Errorf("change = %+v, want ignored window of 90s", c)
	}

	// The window stays ignored, so a later level edit still reports it.
	if err := os.WriteFile(path, []byte("window: 90s\nlog_level: warn\n"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	c = nextChange(t, changes)
	if !c.LevelChanged || !c.WindowIgnored {
		t.Errorf("change = %+v, want level changed and window still ignored", c)
	}
}

func TestWatch_InvalidReloadSkipped(t *testing.T) {
	path, changes := startWatch(t, "log_level: info\n")

	if err := os.WriteFile(path, []byte("log_level: loud\n"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	select {
	case c := <-changes:
		t.Fatalf("invalid config produced change %+v", c)
	case <-time.After(400 * time.Millisecond):
	}

	if err := os.WriteFile(path, []byte("log_level: error\n"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	if c := nextChange(t, changes); c.Config.Level() != slog.LevelError {
		t.Errorf("level = %v, want error", c.Config.Level())
	}
}

// loadFromString writes yaml to a temp file and calls Load, failing on error.
func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := loadStringErr(t, content)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	return cfg
}

// loadStringErr writes yaml to a temp file and calls Load, returning any error.
func loadStringErr(t *testing.T, content string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return Load(path)
}
