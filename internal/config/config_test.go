package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}

	if cfg.Session.MaxWarnings != 3 {
		t.Errorf("max warnings = %d, want 3", cfg.Session.MaxWarnings)
	}
	if cfg.Session.DebounceMs != 1500 {
		t.Errorf("debounce = %dms, want 1500", cfg.Session.DebounceMs)
	}
	if cfg.Proctoring.DevtoolsThresholdPx != 200 {
		t.Errorf("devtools threshold = %d, want 200", cfg.Proctoring.DevtoolsThresholdPx)
	}
	if cfg.Proctoring.SpeechThreshold != 60 {
		t.Errorf("speech threshold = %v, want 60", cfg.Proctoring.SpeechThreshold)
	}
	if !cfg.IPC.Enabled {
		t.Error("IPC should default to enabled")
	}
	if cfg.Metrics.Enabled {
		t.Error("metrics should default to disabled")
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Session.MaxWarnings != 3 {
		t.Errorf("expected defaults, got max warnings %d", cfg.Session.MaxWarnings)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
version = 1

[session]
max_warnings = 5
debounce_ms = 2000

[proctoring]
devtools_threshold_px = 300
disabled_sensors = ["speech", "face_presence"]

[logging]
level = "debug"
format = "json"

[metrics]
enabled = true
listen_addr = "127.0.0.1:9999"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Session.MaxWarnings != 5 {
		t.Errorf("max warnings = %d, want 5", cfg.Session.MaxWarnings)
	}
	if cfg.Session.DebounceMs != 2000 {
		t.Errorf("debounce = %d, want 2000", cfg.Session.DebounceMs)
	}
	if cfg.Proctoring.DevtoolsThresholdPx != 300 {
		t.Errorf("devtools threshold = %d, want 300", cfg.Proctoring.DevtoolsThresholdPx)
	}
	if len(cfg.Proctoring.DisabledSensors) != 2 {
		t.Errorf("disabled sensors = %v", cfg.Proctoring.DisabledSensors)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.ListenAddr != "127.0.0.1:9999" {
		t.Errorf("metrics = %+v", cfg.Metrics)
	}

	// Untouched sections keep their defaults.
	if cfg.Proctoring.CameraIntervalMs != 2000 {
		t.Errorf("camera interval = %d, want default 2000", cfg.Proctoring.CameraIntervalMs)
	}
}

func TestLoadMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[session\nmax_warnings = 5"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("malformed TOML should be an error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PROCTORD_BANK_DIR", "/srv/banks")
	t.Setenv("PROCTORD_LOG_LEVEL", "debug")
	t.Setenv("PROCTORD_SOCKET_PATH", "/run/test/proctord.sock")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Content.BankDir != "/srv/banks" {
		t.Errorf("bank dir = %q", cfg.Content.BankDir)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
	if cfg.IPC.SocketPath != "/run/test/proctord.sock" {
		t.Errorf("socket path = %q", cfg.IPC.SocketPath)
	}
}

func TestDataDirEnvOverride(t *testing.T) {
	t.Setenv("PROCTORD_DATA_DIR", "/var/lib/proctord")
	if got := DataDir(); got != "/var/lib/proctord" {
		t.Errorf("DataDir = %q", got)
	}
}

func TestValidateRejections(t *testing.T) {
	mutations := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero max warnings", func(c *Config) { c.Session.MaxWarnings = 0 }, "max_warnings"},
		{"negative debounce", func(c *Config) { c.Session.DebounceMs = -1 }, "debounce_ms"},
		{"zero devtools threshold", func(c *Config) { c.Proctoring.DevtoolsThresholdPx = 0 }, "devtools_threshold_px"},
		{"speech threshold above 255", func(c *Config) { c.Proctoring.SpeechThreshold = 300 }, "speech_threshold"},
		{"empty bank dir", func(c *Config) { c.Content.BankDir = "" }, "bank_dir"},
		{"empty storage path", func(c *Config) { c.Storage.Path = "" }, "path"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "format"},
		{"file output without path", func(c *Config) {
			c.Logging.Output = "file"
			c.Logging.FilePath = ""
		}, "file_path"},
		{"ipc enabled without socket", func(c *Config) { c.IPC.SocketPath = "" }, "socket_path"},
		{"metrics enabled without addr", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.ListenAddr = ""
		}, "listen_addr"},
	}

	for _, tt := range mutations {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Content.BankDir = filepath.Join(dir, "banks")
	cfg.Storage.Path = filepath.Join(dir, "data", "attempts.db")
	cfg.Storage.SecretPath = filepath.Join(dir, "data", "record_secret")
	cfg.IPC.SocketPath = filepath.Join(dir, "run", "proctord.sock")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, p := range []string{cfg.Content.BankDir, filepath.Dir(cfg.Storage.Path), filepath.Dir(cfg.IPC.SocketPath)} {
		if info, err := os.Stat(p); err != nil || !info.IsDir() {
			t.Errorf("directory %s not created: %v", p, err)
		}
	}
}
