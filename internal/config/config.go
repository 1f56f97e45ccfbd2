// Package config handles configuration loading, validation, and management for proctord.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete daemon configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version"`

	// Session configuration for attempt lifecycle policy.
	Session SessionConfig `toml:"session"`

	// Proctoring configuration for the sensors.
	Proctoring ProctoringConfig `toml:"proctoring"`

	// Content configuration for question banks.
	Content ContentConfig `toml:"content"`

	// Storage configuration for attempt persistence.
	Storage StorageConfig `toml:"storage"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging"`

	// IPC configuration for the control socket.
	IPC IPCConfig `toml:"ipc"`

	// Metrics configuration for the observability endpoint.
	Metrics MetricsConfig `toml:"metrics"`
}

// SessionConfig holds attempt lifecycle policy.
type SessionConfig struct {
	// MaxWarnings is the number of counted violations that terminates
	// an attempt.
	MaxWarnings int `toml:"max_warnings"`

	// DebounceMs is the per-group violation debounce window in
	// milliseconds. Violations of the same group inside the window are
	// logged but not counted.
	DebounceMs int `toml:"debounce_ms"`
}

// ProctoringConfig holds sensor tuning.
type ProctoringConfig struct {
	// DevtoolsThresholdPx is the outer/inner window gap, in pixels,
	// that reports inspection tooling as open.
	DevtoolsThresholdPx int `toml:"devtools_threshold_px"`

	// DevtoolsIntervalMs is the inspection poll interval.
	DevtoolsIntervalMs int `toml:"devtools_interval_ms"`

	// CameraIntervalMs is the face presence poll interval.
	CameraIntervalMs int `toml:"camera_interval_ms"`

	// AudioSampleMs is the audio level sample interval.
	AudioSampleMs int `toml:"audio_sample_ms"`

	// SpeechThreshold is the audio level (0-255 scale) above which
	// speech is suspected.
	SpeechThreshold float64 `toml:"speech_threshold"`

	// SpeechDwellMs is how long the level must stay above the
	// threshold before a violation fires.
	SpeechDwellMs int `toml:"speech_dwell_ms"`

	// DisabledSensors lists sensor names that must not be started.
	DisabledSensors []string `toml:"disabled_sensors"`
}

// ContentConfig holds question bank configuration.
type ContentConfig struct {
	// BankDir is the directory holding test definition files.
	BankDir string `toml:"bank_dir"`

	// Watch reloads banks when files in BankDir change.
	Watch bool `toml:"watch"`
}

// StorageConfig holds attempt persistence configuration.
type StorageConfig struct {
	// Path is the path to the SQLite database file.
	Path string `toml:"path"`

	// SecretPath is the path to the record HMAC secret. The file is
	// created with random content on first use when missing.
	SecretPath string `toml:"secret_path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format"`

	// Output is the log output: "stdout", "stderr", or "file".
	Output string `toml:"output"`

	// FilePath is the path to the log file (when Output is "file").
	FilePath string `toml:"file_path"`
}

// IPCConfig holds control socket configuration.
type IPCConfig struct {
	// Enabled determines whether the IPC server is started.
	Enabled bool `toml:"enabled"`

	// SocketPath is the path to the Unix socket.
	SocketPath string `toml:"socket_path"`

	// TimeoutSec is the per-connection read timeout.
	TimeoutSec int `toml:"timeout_sec"`
}

// MetricsConfig holds the observability endpoint configuration.
type MetricsConfig struct {
	// Enabled determines whether the HTTP listener is started.
	Enabled bool `toml:"enabled"`

	// ListenAddr is the HTTP listen address for /metrics and /health.
	ListenAddr string `toml:"listen_addr"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := DataDir()

	return &Config{
		Version: Version,
		Session: SessionConfig{
			MaxWarnings: 3,
			DebounceMs:  1500,
		},
		Proctoring: ProctoringConfig{
			DevtoolsThresholdPx: 200,
			DevtoolsIntervalMs:  2000,
			CameraIntervalMs:    2000,
			AudioSampleMs:       500,
			SpeechThreshold:     60,
			SpeechDwellMs:       2000,
			DisabledSensors:     []string{},
		},
		Content: ContentConfig{
			BankDir: filepath.Join(dir, "banks"),
			Watch:   true,
		},
		Storage: StorageConfig{
			Path:       filepath.Join(dir, "attempts.db"),
			SecretPath: filepath.Join(dir, "record_secret"),
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "text",
			Output:   "stderr",
			FilePath: filepath.Join(dir, "proctord.log"),
		},
		IPC: IPCConfig{
			Enabled:    true,
			SocketPath: defaultSocketPath(),
			TimeoutSec: 30,
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: "127.0.0.1:9641",
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(DataDir(), "config.toml")
}

// Load reads the TOML configuration at path. A missing file yields the
// defaults; present keys override them.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = ConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("decode TOML: %w", err)
	}

	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// DataDir returns the base proctord directory. PROCTORD_DATA_DIR
// overrides the platform default.
func DataDir() string {
	if envDir := os.Getenv("PROCTORD_DATA_DIR"); envDir != "" {
		return envDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "proctord")
	}
	return filepath.Join(home, ".proctord")
}

// ApplyEnvOverrides applies environment variable overrides.
// Variables are prefixed with PROCTORD_.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("PROCTORD_BANK_DIR"); v != "" {
		c.Content.BankDir = v
	}
	if v := os.Getenv("PROCTORD_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("PROCTORD_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PROCTORD_SOCKET_PATH"); v != "" {
		c.IPC.SocketPath = v
	}
}

// EnsureDirectories creates the directories the daemon writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Content.BankDir,
		filepath.Dir(c.Storage.Path),
		filepath.Dir(c.Storage.SecretPath),
		filepath.Dir(c.IPC.SocketPath),
	}
	if c.Logging.Output == "file" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func defaultSocketPath() string {
	if xdgRuntime := os.Getenv("XDG_RUNTIME_DIR"); xdgRuntime != "" {
		return filepath.Join(xdgRuntime, "proctord.sock")
	}
	return "/tmp/proctord.sock"
}
