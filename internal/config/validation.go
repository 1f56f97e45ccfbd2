package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Version <= 0 || c.Version > Version {
		return fmt.Errorf("%w: unsupported schema version %d", ErrInvalidConfig, c.Version)
	}

	if c.Session.MaxWarnings < 1 {
		return fmt.Errorf("%w: session.max_warnings must be at least 1", ErrInvalidConfig)
	}
	if c.Session.DebounceMs < 0 {
		return fmt.Errorf("%w: session.debounce_ms must not be negative", ErrInvalidConfig)
	}

	p := c.Proctoring
	if p.DevtoolsThresholdPx <= 0 {
		return fmt.Errorf("%w: proctoring.devtools_threshold_px must be positive", ErrInvalidConfig)
	}
	for name, ms := range map[string]int{
		"proctoring.devtools_interval_ms": p.DevtoolsIntervalMs,
		"proctoring.camera_interval_ms":   p.CameraIntervalMs,
		"proctoring.audio_sample_ms":      p.AudioSampleMs,
		"proctoring.speech_dwell_ms":      p.SpeechDwellMs,
	} {
		if ms <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, name)
		}
	}
	if p.SpeechThreshold < 0 || p.SpeechThreshold > 255 {
		return fmt.Errorf("%w: proctoring.speech_threshold must be within 0-255", ErrInvalidConfig)
	}

	if c.Content.BankDir == "" {
		return fmt.Errorf("%w: content.bank_dir must be set", ErrInvalidConfig)
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("%w: storage.path must be set", ErrInvalidConfig)
	}
	if c.Storage.SecretPath == "" {
		return fmt.Errorf("%w: storage.secret_path must be set", ErrInvalidConfig)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: logging.level %q", ErrInvalidConfig, c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: logging.format %q", ErrInvalidConfig, c.Logging.Format)
	}
	switch c.Logging.Output {
	case "stdout", "stderr", "file":
	default:
		return fmt.Errorf("%w: logging.output %q", ErrInvalidConfig, c.Logging.Output)
	}
	if c.Logging.Output == "file" && c.Logging.FilePath == "" {
		return fmt.Errorf("%w: logging.file_path required for file output", ErrInvalidConfig)
	}

	if c.IPC.Enabled {
		if c.IPC.SocketPath == "" {
			return fmt.Errorf("%w: ipc.socket_path must be set", ErrInvalidConfig)
		}
		if c.IPC.TimeoutSec <= 0 {
			return fmt.Errorf("%w: ipc.timeout_sec must be positive", ErrInvalidConfig)
		}
	}

	if c.Metrics.Enabled && c.Metrics.ListenAddr == "" {
		return fmt.Errorf("%w: metrics.listen_addr must be set", ErrInvalidConfig)
	}

	return nil
}
