package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"ERROR", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tc := range cases {
		got, err := ParseLevel(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
		}
		if !tc.wantErr && got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proctord.log")
	l, err := New(&Config{
		Level:     LevelInfo,
		Format:    "json",
		Output:    "file",
		FilePath:  path,
		Component: "test",
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	l.Info("attempt started", "test_id", "kakunin")
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"msg":"attempt started"`) {
		t.Errorf("log line missing message:\n%s", out)
	}
	if !strings.Contains(out, `"component":"test"`) {
		t.Errorf("log line missing component:\n%s", out)
	}
}

func TestRedaction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proctord.log")
	l, err := New(&Config{
		Level:    LevelInfo,
		Format:   "text",
		Output:   "file",
		FilePath: path,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	l.Info("store opened", "record_secret", "hunter2", "path", "/tmp/db")
	l.Close()

	data, _ := os.ReadFile(path)
	out := string(data)
	if strings.Contains(out, "hunter2") {
		t.Errorf("secret leaked into log output:\n%s", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Errorf("expected redaction marker:\n%s", out)
	}
	if !strings.Contains(out, "/tmp/db") {
		t.Errorf("non-sensitive field should survive:\n%s", out)
	}
}

func TestWithComponent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proctord.log")
	l, err := New(&Config{
		Level:    LevelInfo,
		Format:   "json",
		Output:   "file",
		FilePath: path,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	l.WithComponent("monitor").Info("started")
	l.Close()

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"component":"monitor"`) {
		t.Errorf("child component missing:\n%s", data)
	}
}
