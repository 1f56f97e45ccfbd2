// Package content supplies question banks to the session engine.
//
// Banks live on disk as JSON or YAML test definitions, one test per
// file. Every bank is validated against a JSON Schema plus semantic
// rules (unique question IDs, correct option present in the option
// list) before it becomes visible. A background watcher reloads the
// bank directory when definitions change; a bank that fails validation
// is skipped and the previous good version stays served.
package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"proctord/internal/exam"
)

var (
	// ErrUnknownTest is returned when no bank defines the test.
	ErrUnknownTest = errors.New("content: unknown test")
)

// TestDefinition is one loadable test bank.
type TestDefinition struct {
	ID               string          `json:"id" yaml:"id"`
	Title            string          `json:"title" yaml:"title"`
	DurationSeconds  int             `json:"duration_seconds" yaml:"duration_seconds"`
	PassingThreshold int             `json:"passing_threshold" yaml:"passing_threshold"`
	Questions        []exam.Question `json:"questions" yaml:"questions"`
}

// Duration returns the allotted duration.
func (d *TestDefinition) Duration() time.Duration {
	return time.Duration(d.DurationSeconds) * time.Second
}

// validate applies semantic rules the schema cannot express.
func (d *TestDefinition) validate() error {
	if d.ID == "" {
		return fmt.Errorf("content: test missing id")
	}
	if d.DurationSeconds <= 0 {
		return fmt.Errorf("content: test %s: duration must be positive", d.ID)
	}
	if d.PassingThreshold < 0 || d.PassingThreshold > 100 {
		return fmt.Errorf("content: test %s: passing threshold %d out of range", d.ID, d.PassingThreshold)
	}
	if len(d.Questions) == 0 {
		return fmt.Errorf("content: test %s: no questions", d.ID)
	}

	seen := make(map[string]bool, len(d.Questions))
	for i, q := range d.Questions {
		if q.ID == "" {
			return fmt.Errorf("content: test %s: question %d missing id", d.ID, i)
		}
		if seen[q.ID] {
			return fmt.Errorf("content: test %s: duplicate question id %s", d.ID, q.ID)
		}
		seen[q.ID] = true

		if len(q.Options) < 2 {
			return fmt.Errorf("content: test %s: question %s needs at least 2 options", d.ID, q.ID)
		}
		found := false
		for _, opt := range q.Options {
			if opt == q.Correct {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("content: test %s: question %s: correct option not in option list", d.ID, q.ID)
		}
	}
	return nil
}

// Library serves validated test definitions from a bank directory.
type Library struct {
	dir    string
	logger *slog.Logger

	mu    sync.RWMutex
	tests map[string]*TestDefinition

	// watcher state
	fsWatcher *fsnotify.Watcher
	pending   map[string]time.Time
	pendingMu sync.Mutex
	done      chan struct{}
	wg        sync.WaitGroup
	watching  bool
}

// Open loads every bank in dir. Individual invalid banks are logged
// and skipped; an unreadable directory is an error.
func Open(dir string, logger *slog.Logger) (*Library, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Library{
		dir:     dir,
		logger:  logger,
		tests:   make(map[string]*TestDefinition),
		pending: make(map[string]time.Time),
	}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Test returns the definition for a test ID.
func (l *Library) Test(id string) (*TestDefinition, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	def, ok := l.tests[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTest, id)
	}
	return def, nil
}

// TestIDs returns the IDs of every loaded test.
func (l *Library) TestIDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]string, 0, len(l.tests))
	for id := range l.tests {
		ids = append(ids, id)
	}
	return ids
}

// Reload rescans the bank directory. Banks that fail validation are
// skipped; previously loaded versions of them stay served.
func (l *Library) Reload() error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return fmt.Errorf("content: read bank directory: %w", err)
	}

	loaded := make(map[string]*TestDefinition)
	for _, entry := range entries {
		if entry.IsDir() || !isBankFile(entry.Name()) {
			continue
		}
		path := filepath.Join(l.dir, entry.Name())
		def, err := loadBank(path)
		if err != nil {
			l.logger.Warn("skipping invalid question bank", "path", path, "error", err)
			continue
		}
		if prev, dup := loaded[def.ID]; dup {
			l.logger.Warn("duplicate test id in bank directory",
				"test_id", def.ID, "kept", prev.ID, "skipped", path)
			continue
		}
		loaded[def.ID] = def
	}

	l.mu.Lock()
	for id, def := range loaded {
		l.tests[id] = def
	}
	l.mu.Unlock()

	l.logger.Info("question banks loaded", "dir", l.dir, "tests", len(loaded))
	return nil
}

func isBankFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// loadBank reads, schema-validates and decodes one bank file.
func loadBank(path string) (*TestDefinition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc interface{}
	var def TestDefinition

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		if err := validateSchema(doc); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &def); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
		if err := validateSchema(normalizeYAML(doc)); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, &def); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	}

	if err := def.validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// normalizeYAML converts yaml.v3 decode output into the JSON-style
// value tree the schema validator expects.
func normalizeYAML(v interface{}) interface{} {
	switch vv := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(vv))
		for k, val := range vv {
			out[k] = normalizeYAML(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(vv))
		for i, val := range vv {
			out[i] = normalizeYAML(val)
		}
		return out
	case int:
		return float64(vv)
	case int64:
		return float64(vv)
	default:
		return vv
	}
}
