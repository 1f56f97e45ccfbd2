// Package store persists finished attempts to SQLite.
//
// The store is the persistence collaborator: it receives each frozen
// attempt exactly once, after the session engine reaches a terminal
// state. Each attempt row carries an HMAC computed with a per-attempt
// key derived from the daemon secret, so stored records are
// tamper-evident. The engine never waits on or rolls back a store
// failure.
package store

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/hkdf"

	"proctord/internal/exam"
)

var (
	// ErrNotFinished is returned when an in-progress attempt is handed
	// to the store.
	ErrNotFinished = errors.New("store: attempt not finished")

	// ErrNotFound is returned when an attempt does not exist.
	ErrNotFound = errors.New("store: attempt not found")
)

const schema = `
CREATE TABLE IF NOT EXISTS attempts (
    id              TEXT PRIMARY KEY,
    test_id         TEXT NOT NULL,
    status          TEXT NOT NULL,
    started_at_ns   INTEGER NOT NULL,
    duration_sec    INTEGER NOT NULL,
    time_spent_sec  INTEGER NOT NULL,
    score           INTEGER NOT NULL,
    total_questions INTEGER NOT NULL,
    percentage      INTEGER NOT NULL,
    passed          INTEGER NOT NULL,
    sections        TEXT NOT NULL,
    record_hmac     BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_attempts_test ON attempts(test_id, started_at_ns);

CREATE TABLE IF NOT EXISTS answers (
    attempt_id    TEXT NOT NULL REFERENCES attempts(id),
    question_idx  INTEGER NOT NULL,
    question_id   TEXT NOT NULL,
    selected      TEXT,
    answered      INTEGER NOT NULL,
    flagged       INTEGER NOT NULL,
    PRIMARY KEY (attempt_id, question_idx)
);

CREATE TABLE IF NOT EXISTS violations (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    attempt_id    TEXT NOT NULL REFERENCES attempts(id),
    type          TEXT NOT NULL,
    detail        TEXT,
    counted       INTEGER NOT NULL,
    timestamp_ns  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_violations_attempt ON violations(attempt_id, timestamp_ns);
`

// Store is the SQLite attempt store.
type Store struct {
	db     *sql.DB
	secret []byte
}

// Open opens or creates the database at path and applies the schema.
// The secret seeds per-attempt HMAC keys; it must be stable across
// daemon restarts for Verify to succeed.
func Open(path string, secret []byte) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &Store{db: db, secret: make([]byte, len(secret))}
	copy(s.secret, secret)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Record persists a finished attempt. It implements session.Recorder.
func (s *Store) Record(a *exam.Attempt) error {
	if a == nil || !a.Status.Terminal() || a.Outcome == nil {
		return ErrNotFinished
	}

	sections, err := json.Marshal(a.Outcome.Sections)
	if err != nil {
		return fmt.Errorf("encode sections: %w", err)
	}

	mac, err := s.attemptMAC(a)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO attempts (id, test_id, status, started_at_ns, duration_sec,
			time_spent_sec, score, total_questions, percentage, passed, sections, record_hmac)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.TestID, string(a.Status), a.StartedAt.UnixNano(),
		int(a.Duration/time.Second), int(a.TimeSpent/time.Second),
		a.Outcome.Score, a.Outcome.TotalQuestions, a.Outcome.Percentage,
		boolInt(a.Outcome.Passed), string(sections), mac,
	); err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}

	for i, r := range a.Answers.Records() {
		questionID := ""
		if i < len(a.Questions) {
			questionID = a.Questions[i].ID
		}
		var selected interface{}
		if r.Answered {
			selected = r.Selected
		}
		if _, err := tx.Exec(`
			INSERT INTO answers (attempt_id, question_idx, question_id, selected, answered, flagged)
			VALUES (?, ?, ?, ?, ?, ?)`,
			a.ID, i, questionID, selected, boolInt(r.Answered), boolInt(r.Flagged),
		); err != nil {
			return fmt.Errorf("insert answer %d: %w", i, err)
		}
	}

	for _, v := range a.Violations {
		if _, err := tx.Exec(`
			INSERT INTO violations (attempt_id, type, detail, counted, timestamp_ns)
			VALUES (?, ?, ?, ?, ?)`,
			a.ID, string(v.Type), v.Detail, boolInt(v.Counted), v.Timestamp.UnixNano(),
		); err != nil {
			return fmt.Errorf("insert violation: %w", err)
		}
	}

	return tx.Commit()
}

// AttemptSummary is one attempt history row.
type AttemptSummary struct {
	ID               string             `json:"id"`
	TestID           string             `json:"test_id"`
	Status           exam.AttemptStatus `json:"status"`
	StartedAt        time.Time          `json:"started_at"`
	TimeSpentSeconds int                `json:"time_spent_seconds"`
	Score            int                `json:"score"`
	TotalQuestions   int                `json:"total_questions"`
	Percentage       int                `json:"percentage"`
	Passed           bool               `json:"passed"`
	Violations       int                `json:"violations"`
}

// History returns the most recent attempts, newest first. An empty
// testID matches every test.
func (s *Store) History(testID string, limit int) ([]AttemptSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT a.id, a.test_id, a.status, a.started_at_ns, a.time_spent_sec,
			a.score, a.total_questions, a.percentage, a.passed,
			(SELECT COUNT(*) FROM violations v WHERE v.attempt_id = a.id)
		FROM attempts a`
	args := []interface{}{}
	if testID != "" {
		query += ` WHERE a.test_id = ?`
		args = append(args, testID)
	}
	query += ` ORDER BY a.started_at_ns DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []AttemptSummary
	for rows.Next() {
		var sum AttemptSummary
		var status string
		var startedNs int64
		var passed int
		if err := rows.Scan(&sum.ID, &sum.TestID, &status, &startedNs,
			&sum.TimeSpentSeconds, &sum.Score, &sum.TotalQuestions,
			&sum.Percentage, &passed, &sum.Violations); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		sum.Status = exam.AttemptStatus(status)
		sum.StartedAt = time.Unix(0, startedNs)
		sum.Passed = passed != 0
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Violations returns the audit log for one attempt, oldest first.
func (s *Store) Violations(attemptID string) ([]exam.Violation, error) {
	rows, err := s.db.Query(`
		SELECT type, detail, counted, timestamp_ns
		FROM violations WHERE attempt_id = ? ORDER BY timestamp_ns`, attemptID)
	if err != nil {
		return nil, fmt.Errorf("query violations: %w", err)
	}
	defer rows.Close()

	var out []exam.Violation
	for rows.Next() {
		var v exam.Violation
		var typ string
		var counted int
		var tsNs int64
		if err := rows.Scan(&typ, &v.Detail, &counted, &tsNs); err != nil {
			return nil, fmt.Errorf("scan violation row: %w", err)
		}
		v.Type = exam.ViolationType(typ)
		v.Counted = counted != 0
		v.Timestamp = time.Unix(0, tsNs)
		out = append(out, v)
	}
	return out, rows.Err()
}

// Verify recomputes the record HMAC for a stored attempt and reports
// whether it matches.
func (s *Store) Verify(attemptID string) (bool, error) {
	row := s.db.QueryRow(`
		SELECT id, test_id, status, started_at_ns, time_spent_sec,
			score, total_questions, percentage, passed, record_hmac
		FROM attempts WHERE id = ?`, attemptID)

	var (
		id, testID, status                          string
		startedNs                                   int64
		timeSpent, score, total, percentage, passed int
		stored                                      []byte
	)
	if err := row.Scan(&id, &testID, &status, &startedNs, &timeSpent,
		&score, &total, &percentage, &passed, &stored); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("load attempt: %w", err)
	}

	expected, err := s.recordMAC(id, testID, status, startedNs, timeSpent,
		score, total, percentage, passed != 0)
	if err != nil {
		return false, err
	}
	return hmac.Equal(stored, expected), nil
}

// attemptMAC computes the tamper-evidence HMAC for an attempt.
func (s *Store) attemptMAC(a *exam.Attempt) ([]byte, error) {
	return s.recordMAC(a.ID, a.TestID, string(a.Status), a.StartedAt.UnixNano(),
		int(a.TimeSpent/time.Second), a.Outcome.Score, a.Outcome.TotalQuestions,
		a.Outcome.Percentage, a.Outcome.Passed)
}

func (s *Store) recordMAC(id, testID, status string, startedNs int64,
	timeSpent, score, total, percentage int, passed bool) ([]byte, error) {

	key, err := s.deriveKey(id)
	if err != nil {
		return nil, err
	}

	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "%s|%s|%s|%d|%d|%d|%d|%d|%t",
		id, testID, status, startedNs, timeSpent, score, total, percentage, passed)
	return mac.Sum(nil), nil
}

// deriveKey derives the per-attempt HMAC key from the daemon secret.
func (s *Store) deriveKey(attemptID string) ([]byte, error) {
	r := hkdf.New(sha256.New, s.secret, []byte(attemptID), []byte("attempt-record"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive record key: %w", err)
	}
	return key, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
