// Package exam defines the data model for a proctored assessment attempt.
//
// An Attempt is one run of an examination by one user, from start to a
// terminal status. The session engine is the sole writer of an Attempt
// while it is in progress; once finalized it is handed to the attempt
// store and never mutated again.
package exam

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

// ErrInvalidQuestion is returned for a question index outside the attempt.
var ErrInvalidQuestion = errors.New("exam: question index out of range")

// Question is a single multiple-choice question. Questions are immutable;
// they are supplied by the content provider when an attempt starts.
type Question struct {
	ID          string   `json:"id"`
	Section     string   `json:"section"`
	Prompt      string   `json:"prompt"`
	Options     []string `json:"options"`
	Correct     string   `json:"correct"`
	Explanation string   `json:"explanation,omitempty"`
}

// AttemptStatus is the lifecycle status of an attempt.
type AttemptStatus string

const (
	// StatusInProgress indicates the attempt is still running.
	StatusInProgress AttemptStatus = "in_progress"
	// StatusCompleted indicates a normal submission (user or timer).
	StatusCompleted AttemptStatus = "completed"
	// StatusTerminated indicates the integrity monitor forced submission.
	// A terminated attempt is never eligible for certificate issuance.
	StatusTerminated AttemptStatus = "terminated"
)

// Terminal reports whether the status is a terminal state.
func (s AttemptStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusTerminated
}

// Attempt is one examination instance.
type Attempt struct {
	ID        string        `json:"id"`
	TestID    string        `json:"test_id"`
	Questions []Question    `json:"questions"`
	Duration  time.Duration `json:"duration"`
	StartedAt time.Time     `json:"started_at"`

	Status     AttemptStatus `json:"status"`
	TimeSpent  time.Duration `json:"time_spent"`
	Outcome    *Outcome      `json:"outcome,omitempty"`
	Violations []Violation   `json:"violations"`

	// Answers holds one record per question, in question order.
	Answers *AnswerSheet `json:"answers"`
}

// NewAttempt constructs a fresh in-progress attempt over the given
// questions. The answer sheet is initialized with one blank record per
// question.
func NewAttempt(testID string, questions []Question, duration time.Duration) *Attempt {
	return &Attempt{
		ID:        newAttemptID(),
		TestID:    testID,
		Questions: questions,
		Duration:  duration,
		StartedAt: time.Now(),
		Status:    StatusInProgress,
		Answers:   NewAnswerSheet(len(questions)),
	}
}

// RecordViolation appends a violation to the attempt's audit log.
// The log is append-only; entries are never mutated or removed.
func (a *Attempt) RecordViolation(v Violation) {
	a.Violations = append(a.Violations, v)
}

func newAttemptID() string {
	var id [16]byte
	rand.Read(id[:])
	return hex.EncodeToString(id[:])
}
