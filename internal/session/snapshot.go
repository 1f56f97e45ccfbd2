package session

import (
	"proctord/internal/countdown"
	"proctord/internal/exam"
	"proctord/internal/monitor"
)

// Snapshot is a side-effect-free view of the engine for the UI layer.
// It exposes derived violation/warning state only, never raw sensor
// internals.
type Snapshot struct {
	State     State  `json:"state"`
	AttemptID string `json:"attempt_id,omitempty"`
	TestID    string `json:"test_id,omitempty"`

	CurrentIndex    int            `json:"current_index"`
	CurrentQuestion *exam.Question `json:"current_question,omitempty"`
	QuestionCount   int            `json:"question_count"`

	Answers    []exam.AnswerRecord `json:"answers,omitempty"`
	Unanswered int                 `json:"unanswered"`
	Flagged    int                 `json:"flagged"`

	RemainingSeconds int            `json:"remaining_seconds"`
	TimerTier        countdown.Tier `json:"timer_tier"`

	Warnings          exam.WarningState      `json:"warnings"`
	LastViolation     *exam.Violation        `json:"last_violation,omitempty"`
	ViolationCount    int                    `json:"violation_count"`
	DegradedSensors   []monitor.SensorStatus `json:"degraded_sensors,omitempty"`
	TerminationDetail string                 `json:"termination_detail,omitempty"`

	Outcome *exam.Outcome `json:"outcome,omitempty"`
}

// Snapshot returns the current view of the session.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		State:     e.state,
		TimerTier: countdown.TierNormal,
		Warnings:  e.warnings,
	}
	if e.attempt == nil {
		return snap
	}

	snap.AttemptID = e.attempt.ID
	snap.TestID = e.attempt.TestID
	snap.CurrentIndex = e.currentIndex
	snap.QuestionCount = len(e.attempt.Questions)
	if e.currentIndex < len(e.attempt.Questions) {
		q := e.attempt.Questions[e.currentIndex]
		snap.CurrentQuestion = &q
	}

	snap.Answers = e.attempt.Answers.Records()
	snap.Unanswered = e.attempt.Answers.Unanswered()
	snap.Flagged = e.attempt.Answers.Flagged()

	if e.timer != nil {
		snap.RemainingSeconds = e.timer.RemainingSeconds()
		snap.TimerTier = e.timer.Tier()
	}

	if e.lastViol != nil {
		v := *e.lastViol
		snap.LastViolation = &v
	}
	snap.ViolationCount = len(e.attempt.Violations)
	snap.TerminationDetail = e.termDetail
	if e.mon != nil {
		snap.DegradedSensors = e.mon.Degraded()
	}
	snap.Outcome = e.outcome
	return snap
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Violations returns a copy of the current attempt's audit log, in
// any lifecycle state.
func (e *Engine) Violations() []exam.Violation {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.attempt == nil {
		return nil
	}
	out := make([]exam.Violation, len(e.attempt.Violations))
	copy(out, e.attempt.Violations)
	return out
}

// Attempt returns the frozen attempt once the session has reached a
// terminal state, and nil before that.
func (e *Engine) Attempt() *exam.Attempt {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateCompleted && e.state != StateTerminated {
		return nil
	}
	return e.attempt
}
