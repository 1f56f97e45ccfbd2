// Package session implements the proctored assessment session state
// machine.
//
// The engine owns one attempt from start to forced-or-voluntary
// submission: it drives the countdown timer, the answer sheet, and the
// integrity monitor, and it is the only writer of attempt state. All
// three exit triggers (user submit, timer expiry, monitor termination)
// funnel through one guarded transition; the first to fire wins and
// every later trigger observes the machine already out of running and
// becomes a no-op returning the same outcome.
//
// State machine:
//
//	idle -> running -> submitting -> completed | terminated
//
// Entering running starts the timer and all sensor adapters; entering
// submitting stops them synchronously, computes the outcome, and hands
// the frozen attempt to the recorder without awaiting delivery.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"proctord/internal/countdown"
	"proctord/internal/exam"
	"proctord/internal/monitor"
	"proctord/internal/scoring"
	"proctord/internal/sensor"
)

// State is the engine lifecycle state.
type State string

const (
	// StateIdle is pre-start: no timer, no sensors, no attempt.
	StateIdle State = "idle"
	// StateRunning is an attempt in progress.
	StateRunning State = "running"
	// StateSubmitting is the transient freeze while the outcome is
	// computed. It is near-instantaneous; snapshots rarely observe it.
	StateSubmitting State = "submitting"
	// StateCompleted is terminal: normal submission.
	StateCompleted State = "completed"
	// StateTerminated is terminal: violation-forced submission. The
	// attempt is flagged integrity-compromised.
	StateTerminated State = "terminated"
)

var (
	// ErrAlreadyStarted is returned when Start is called outside idle.
	ErrAlreadyStarted = errors.New("session: attempt already started")

	// ErrNotRunning is returned for mutations outside the running state.
	ErrNotRunning = errors.New("session: no attempt running")

	// ErrNotFinished is returned when Reset is called before a terminal
	// state.
	ErrNotFinished = errors.New("session: attempt not finished")
)

// Test is the content collaborator's payload: everything needed to
// start an attempt. Read-only, fetched once before entering running.
type Test struct {
	ID               string
	Questions        []exam.Question
	Duration         time.Duration
	PassingThreshold int
}

// Recorder is the persistence collaborator. Record receives the
// finished attempt exactly once; delivery guarantees and retries are
// the recorder's concern. The engine never rolls back on failure.
type Recorder interface {
	Record(attempt *exam.Attempt) error
}

// trigger identifies which exit path fired first.
type trigger int

const (
	triggerUser trigger = iota
	triggerExpiry
	triggerMonitor
)

// Engine is the session state machine.
type Engine struct {
	cfg      monitor.Config
	adapters []sensor.Adapter
	recorder Recorder
	logger   *slog.Logger

	// mu guards everything below. The guarded transition in finish is
	// the single synchronization point for all exit triggers.
	mu           sync.Mutex
	state        State
	test         Test
	attempt      *exam.Attempt
	timer        *countdown.Timer
	mon          *monitor.Monitor
	cancel       context.CancelFunc
	currentIndex int
	warnings     exam.WarningState
	lastViol     *exam.Violation
	outcome      *exam.Outcome
	termDetail   string

	// recordWG tracks in-flight recorder handoffs for Drain.
	recordWG sync.WaitGroup
}

// New creates an idle engine over the given sensor adapters. The
// recorder may be nil when persistence is handled elsewhere; a nil
// logger falls back to slog.Default().
func New(cfg monitor.Config, adapters []sensor.Adapter, recorder Recorder, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:      cfg,
		adapters: adapters,
		recorder: recorder,
		logger:   logger,
		state:    StateIdle,
	}
}

// Start constructs a fresh attempt from the test's question list and
// allotted duration and transitions idle -> running: the countdown
// begins and every sensor adapter is started. Warning state resets
// with the new attempt.
func (e *Engine) Start(test Test) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateIdle {
		return ErrAlreadyStarted
	}

	e.test = test
	e.attempt = exam.NewAttempt(test.ID, test.Questions, test.Duration)
	e.currentIndex = 0
	e.warnings = exam.WarningState{Max: e.cfg.MaxWarnings}
	e.lastViol = nil
	e.outcome = nil
	e.termDetail = ""

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	e.timer = countdown.New(test.Duration)
	e.mon = monitor.New(e.cfg, e.adapters, e.onViolation, e.onTerminate)

	if err := e.timer.Start(e.onExpiry); err != nil {
		cancel()
		return err
	}
	if err := e.mon.Start(ctx); err != nil {
		e.timer.Stop()
		cancel()
		return err
	}

	e.state = StateRunning
	e.logger.Info("attempt started",
		"attempt_id", e.attempt.ID,
		"test_id", test.ID,
		"questions", len(test.Questions),
		"duration", test.Duration)

	if degraded := e.mon.Degraded(); len(degraded) > 0 {
		for _, st := range degraded {
			e.logger.Warn("sensor degraded", "sensor", st.Name, "reason", st.Reason)
		}
	}
	return nil
}

// Answer records the selected option for a question. Valid only while
// running; re-answering overwrites.
func (e *Engine) Answer(questionIndex int, option string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateRunning {
		return ErrNotRunning
	}
	return e.attempt.Answers.Set(questionIndex, option)
}

// ToggleFlag flips the review flag for a question. Valid only while
// running.
func (e *Engine) ToggleFlag(questionIndex int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateRunning {
		return ErrNotRunning
	}
	return e.attempt.Answers.ToggleFlag(questionIndex)
}

// Navigate changes the current question. It is pure view state with no
// precondition beyond a valid index, so it also works during review of
// a finished attempt.
func (e *Engine) Navigate(questionIndex int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.attempt == nil {
		return ErrNotRunning
	}
	if questionIndex < 0 || questionIndex >= len(e.attempt.Questions) {
		return exam.ErrInvalidQuestion
	}
	e.currentIndex = questionIndex
	return nil
}

// Submit is the user-initiated path into submitting. It returns the
// computed outcome; calling it again after the attempt finished is a
// no-op returning the same outcome.
func (e *Engine) Submit() (*exam.Outcome, error) {
	out := e.finish(triggerUser, "user submit")
	if out == nil {
		return nil, ErrNotRunning
	}
	return out, nil
}

// ForceTerminate is the integrity monitor's termination entry point.
// Exposed for hosts that need an administrative kill switch.
func (e *Engine) ForceTerminate(detail string) *exam.Outcome {
	return e.finish(triggerMonitor, detail)
}

// Reset returns a finished engine to idle so it can host a new
// attempt. The previous attempt is already frozen and recorded.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateCompleted, StateTerminated:
		e.state = StateIdle
		e.attempt = nil
		e.outcome = nil
		e.lastViol = nil
		e.currentIndex = 0
		return nil
	default:
		return ErrNotFinished
	}
}

// Drain blocks until every in-flight recorder handoff has completed.
// A host shutting down calls this between finishing the attempt and
// closing its persistence layer, so the final record is not lost to a
// store that closes under the handoff goroutine.
func (e *Engine) Drain() {
	e.recordWG.Wait()
}

// onExpiry routes timer expiry into submitting.
func (e *Engine) onExpiry() {
	e.finish(triggerExpiry, "time expired")
}

// onViolation is invoked by the monitor for every violation event. The
// engine is the sole writer of the attempt's audit log; events arriving
// after the attempt left running are discarded.
func (e *Engine) onViolation(v exam.Violation, state exam.WarningState) {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return
	}
	e.attempt.RecordViolation(v)
	e.warnings = state
	e.lastViol = &v
	e.mu.Unlock()

	e.logger.Warn("integrity violation",
		"type", v.Type,
		"detail", v.Detail,
		"counted", v.Counted,
		"warnings", state.Count,
		"remaining", state.Remaining())
}

// onTerminate is invoked by the monitor when the warning limit is
// reached.
func (e *Engine) onTerminate(detail string) {
	e.finish(triggerMonitor, detail)
}

// finish is the single guarded transition out of running. The first
// trigger wins; any later trigger observes the machine outside running
// and receives the already-computed outcome. On a fresh transition the
// timer and all sensor adapters are stopped synchronously before
// finish returns, and the frozen attempt is handed off to the recorder
// without awaiting delivery.
func (e *Engine) finish(tr trigger, detail string) *exam.Outcome {
	e.mu.Lock()
	if e.state != StateRunning {
		out := e.outcome
		e.mu.Unlock()
		return out
	}

	e.state = StateSubmitting

	// Freeze time spent: expiry always accounts the full allotment.
	var spent time.Duration
	if tr == triggerExpiry {
		spent = e.attempt.Duration
	} else {
		spent = time.Since(e.attempt.StartedAt).Round(time.Second)
		if spent > e.attempt.Duration {
			spent = e.attempt.Duration
		}
	}

	outcome := scoring.Score(e.attempt.Questions, e.attempt.Answers.Records(), e.test.PassingThreshold)
	e.outcome = outcome
	e.attempt.Outcome = outcome
	e.attempt.TimeSpent = spent

	if tr == triggerMonitor {
		e.attempt.Status = exam.StatusTerminated
		e.state = StateTerminated
		e.termDetail = detail
	} else {
		e.attempt.Status = exam.StatusCompleted
		e.state = StateCompleted
	}

	attempt := e.attempt
	timer := e.timer
	mon := e.mon
	cancel := e.cancel
	e.mu.Unlock()

	// Tear down outside the lock: monitor and timer callbacks re-enter
	// the engine and are discarded by the state guard above.
	timer.Stop()
	mon.Stop()
	if cancel != nil {
		cancel()
	}

	e.logger.Info("attempt finished",
		"attempt_id", attempt.ID,
		"status", attempt.Status,
		"trigger", detail,
		"score", outcome.Score,
		"total", outcome.TotalQuestions,
		"percentage", outcome.Percentage,
		"passed", outcome.Passed,
		"violations", len(attempt.Violations))

	if e.recorder != nil {
		// Fire-and-forget handoff; a persistence failure is the
		// recorder's problem to retry or report.
		e.recordWG.Add(1)
		go func() {
			defer e.recordWG.Done()
			if err := e.recorder.Record(attempt); err != nil {
				e.logger.Error("attempt handoff failed", "attempt_id", attempt.ID, "error", err)
			}
		}()
	}

	return outcome
}
