package metrics

import (
	"time"

	"proctord/internal/exam"
)

// ProctordMetrics holds all proctord-specific metrics.
type ProctordMetrics struct {
	registry *Registry

	// Counters
	AttemptsStartedTotal    *Counter
	AttemptsCompletedTotal  *Counter
	AttemptsTerminatedTotal *Counter
	AttemptsExpiredTotal    *Counter
	RecordFailuresTotal     *Counter

	// Gauges
	ActiveAttempts *Gauge
	LoadedBanks    *Gauge
	UptimeSeconds  *Gauge

	// Histograms
	AttemptDuration *Histogram
	ScorePercentage *Histogram

	violations map[exam.ViolationType]*Counter
}

var startTime = time.Now()

// NewProctordMetrics creates and registers all proctord metrics.
func NewProctordMetrics(registry *Registry) *ProctordMetrics {
	if registry == nil {
		registry = NewRegistry("proctord")
	}

	m := &ProctordMetrics{
		registry: registry,

		AttemptsStartedTotal: registry.RegisterCounter(
			"attempts_started_total",
			"Total number of attempts started",
			nil,
		),
		AttemptsCompletedTotal: registry.RegisterCounter(
			"attempts_completed_total",
			"Total number of attempts completed by submission",
			nil,
		),
		AttemptsTerminatedTotal: registry.RegisterCounter(
			"attempts_terminated_total",
			"Total number of attempts terminated for violations",
			nil,
		),
		AttemptsExpiredTotal: registry.RegisterCounter(
			"attempts_expired_total",
			"Total number of attempts auto-submitted on timer expiry",
			nil,
		),
		RecordFailuresTotal: registry.RegisterCounter(
			"record_failures_total",
			"Total number of attempt persistence failures",
			nil,
		),

		ActiveAttempts: registry.RegisterGauge(
			"active_attempts",
			"Number of currently running attempts",
			nil,
		),
		LoadedBanks: registry.RegisterGauge(
			"loaded_banks",
			"Number of loaded question banks",
			nil,
		),
		UptimeSeconds: registry.RegisterGauge(
			"uptime_seconds",
			"Number of seconds the daemon has been running",
			nil,
		),

		AttemptDuration: registry.RegisterHistogram(
			"attempt_duration_seconds",
			"Time spent on finished attempts in seconds",
			nil,
			DurationBuckets,
		),
		ScorePercentage: registry.RegisterHistogram(
			"score_percentage",
			"Score percentage of finished attempts",
			nil,
			PercentageBuckets,
		),

		violations: make(map[exam.ViolationType]*Counter),
	}

	for _, t := range exam.ViolationTypes {
		m.violations[t] = registry.RegisterCounter(
			"violations_total",
			"Total number of violations observed, by type",
			Labels{"type": string(t)},
		)
	}

	return m
}

// AttemptStarted records an attempt start.
func (m *ProctordMetrics) AttemptStarted() {
	m.AttemptsStartedTotal.Inc()
	m.ActiveAttempts.Inc()
}

// AttemptFinished records a finished attempt.
func (m *ProctordMetrics) AttemptFinished(a *exam.Attempt, expired bool) {
	m.ActiveAttempts.Dec()
	switch a.Status {
	case exam.StatusTerminated:
		m.AttemptsTerminatedTotal.Inc()
	default:
		m.AttemptsCompletedTotal.Inc()
	}
	if expired {
		m.AttemptsExpiredTotal.Inc()
	}
	m.AttemptDuration.ObserveDuration(a.TimeSpent)
	if a.Outcome != nil {
		m.ScorePercentage.Observe(float64(a.Outcome.Percentage))
	}
}

// RecordViolation records one observed violation.
func (m *ProctordMetrics) RecordViolation(t exam.ViolationType) {
	if c, ok := m.violations[t]; ok {
		c.Inc()
	}
}

// RecordFailure records an attempt persistence failure.
func (m *ProctordMetrics) RecordFailure() {
	m.RecordFailuresTotal.Inc()
}

// SetLoadedBanks sets the number of loaded banks.
func (m *ProctordMetrics) SetLoadedBanks(n int64) {
	m.LoadedBanks.Set(n)
}

// UpdateUptime updates the uptime metric.
func (m *ProctordMetrics) UpdateUptime() {
	m.UptimeSeconds.Set(int64(time.Since(startTime).Seconds()))
}

// Registry returns the backing registry.
func (m *ProctordMetrics) Registry() *Registry {
	return m.registry
}
