// Package monitor implements the integrity monitor.
//
// The monitor subscribes to every sensor adapter while an attempt is
// running, applies the debounce rule, maintains the warning counter
// against a configured maximum, and decides when the attempt must be
// forcibly terminated.
//
// Counting policy:
//   - Every event is reported for the audit log unconditionally, even
//     when debounced for counting.
//   - Events of the same debounce group arriving within the cooldown
//     window count as a single warning increment. Visibility and
//     window-blur share a group, since one physical tab switch can
//     raise both signals.
//   - Reaching the maximum triggers the termination callback exactly
//     once.
//
// Adapters that never fire (no camera permission, no microphone) are
// tolerated: absence of a signal is not itself a violation. Their
// status is surfaced through SensorStatuses as degraded monitoring.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"proctord/internal/exam"
	"proctord/internal/sensor"
)

// Default policy constants. Both are configuration, not invariants.
const (
	DefaultMaxWarnings    = 3
	DefaultDebounceWindow = 1500 * time.Millisecond
)

// Config holds the monitor's counting policy.
type Config struct {
	// MaxWarnings is the warning count that forces termination.
	MaxWarnings int

	// DebounceWindow collapses same-group events arriving within this
	// window into one counted warning.
	DebounceWindow time.Duration
}

// DefaultConfig returns the default counting policy.
func DefaultConfig() Config {
	return Config{
		MaxWarnings:    DefaultMaxWarnings,
		DebounceWindow: DefaultDebounceWindow,
	}
}

// Validate checks the policy for sanity.
func (c Config) Validate() error {
	if c.MaxWarnings <= 0 {
		return fmt.Errorf("monitor: max warnings must be positive, got %d", c.MaxWarnings)
	}
	if c.DebounceWindow < 0 {
		return fmt.Errorf("monitor: debounce window must not be negative, got %v", c.DebounceWindow)
	}
	return nil
}

// SensorStatus reports one adapter's availability for health and
// degraded-monitoring notices.
type SensorStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// ViolationFunc receives every violation event together with the
// updated warning state. Debounced duplicates arrive with
// Violation.Counted == false.
type ViolationFunc func(v exam.Violation, state exam.WarningState)

// TerminateFunc is called exactly once when the warning count reaches
// the configured maximum.
type TerminateFunc func(detail string)

// Monitor aggregates adapter events into warnings and a termination
// decision.
type Monitor struct {
	cfg      Config
	adapters []sensor.Adapter

	onViolation ViolationFunc
	onTerminate TerminateFunc

	mu          sync.Mutex
	running     bool
	count       int
	lastCounted map[string]time.Time
	fired       bool
	startErrs   map[string]string
	done        chan struct{}
	wg          sync.WaitGroup

	// deliverMu serializes onViolation delivery so warning states
	// arrive in counting order even when adapters fire concurrently.
	deliverMu sync.Mutex
}

// New creates a monitor over the given adapters. Both callbacks are
// required; they are invoked from monitor goroutines and must be safe
// for that.
func New(cfg Config, adapters []sensor.Adapter, onViolation ViolationFunc, onTerminate TerminateFunc) *Monitor {
	return &Monitor{
		cfg:         cfg,
		adapters:    adapters,
		onViolation: onViolation,
		onTerminate: onTerminate,
		lastCounted: make(map[string]time.Time),
		startErrs:   make(map[string]string),
	}
}

// Start starts every adapter and begins consuming their events. An
// adapter that fails to start degrades that one signal; it never fails
// the attempt.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return sensor.ErrAlreadyRunning
	}
	m.running = true
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	for _, ad := range m.adapters {
		if err := ad.Start(ctx); err != nil {
			m.mu.Lock()
			m.startErrs[ad.Name()] = err.Error()
			m.mu.Unlock()
			continue
		}
		m.wg.Add(1)
		go m.consume(ctx, done, ad)
	}
	return nil
}

// Stop stops all adapters synchronously. No callbacks are invoked
// after Stop returns; late adapter events are discarded.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.done)
	m.mu.Unlock()

	for _, ad := range m.adapters {
		ad.Stop()
	}
	m.wg.Wait()
}

// Warnings returns the current warning state.
func (m *Monitor) Warnings() exam.WarningState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return exam.WarningState{Count: m.count, Max: m.cfg.MaxWarnings}
}

// SensorStatuses reports the availability of every adapter.
func (m *Monitor) SensorStatuses() []SensorStatus {
	m.mu.Lock()
	startErrs := make(map[string]string, len(m.startErrs))
	for k, v := range m.startErrs {
		startErrs[k] = v
	}
	m.mu.Unlock()

	statuses := make([]SensorStatus, 0, len(m.adapters))
	for _, ad := range m.adapters {
		st := SensorStatus{Name: ad.Name()}
		if reason, failed := startErrs[ad.Name()]; failed {
			st.Reason = reason
		} else if ok, reason := ad.Available(); ok {
			st.Available = true
		} else {
			st.Reason = reason
		}
		statuses = append(statuses, st)
	}
	return statuses
}

// Degraded returns the adapters that are currently unavailable.
func (m *Monitor) Degraded() []SensorStatus {
	var out []SensorStatus
	for _, st := range m.SensorStatuses() {
		if !st.Available {
			out = append(out, st)
		}
	}
	return out
}

func (m *Monitor) consume(ctx context.Context, done chan struct{}, ad sensor.Adapter) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case ev, ok := <-ad.Events():
			if !ok {
				return
			}
			m.handle(ev)
		}
	}
}

func (m *Monitor) handle(ev sensor.Event) {
	// Held across counting and delivery: the state snapshot computed
	// under m.mu must reach onViolation before the next event's, or the
	// warning count seen by the consumer could transiently regress.
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}

	group := debounceGroup(ev.Type)
	counted := ev.Timestamp.Sub(m.lastCounted[group]) >= m.cfg.DebounceWindow
	if counted {
		m.lastCounted[group] = ev.Timestamp
		m.count++
	}

	v := exam.Violation{
		Type:      ev.Type,
		Detail:    ev.Detail,
		Timestamp: ev.Timestamp,
		Counted:   counted,
	}
	state := exam.WarningState{Count: m.count, Max: m.cfg.MaxWarnings}

	terminate := counted && m.count >= m.cfg.MaxWarnings && !m.fired
	if terminate {
		m.fired = true
	}
	m.mu.Unlock()

	m.onViolation(v, state)
	if terminate {
		// The termination path stops this monitor, which waits for the
		// consumer goroutines; fire it off this goroutine so Stop does
		// not wait on its own caller.
		go m.onTerminate(fmt.Sprintf("warning limit reached (%d/%d), last violation: %s",
			state.Count, state.Max, v.Type))
	}
}

// debounceGroup maps a violation type to its cooldown group. Visibility
// loss and window blur collapse into one group because a single tab
// switch can raise both.
func debounceGroup(t exam.ViolationType) string {
	switch t {
	case exam.ViolationTabSwitch, exam.ViolationWindowBlur:
		return "surface_focus"
	default:
		return string(t)
	}
}
