// Package countdown implements the exam countdown timer.
//
// The timer counts down from an allotted duration, ticking once per
// second while active. Remaining time is monotonically non-increasing
// and clamped at zero. On reaching zero the timer fires its expiry
// callback exactly once and stops ticking; it does not decide what
// happens next. Every Start pairs with exactly one Stop, so the
// underlying ticker goroutine never leaks.
package countdown

import (
	"errors"
	"sync"
	"time"
)

// ErrAlreadyRunning is returned when Start is called on a running timer.
var ErrAlreadyRunning = errors.New("countdown: timer already running")

// Tier classifies the remaining time for presentation purposes only.
type Tier string

const (
	// TierNormal is more than 10 minutes remaining.
	TierNormal Tier = "normal"
	// TierCaution is 10 minutes or less remaining.
	TierCaution Tier = "caution"
	// TierWarning is 5 minutes or less remaining.
	TierWarning Tier = "warning"
	// TierCritical is 1 minute or less remaining.
	TierCritical Tier = "critical"
)

// TierFor returns the presentation tier for a remaining duration.
func TierFor(remaining time.Duration) Tier {
	switch {
	case remaining <= time.Minute:
		return TierCritical
	case remaining <= 5*time.Minute:
		return TierWarning
	case remaining <= 10*time.Minute:
		return TierCaution
	default:
		return TierNormal
	}
}

// Timer is a single countdown clock for one attempt.
type Timer struct {
	mu        sync.Mutex
	remaining time.Duration
	deadline  time.Time
	running   bool
	expired   bool
	onExpire  func()
	done      chan struct{}
	wg        sync.WaitGroup

	// tick interval, overridable in tests
	interval time.Duration
}

// New creates a timer for the given allotted duration.
func New(duration time.Duration) *Timer {
	return &Timer{
		remaining: duration,
		interval:  time.Second,
	}
}

// Start begins ticking. The callback fires exactly once, when the
// remaining time reaches zero. Starting an already-running timer is an
// error; starting an expired timer is a no-op.
func (t *Timer) Start(onExpire func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return ErrAlreadyRunning
	}
	if t.expired {
		return nil
	}

	t.onExpire = onExpire
	t.deadline = time.Now().Add(t.remaining)
	t.running = true
	t.done = make(chan struct{})

	t.wg.Add(1)
	go t.run(t.done)

	return nil
}

// Stop cancels the periodic tick synchronously. No expiry callback is
// delivered after Stop returns. Stopping a stopped timer is a no-op.
func (t *Timer) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	t.remaining = t.remainingLocked()
	close(t.done)
	t.mu.Unlock()

	t.wg.Wait()
}

// Remaining returns the time left, clamped at zero.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remainingLocked()
}

// RemainingSeconds returns the time left in whole seconds.
func (t *Timer) RemainingSeconds() int {
	return int(t.Remaining() / time.Second)
}

// Tier returns the presentation tier for the current remaining time.
func (t *Timer) Tier() Tier {
	return TierFor(t.Remaining())
}

// Expired reports whether the timer has reached zero.
func (t *Timer) Expired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expired
}

func (t *Timer) remainingLocked() time.Duration {
	if t.expired {
		return 0
	}
	if !t.running {
		return t.remaining
	}
	if r := time.Until(t.deadline); r > 0 {
		return r
	}
	return 0
}

func (t *Timer) run(done chan struct{}) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if t.checkExpiry() {
				return
			}
		}
	}
}

// checkExpiry fires the expiry callback once when the deadline passes.
// It returns true when the tick loop should exit.
func (t *Timer) checkExpiry() bool {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return true
	}
	if time.Until(t.deadline) > 0 {
		t.mu.Unlock()
		return false
	}

	t.expired = true
	t.running = false
	t.remaining = 0
	cb := t.onExpire
	t.mu.Unlock()

	if cb != nil {
		cb()
	}
	return true
}
