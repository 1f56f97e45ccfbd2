package countdown

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTierFor(t *testing.T) {
	tests := []struct {
		remaining time.Duration
		want      Tier
	}{
		{2 * time.Hour, TierNormal},
		{11 * time.Minute, TierNormal},
		{10 * time.Minute, TierCaution},
		{6 * time.Minute, TierCaution},
		{5 * time.Minute, TierWarning},
		{90 * time.Second, TierWarning},
		{time.Minute, TierCritical},
		{time.Second, TierCritical},
		{0, TierCritical},
	}

	for _, tt := range tests {
		if got := TierFor(tt.remaining); got != tt.want {
			t.Errorf("TierFor(%v) = %s, want %s", tt.remaining, got, tt.want)
		}
	}
}

func TestTimerRemainingBeforeStart(t *testing.T) {
	timer := New(30 * time.Minute)

	if got := timer.Remaining(); got != 30*time.Minute {
		t.Errorf("Remaining = %v, want 30m", got)
	}
	if timer.Expired() {
		t.Error("fresh timer must not be expired")
	}
}

func TestTimerDoubleStart(t *testing.T) {
	timer := New(time.Hour)
	if err := timer.Start(nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer timer.Stop()

	if err := timer.Start(nil); err != ErrAlreadyRunning {
		t.Errorf("second Start: expected ErrAlreadyRunning, got %v", err)
	}
}

func TestTimerExpiresOnce(t *testing.T) {
	timer := New(30 * time.Millisecond)
	timer.interval = 10 * time.Millisecond

	var fired atomic.Int32
	if err := timer.Start(func() { fired.Add(1) }); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for fired.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if fired.Load() != 1 {
		t.Fatalf("expected exactly one expiry callback, got %d", fired.Load())
	}
	if !timer.Expired() {
		t.Error("timer should report expired")
	}
	if timer.Remaining() != 0 {
		t.Errorf("expired timer remaining = %v, want 0", timer.Remaining())
	}

	// Extra ticks after expiry must not refire.
	time.Sleep(50 * time.Millisecond)
	if fired.Load() != 1 {
		t.Errorf("callback refired after expiry: %d", fired.Load())
	}

	timer.Stop()
}

func TestTimerStopSuppressesCallback(t *testing.T) {
	timer := New(50 * time.Millisecond)
	timer.interval = 10 * time.Millisecond

	var fired atomic.Int32
	if err := timer.Start(func() { fired.Add(1) }); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	timer.Stop()
	time.Sleep(100 * time.Millisecond)

	if fired.Load() != 0 {
		t.Error("no callback may fire after Stop returns")
	}
	if timer.Expired() {
		t.Error("stopped timer is paused, not expired")
	}
}

func TestTimerStopIdempotent(t *testing.T) {
	timer := New(time.Hour)
	timer.Start(nil)

	timer.Stop()
	timer.Stop()
}

func TestTimerStopPreservesRemaining(t *testing.T) {
	timer := New(time.Hour)
	timer.Start(nil)
	time.Sleep(20 * time.Millisecond)
	timer.Stop()

	r := timer.Remaining()
	if r <= 0 || r > time.Hour {
		t.Errorf("remaining after stop out of range: %v", r)
	}

	// Paused: remaining does not keep draining.
	time.Sleep(20 * time.Millisecond)
	if got := timer.Remaining(); got != r {
		t.Errorf("remaining drained while stopped: %v -> %v", r, got)
	}
}

func TestTimerStartAfterExpiryNoop(t *testing.T) {
	timer := New(10 * time.Millisecond)
	timer.interval = 5 * time.Millisecond

	var fired atomic.Int32
	timer.Start(func() { fired.Add(1) })

	deadline := time.Now().Add(time.Second)
	for fired.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	timer.Stop()

	if err := timer.Start(func() { fired.Add(1) }); err != nil {
		t.Fatalf("restart after expiry should be a no-op, got %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if fired.Load() != 1 {
		t.Errorf("expired timer must not tick again, callbacks = %d", fired.Load())
	}
}

func TestTimerRemainingMonotonic(t *testing.T) {
	timer := New(time.Hour)
	timer.Start(nil)
	defer timer.Stop()

	prev := timer.Remaining()
	for i := 0; i < 10; i++ {
		time.Sleep(2 * time.Millisecond)
		cur := timer.Remaining()
		if cur > prev {
			t.Fatalf("remaining increased: %v -> %v", prev, cur)
		}
		prev = cur
	}
}
