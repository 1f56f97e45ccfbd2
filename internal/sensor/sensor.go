// Package sensor implements the integrity sensor adapters.
//
// Each adapter independently watches one integrity signal and emits a
// normalized violation event the moment its condition becomes true.
// Adapters never communicate with each other; the integrity monitor
// fans their event channels in and applies counting policy.
//
// Key properties:
//   - Start/Stop lifecycle scoped to one attempt, no leaked goroutines
//   - Non-blocking event emission (slow consumers drop, never stall)
//   - Available() reports degraded signals without blocking the exam
//   - A panicking signal source degrades that one adapter only
//
// Signal acquisition is abstracted behind small source interfaces
// (Surface, FrameSource, LevelSource) supplied by the hosting UI layer;
// the detection heuristics here are best-effort deterrents, not a
// security boundary.
package sensor

import (
	"context"
	"errors"
	"sync"
	"time"

	"proctord/internal/exam"
)

var (
	// ErrAlreadyRunning is returned when Start is called on a running
	// adapter.
	ErrAlreadyRunning = errors.New("sensor: adapter already running")

	// ErrNoMetrics is returned by surfaces without window-geometry
	// access.
	ErrNoMetrics = errors.New("sensor: surface metrics not available")
)

// Event is a normalized violation event emitted by an adapter.
type Event struct {
	Type      exam.ViolationType
	Detail    string
	Timestamp time.Time
}

// Adapter is implemented by every integrity sensor.
type Adapter interface {
	// Name identifies the adapter for health reporting.
	Name() string

	// Start begins watching the signal. Events are delivered on the
	// Events channel until Stop is called.
	Start(ctx context.Context) error

	// Stop stops watching synchronously; no events are emitted after
	// Stop returns. Stopping a stopped adapter is a no-op.
	Stop() error

	// Events returns the adapter's event channel.
	Events() <-chan Event

	// Available reports whether the underlying signal source is usable
	// and, if not, why. An unavailable adapter simply never fires;
	// absence of a signal is not itself a violation.
	Available() (bool, string)
}

const eventBuffer = 16

// emitter is the shared event-channel plumbing embedded by adapters.
type emitter struct {
	mu      sync.Mutex
	events  chan Event
	done    chan struct{}
	wg      sync.WaitGroup
	running bool
}

func newEmitter() emitter {
	return emitter{events: make(chan Event, eventBuffer)}
}

// Events returns the adapter's event channel.
func (e *emitter) Events() <-chan Event {
	return e.events
}

// begin transitions to running and returns the done channel for the
// adapter's goroutines.
func (e *emitter) begin() (chan struct{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil, ErrAlreadyRunning
	}
	e.running = true
	e.done = make(chan struct{})
	return e.done, nil
}

// end stops the adapter and waits for its goroutines to exit.
func (e *emitter) end() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.done)
	e.mu.Unlock()

	e.wg.Wait()
}

// emit delivers an event without blocking. Events are dropped rather
// than stalling a sensor goroutine behind a slow consumer.
func (e *emitter) emit(t exam.ViolationType, detail string) {
	select {
	case e.events <- Event{Type: t, Detail: detail, Timestamp: time.Now()}:
	default:
	}
}

// guard runs fn and swallows a panic, so a failing signal source
// degrades one adapter instead of crashing the session. It reports
// whether fn completed normally.
func guard(fn func()) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	fn()
	return true
}
