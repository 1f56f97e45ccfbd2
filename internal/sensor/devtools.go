package sensor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"proctord/internal/exam"
)

// Devtools heuristic defaults. The geometry delta check is inherently
// approximate: docked inspection panes shrink the inner viewport
// relative to the outer window, but window decorations and zoom levels
// vary across environments. Treat detections as best effort.
const (
	DefaultDevtoolsThreshold = 200 // px
	DefaultDevtoolsInterval  = 2 * time.Second
)

// DevtoolsAdapter polls window geometry and reports when an inspection
// surface appears to be open. The event fires on the closed-to-open
// transition, not on every poll.
type DevtoolsAdapter struct {
	emitter
	surface   Surface
	threshold int
	interval  time.Duration

	availMu sync.Mutex
	reason  string
}

// NewDevtoolsAdapter creates the devtools heuristic adapter. Threshold
// is the geometry delta in pixels; zero values select the defaults.
func NewDevtoolsAdapter(surface Surface, threshold int, interval time.Duration) *DevtoolsAdapter {
	if threshold <= 0 {
		threshold = DefaultDevtoolsThreshold
	}
	if interval <= 0 {
		interval = DefaultDevtoolsInterval
	}
	return &DevtoolsAdapter{
		emitter:   newEmitter(),
		surface:   surface,
		threshold: threshold,
		interval:  interval,
	}
}

// Name identifies the adapter.
func (a *DevtoolsAdapter) Name() string { return "devtools" }

// Available reports whether geometry sampling works on this surface.
func (a *DevtoolsAdapter) Available() (bool, string) {
	if ok, reason := a.surface.Available(); !ok {
		return false, reason
	}
	a.availMu.Lock()
	defer a.availMu.Unlock()
	if a.reason != "" {
		return false, a.reason
	}
	return true, ""
}

// Start begins the geometry poll loop.
func (a *DevtoolsAdapter) Start(ctx context.Context) error {
	done, err := a.begin()
	if err != nil {
		return err
	}

	a.wg.Add(1)
	go a.poll(ctx, done)
	return nil
}

// Stop stops polling synchronously.
func (a *DevtoolsAdapter) Stop() error {
	a.end()
	return nil
}

func (a *DevtoolsAdapter) poll(ctx context.Context, done chan struct{}) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	open := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			var m SurfaceMetrics
			var err error
			if !guard(func() { m, err = a.surface.Metrics() }) {
				a.degrade("surface metrics panicked")
				return
			}
			if err != nil {
				// No geometry access on this surface; degrade quietly.
				a.degrade(err.Error())
				return
			}

			widthDiff := m.OuterWidth - m.InnerWidth
			heightDiff := m.OuterHeight - m.InnerHeight
			detected := widthDiff > a.threshold || heightDiff > a.threshold

			if detected && !open {
				a.emit(exam.ViolationDevtools, fmt.Sprintf(
					"Inspection surface heuristically detected (width delta %dpx, height delta %dpx).",
					widthDiff, heightDiff))
			}
			open = detected
		}
	}
}

func (a *DevtoolsAdapter) degrade(reason string) {
	a.availMu.Lock()
	a.reason = reason
	a.availMu.Unlock()
}
