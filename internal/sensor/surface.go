package sensor

import (
	"sync"
	"time"
)

// SurfaceEventKind identifies a raw exam-surface signal.
type SurfaceEventKind string

const (
	// SurfaceHidden indicates the surface became hidden (tab switch,
	// minimize).
	SurfaceHidden SurfaceEventKind = "hidden"
	// SurfaceVisible indicates the surface became visible again.
	SurfaceVisible SurfaceEventKind = "visible"
	// SurfaceBlurred indicates the surface lost foreground focus.
	SurfaceBlurred SurfaceEventKind = "blurred"
	// SurfaceFocused indicates the surface regained foreground focus.
	SurfaceFocused SurfaceEventKind = "focused"
	// SurfaceFullscreenEntered indicates fullscreen presentation began.
	SurfaceFullscreenEntered SurfaceEventKind = "fullscreen_entered"
	// SurfaceFullscreenExited indicates fullscreen presentation ended.
	SurfaceFullscreenExited SurfaceEventKind = "fullscreen_exited"
	// SurfaceCopy indicates a copy action within the surface.
	SurfaceCopy SurfaceEventKind = "copy"
	// SurfaceCut indicates a cut action within the surface.
	SurfaceCut SurfaceEventKind = "cut"
	// SurfacePaste indicates a paste action within the surface.
	SurfacePaste SurfaceEventKind = "paste"
)

// SurfaceEvent is one raw signal from the exam surface.
type SurfaceEvent struct {
	Kind      SurfaceEventKind
	Timestamp time.Time
}

// SurfaceMetrics is a window-geometry sample used by the devtools
// heuristic.
type SurfaceMetrics struct {
	OuterWidth  int
	OuterHeight int
	InnerWidth  int
	InnerHeight int
}

// Surface is the exam surface signal source, supplied by the hosting
// UI layer. Implementations translate host events (browser events,
// desktop window signals) into SurfaceEvents. Several adapters watch
// the same surface, so each gets its own subscription channel.
type Surface interface {
	// Subscribe returns a new channel receiving all subsequent surface
	// events. The channel is closed when the surface shuts down.
	Subscribe() <-chan SurfaceEvent

	// Metrics samples the current window geometry. Implementations
	// without geometry access return an error; the devtools adapter
	// then reports itself unavailable.
	Metrics() (SurfaceMetrics, error)

	// Available reports whether surface signals can be observed.
	Available() (bool, string)
}

const surfaceBuffer = 32

// Hub is a ready-made Surface implementation. The hosting layer calls
// Publish as raw host events arrive; the hub fans them out to every
// subscribed adapter without blocking.
type Hub struct {
	mu        sync.Mutex
	subs      []chan SurfaceEvent
	closed    bool
	metricsFn func() (SurfaceMetrics, error)
}

// NewHub creates a surface hub. metricsFn samples window geometry and
// may be nil when the host has no geometry access.
func NewHub(metricsFn func() (SurfaceMetrics, error)) *Hub {
	return &Hub{metricsFn: metricsFn}
}

// Publish fans an event out to all subscribers. Slow subscribers drop
// events rather than blocking the host.
func (h *Hub) Publish(kind SurfaceEventKind) {
	ev := SurfaceEvent{Kind: kind, Timestamp: time.Now()}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe returns a new subscription channel.
func (h *Hub) Subscribe() <-chan SurfaceEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan SurfaceEvent, surfaceBuffer)
	if h.closed {
		close(ch)
		return ch
	}
	h.subs = append(h.subs, ch)
	return ch
}

// Metrics samples the current window geometry.
func (h *Hub) Metrics() (SurfaceMetrics, error) {
	h.mu.Lock()
	fn := h.metricsFn
	h.mu.Unlock()

	if fn == nil {
		return SurfaceMetrics{}, ErrNoMetrics
	}
	return fn()
}

// Available reports whether the hub is open.
func (h *Hub) Available() (bool, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false, "surface closed"
	}
	return true, ""
}

// Close closes all subscription channels. Publish becomes a no-op.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, ch := range h.subs {
		close(ch)
	}
	h.subs = nil
}
