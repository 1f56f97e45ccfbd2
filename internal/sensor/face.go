package sensor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"proctord/internal/exam"
)

// DefaultCameraInterval is the default camera sampling interval.
const DefaultCameraInterval = 2 * time.Second

// FrameSource samples the proctoring camera and reports how many faces
// the current frame contains. Implementations may cache frames, since
// the face-presence and multi-face adapters poll independently.
type FrameSource interface {
	// Faces returns the face count for a fresh camera sample.
	Faces(ctx context.Context) (int, error)

	// Available reports whether the camera can be sampled (permission
	// granted, device present).
	Available() (bool, string)
}

// FaceAdapter polls the camera and reports when no face is present.
// The event fires when presence is lost, not on every absent sample.
type FaceAdapter struct {
	emitter
	source   FrameSource
	interval time.Duration

	availMu sync.Mutex
	reason  string
}

// NewFaceAdapter creates the face-presence adapter. A zero interval
// selects the default.
func NewFaceAdapter(source FrameSource, interval time.Duration) *FaceAdapter {
	if interval <= 0 {
		interval = DefaultCameraInterval
	}
	return &FaceAdapter{emitter: newEmitter(), source: source, interval: interval}
}

// Name identifies the adapter.
func (a *FaceAdapter) Name() string { return "face_presence" }

// Available reports whether the camera can be sampled.
func (a *FaceAdapter) Available() (bool, string) {
	if ok, reason := a.source.Available(); !ok {
		return false, reason
	}
	a.availMu.Lock()
	defer a.availMu.Unlock()
	if a.reason != "" {
		return false, a.reason
	}
	return true, ""
}

// Start begins the camera poll loop.
func (a *FaceAdapter) Start(ctx context.Context) error {
	done, err := a.begin()
	if err != nil {
		return err
	}

	a.wg.Add(1)
	go a.poll(ctx, done)
	return nil
}

// Stop stops polling synchronously.
func (a *FaceAdapter) Stop() error {
	a.end()
	return nil
}

func (a *FaceAdapter) poll(ctx context.Context, done chan struct{}) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	present := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			var faces int
			var err error
			if !guard(func() { faces, err = a.source.Faces(ctx) }) {
				a.degrade("frame source panicked")
				return
			}
			if err != nil {
				// Camera hiccups are transient; keep polling and report
				// the last error as degraded availability.
				a.degrade(err.Error())
				continue
			}
			a.restore()

			if faces == 0 && present {
				a.emit(exam.ViolationNoFace, "No face detected in camera feed.")
			}
			present = faces > 0
		}
	}
}

func (a *FaceAdapter) degrade(reason string) {
	a.availMu.Lock()
	a.reason = reason
	a.availMu.Unlock()
}

func (a *FaceAdapter) restore() {
	a.availMu.Lock()
	a.reason = ""
	a.availMu.Unlock()
}

// MultiFaceAdapter polls the camera and reports when more than one face
// is present. The event fires when the count first exceeds one and
// again whenever it changes while multiple faces remain in frame.
type MultiFaceAdapter struct {
	emitter
	source   FrameSource
	interval time.Duration

	availMu sync.Mutex
	reason  string
}

// NewMultiFaceAdapter creates the multi-face adapter. A zero interval
// selects the default.
func NewMultiFaceAdapter(source FrameSource, interval time.Duration) *MultiFaceAdapter {
	if interval <= 0 {
		interval = DefaultCameraInterval
	}
	return &MultiFaceAdapter{emitter: newEmitter(), source: source, interval: interval}
}

// Name identifies the adapter.
func (a *MultiFaceAdapter) Name() string { return "multi_face" }

// Available reports whether the camera can be sampled.
func (a *MultiFaceAdapter) Available() (bool, string) {
	if ok, reason := a.source.Available(); !ok {
		return false, reason
	}
	a.availMu.Lock()
	defer a.availMu.Unlock()
	if a.reason != "" {
		return false, a.reason
	}
	return true, ""
}

// Start begins the camera poll loop.
func (a *MultiFaceAdapter) Start(ctx context.Context) error {
	done, err := a.begin()
	if err != nil {
		return err
	}

	a.wg.Add(1)
	go a.poll(ctx, done)
	return nil
}

// Stop stops polling synchronously.
func (a *MultiFaceAdapter) Stop() error {
	a.end()
	return nil
}

func (a *MultiFaceAdapter) poll(ctx context.Context, done chan struct{}) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	last := 1
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			var faces int
			var err error
			if !guard(func() { faces, err = a.source.Faces(ctx) }) {
				a.degrade("frame source panicked")
				return
			}
			if err != nil {
				a.degrade(err.Error())
				continue
			}
			a.restore()

			if faces > 1 && faces != last {
				a.emit(exam.ViolationMultipleFaces, fmt.Sprintf("%d faces detected in camera feed.", faces))
			}
			last = faces
		}
	}
}

func (a *MultiFaceAdapter) degrade(reason string) {
	a.availMu.Lock()
	a.reason = reason
	a.availMu.Unlock()
}

func (a *MultiFaceAdapter) restore() {
	a.availMu.Lock()
	a.reason = ""
	a.availMu.Unlock()
}
