package sensor

import (
	"context"

	"proctord/internal/exam"
)

// VisibilityAdapter watches the exam surface for loss of visibility or
// foreground focus. A hidden surface reports a tab switch; a blur while
// the surface is still visible reports a window blur (clicking browser
// chrome, another window overlapping, and so on).
type VisibilityAdapter struct {
	emitter
	surface Surface
}

// NewVisibilityAdapter creates the visibility/focus adapter.
func NewVisibilityAdapter(surface Surface) *VisibilityAdapter {
	return &VisibilityAdapter{emitter: newEmitter(), surface: surface}
}

// Name identifies the adapter.
func (a *VisibilityAdapter) Name() string { return "visibility" }

// Available reports whether surface signals can be observed.
func (a *VisibilityAdapter) Available() (bool, string) {
	return a.surface.Available()
}

// Start begins watching surface visibility signals.
func (a *VisibilityAdapter) Start(ctx context.Context) error {
	done, err := a.begin()
	if err != nil {
		return err
	}

	sub := a.surface.Subscribe()
	a.wg.Add(1)
	go a.watch(ctx, done, sub)
	return nil
}

// Stop stops watching synchronously.
func (a *VisibilityAdapter) Stop() error {
	a.end()
	return nil
}

func (a *VisibilityAdapter) watch(ctx context.Context, done chan struct{}, sub <-chan SurfaceEvent) {
	defer a.wg.Done()

	hidden := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			switch ev.Kind {
			case SurfaceHidden:
				hidden = true
				a.emit(exam.ViolationTabSwitch, "Exam surface hidden or minimized.")
			case SurfaceVisible:
				hidden = false
			case SurfaceBlurred:
				// A tab switch raises both hidden and blurred; only an
				// in-view blur is reported here.
				if !hidden {
					a.emit(exam.ViolationWindowBlur, "Exam surface lost foreground focus.")
				}
			}
		}
	}
}
