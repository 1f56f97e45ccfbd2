package sensor

import (
	"context"

	"proctord/internal/exam"
)

// FullscreenAdapter watches for the session dropping out of fullscreen
// presentation after having entered it. Never entering fullscreen is
// not a violation.
type FullscreenAdapter struct {
	emitter
	surface Surface
}

// NewFullscreenAdapter creates the fullscreen adapter.
func NewFullscreenAdapter(surface Surface) *FullscreenAdapter {
	return &FullscreenAdapter{emitter: newEmitter(), surface: surface}
}

// Name identifies the adapter.
func (a *FullscreenAdapter) Name() string { return "fullscreen" }

// Available reports whether surface signals can be observed.
func (a *FullscreenAdapter) Available() (bool, string) {
	return a.surface.Available()
}

// Start begins watching fullscreen transitions.
func (a *FullscreenAdapter) Start(ctx context.Context) error {
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
func (a *FullscreenAdapter) Stop() error {
	a.end()
	return nil
}

func (a *FullscreenAdapter) watch(ctx context.Context, done chan struct{}, sub <-chan SurfaceEvent) {
	defer a.wg.Done()

	entered := false
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
			case SurfaceFullscreenEntered:
				entered = true
			case SurfaceFullscreenExited:
				if entered {
					entered = false
					a.emit(exam.ViolationFullscreenExit, "Exited fullscreen presentation.")
				}
			}
		}
	}
}
