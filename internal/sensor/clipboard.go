package sensor

import (
	"context"
	"fmt"

	"proctord/internal/exam"
)

// ClipboardAdapter watches for copy, cut and paste actions within the
// exam surface.
type ClipboardAdapter struct {
	emitter
	surface Surface
}

// NewClipboardAdapter creates the clipboard adapter.
func NewClipboardAdapter(surface Surface) *ClipboardAdapter {
	return &ClipboardAdapter{emitter: newEmitter(), surface: surface}
}

// Name identifies the adapter.
func (a *ClipboardAdapter) Name() string { return "clipboard" }

// Available reports whether surface signals can be observed.
func (a *ClipboardAdapter) Available() (bool, string) {
	return a.surface.Available()
}

// Start begins watching clipboard actions.
func (a *ClipboardAdapter) Start(ctx context.Context) error {
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
func (a *ClipboardAdapter) Stop() error {
	a.end()
	return nil
}

func (a *ClipboardAdapter) watch(ctx context.Context, done chan struct{}, sub <-chan SurfaceEvent) {
	defer a.wg.Done()

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
			case SurfaceCopy, SurfaceCut, SurfacePaste:
				a.emit(exam.ViolationCopyPaste, fmt.Sprintf("Attempted to %s content.", ev.Kind))
			}
		}
	}
}
