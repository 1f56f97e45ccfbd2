//go:build linux

package sensor

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	screensaverInterface = "org.freedesktop.ScreenSaver"
	screensaverSignal    = "org.freedesktop.ScreenSaver.ActiveChanged"
)

// DesktopSurface is a Surface backend for Linux desktop sessions. It
// bridges session-bus signals onto a surface hub: screensaver/lock
// activation maps to the surface becoming hidden, deactivation to it
// becoming visible again. Window geometry is not observable from the
// bus, so the devtools heuristic reports itself unavailable on this
// surface.
//
// The hosting layer may still Publish browser-side events (clipboard,
// fullscreen) onto the same surface.
type DesktopSurface struct {
	*Hub

	mu      sync.Mutex
	conn    *dbus.Conn
	signals chan *dbus.Signal
	closed  bool
}

// NewDesktopSurface connects to the session bus and begins translating
// desktop signals into surface events.
func NewDesktopSurface() (*DesktopSurface, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(screensaverInterface),
		dbus.WithMatchMember("ActiveChanged"),
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe screensaver signal: %w", err)
	}

	s := &DesktopSurface{
		Hub:     NewHub(nil),
		conn:    conn,
		signals: make(chan *dbus.Signal, 32),
	}
	conn.Signal(s.signals)

	go s.translate()
	return s, nil
}

func (s *DesktopSurface) translate() {
	for sig := range s.signals {
		if sig.Name != screensaverSignal || len(sig.Body) == 0 {
			continue
		}
		active, ok := sig.Body[0].(bool)
		if !ok {
			continue
		}
		if active {
			s.Publish(SurfaceHidden)
		} else {
			s.Publish(SurfaceVisible)
		}
	}
}

// Close disconnects from the bus and closes all subscriptions.
func (s *DesktopSurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	s.conn.RemoveSignal(s.signals)
	close(s.signals)
	err := s.conn.Close()
	s.Hub.Close()
	return err
}
