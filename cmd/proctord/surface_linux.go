//go:build linux

package main

import (
	"proctord/internal/logging"
	"proctord/internal/sensor"
)

// newSurface attaches the desktop session bus when one is reachable.
// Without a bus the daemon runs on an inert hub; surface-fed sensors
// report themselves unavailable and the session runs degraded.
func newSurface(logger *logging.Logger) (sensor.Surface, func()) {
	s, err := sensor.NewDesktopSurface()
	if err != nil {
		logger.Warn("desktop surface unavailable", "error", err)
		hub := sensor.NewHub(nil)
		return hub, hub.Close
	}
	return s, func() { s.Close() }
}
