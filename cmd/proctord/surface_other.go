//go:build !linux

package main

import (
	"proctord/internal/logging"
	"proctord/internal/sensor"
)

// newSurface returns an inert hub on platforms without a desktop
// bridge; the hosting layer publishes surface events itself.
func newSurface(logger *logging.Logger) (sensor.Surface, func()) {
	hub := sensor.NewHub(nil)
	return hub, hub.Close
}
