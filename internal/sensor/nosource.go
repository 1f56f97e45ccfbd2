package sensor

import (
	"context"
	"errors"
)

// NoFrameSource is a FrameSource for hosts without a camera pipeline.
// Adapters built on it report themselves unavailable and the session
// runs degraded rather than refusing to start.
type NoFrameSource struct {
	Reason string
}

// Faces always fails.
func (s NoFrameSource) Faces(ctx context.Context) (int, error) {
	return 0, errors.New(s.reason())
}

// Available reports the missing backend.
func (s NoFrameSource) Available() (bool, string) {
	return false, s.reason()
}

func (s NoFrameSource) reason() string {
	if s.Reason == "" {
		return "no camera backend"
	}
	return s.Reason
}

// NoLevelSource is a LevelSource for hosts without an audio pipeline.
type NoLevelSource struct {
	Reason string
}

// Level always fails.
func (s NoLevelSource) Level(ctx context.Context) (float64, error) {
	return 0, errors.New(s.reason())
}

// Available reports the missing backend.
func (s NoLevelSource) Available() (bool, string) {
	return false, s.reason()
}

func (s NoLevelSource) reason() string {
	if s.Reason == "" {
		return "no audio backend"
	}
	return s.Reason
}
