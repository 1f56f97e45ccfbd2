package sensor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"proctord/internal/exam"
)

// Speech detection defaults. Levels are averaged speech-band energy on
// a 0-255 scale.
const (
	DefaultSpeechSampleInterval = 500 * time.Millisecond
	DefaultSpeechThreshold      = 60.0
	DefaultSpeechDwell          = 2 * time.Second
)

// LevelSource samples ambient audio and reports the average energy in
// the conversational speech band on a 0-255 scale.
type LevelSource interface {
	// Level returns the current speech-band energy level.
	Level(ctx context.Context) (float64, error)

	// Available reports whether the microphone can be sampled.
	Available() (bool, string)
}

// SpeechAdapter samples ambient audio and reports sustained
// conversational speech. The level must stay above the threshold for
// the full dwell window before an event fires; the dwell then re-arms,
// so continued speech produces repeated events.
type SpeechAdapter struct {
	emitter
	source    LevelSource
	interval  time.Duration
	threshold float64
	dwell     time.Duration

	availMu sync.Mutex
	reason  string
}

// NewSpeechAdapter creates the speech-presence adapter. Zero values
// select the defaults.
func NewSpeechAdapter(source LevelSource, interval time.Duration, threshold float64, dwell time.Duration) *SpeechAdapter {
	if interval <= 0 {
		interval = DefaultSpeechSampleInterval
	}
	if threshold <= 0 {
		threshold = DefaultSpeechThreshold
	}
	if dwell <= 0 {
		dwell = DefaultSpeechDwell
	}
	return &SpeechAdapter{
		emitter:   newEmitter(),
		source:    source,
		interval:  interval,
		threshold: threshold,
		dwell:     dwell,
	}
}

// Name identifies the adapter.
func (a *SpeechAdapter) Name() string { return "speech" }

// Available reports whether the microphone can be sampled.
func (a *SpeechAdapter) Available() (bool, string) {
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

// Start begins the audio sampling loop.
func (a *SpeechAdapter) Start(ctx context.Context) error {
	done, err := a.begin()
	if err != nil {
		return err
	}

	a.wg.Add(1)
	go a.poll(ctx, done)
	return nil
}

// Stop stops sampling synchronously.
func (a *SpeechAdapter) Stop() error {
	a.end()
	return nil
}

func (a *SpeechAdapter) poll(ctx context.Context, done chan struct{}) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	var sustainedSince time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			var level float64
			var err error
			if !guard(func() { level, err = a.source.Level(ctx) }) {
				a.degrade("level source panicked")
				return
			}
			if err != nil {
				a.degrade(err.Error())
				continue
			}
			a.restore()

			now := time.Now()
			if level <= a.threshold {
				sustainedSince = time.Time{}
				continue
			}

			if sustainedSince.IsZero() {
				sustainedSince = now
				continue
			}
			if now.Sub(sustainedSince) >= a.dwell {
				a.emit(exam.ViolationSpeech, fmt.Sprintf(
					"Speech detected for %.0f+ seconds; average speech band level %.1f/255.",
					a.dwell.Seconds(), level))
				// Re-arm so continued conversation keeps firing.
				sustainedSince = now
			}
		}
	}
}

func (a *SpeechAdapter) degrade(reason string) {
	a.availMu.Lock()
	a.reason = reason
	a.availMu.Unlock()
}

func (a *SpeechAdapter) restore() {
	a.availMu.Lock()
	a.reason = ""
	a.availMu.Unlock()
}
