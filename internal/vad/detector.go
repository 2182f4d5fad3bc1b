// Package vad decides from periodic loudness samples when the user starts and
// stops speaking.
package vad

import (
	"time"
)

// State is the detector's position in the speech lifecycle.
type State int

const (
	StateIdle State = iota
	StateSpeechPending
	StateSpeaking
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSpeechPending:
		return "speech-pending"
	case StateSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}

// Transition is what a single observation caused.
type Transition int

const (
	NoChange Transition = iota
	// SpeechPending: loudness crossed the threshold; debouncing.
	SpeechPending
	// FalseAlarm: loudness dropped (or eligibility was lost) before the debounce elapsed.
	FalseAlarm
	// SpeechStarted: the caller must start recording.
	SpeechStarted
	// SpeechEnded: the caller must stop recording.
	SpeechEnded
)

func (t Transition) String() string {
	switch t {
	case NoChange:
		return "none"
	case SpeechPending:
		return "speech-pending"
	case FalseAlarm:
		return "false-alarm"
	case SpeechStarted:
		return "speech-started"
	case SpeechEnded:
		return "speech-ended"
	default:
		return "unknown"
	}
}

const (
	DefaultThreshold         = 0.08
	DefaultSpeechMinDuration = 150 * time.Millisecond
	DefaultSilenceDuration   = 1500 * time.Millisecond
	DefaultSampleInterval    = 50 * time.Millisecond
)

// Config holds detector thresholds. Durations are converted to whole sample ticks.
type Config struct {
	Threshold         float64
	SpeechMinDuration time.Duration
	SilenceDuration   time.Duration
	SampleInterval    time.Duration
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		Threshold:         DefaultThreshold,
		SpeechMinDuration: DefaultSpeechMinDuration,
		SilenceDuration:   DefaultSilenceDuration,
		SampleInterval:    DefaultSampleInterval,
	}
}

// Detector is a three-state VAD driven by one loudness sample per tick.
// It is not safe for concurrent use; the session engine owns it.
type Detector struct {
	threshold    float64
	speechTicks  int
	silenceTicks int

	state       State
	speechStart time.Time
	aboveCount  int
	belowCount  int
}

func NewDetector(cfg Config) *Detector {
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = DefaultSampleInterval
	}
	if cfg.SpeechMinDuration < 0 {
		cfg.SpeechMinDuration = DefaultSpeechMinDuration
	}
	if cfg.SilenceDuration <= 0 {
		cfg.SilenceDuration = DefaultSilenceDuration
	}
	return &Detector{
		threshold:    cfg.Threshold,
		speechTicks:  ticksFor(cfg.SpeechMinDuration, cfg.SampleInterval),
		silenceTicks: ticksFor(cfg.SilenceDuration, cfg.SampleInterval),
	}
}

func ticksFor(d time.Duration, interval time.Duration) int {
	ticks := int((d + interval - 1) / interval)
	if ticks < 1 {
		return 1
	}
	return ticks
}

// Observe feeds one sample. canStart reports whether a new recording may begin
// right now; it only gates the idle and speech-pending states, so an ongoing
// speech segment always runs to its end.
func (d *Detector) Observe(level float64, now time.Time, canStart bool) Transition {
	loud := level >= d.threshold

	switch d.state {
	case StateIdle:
		if !loud || !canStart {
			return NoChange
		}
		d.state = StateSpeechPending
		d.speechStart = now
		d.aboveCount = 1
		if d.aboveCount >= d.speechTicks {
			return d.startSpeaking()
		}
		return SpeechPending

	case StateSpeechPending:
		if !loud || !canStart {
			d.Reset()
			return FalseAlarm
		}
		d.aboveCount++
		if d.aboveCount >= d.speechTicks {
			return d.startSpeaking()
		}
		return NoChange

	case StateSpeaking:
		if loud {
			d.belowCount = 0
			return NoChange
		}
		d.belowCount++
		if d.belowCount >= d.silenceTicks {
			d.Reset()
			return SpeechEnded
		}
		return NoChange
	}

	return NoChange
}

func (d *Detector) startSpeaking() Transition {
	d.state = StateSpeaking
	d.aboveCount = 0
	d.belowCount = 0
	return SpeechStarted
}

// State returns the current detector state.
func (d *Detector) State() State {
	return d.state
}

// SpeechStart returns when the current speech segment first crossed the threshold.
func (d *Detector) SpeechStart() time.Time {
	return d.speechStart
}

// Threshold returns the loudness threshold in [0,1].
func (d *Detector) Threshold() float64 {
	return d.threshold
}

// Reset returns the detector to idle and forgets any partial run.
func (d *Detector) Reset() {
	d.state = StateIdle
	d.speechStart = time.Time{}
	d.aboveCount = 0
	d.belowCount = 0
}
