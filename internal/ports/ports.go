package ports

import (
	"context"
	"errors"
	"io"

	"zedvoice/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// FrameSink receives PCM frames from a shared microphone.
type FrameSink interface {
	Frame(pcm []byte)
	CaptureFailed(err error)
}

// Microphone is a lazily acquired capture device shared for the whole session.
type Microphone interface {
	// Acquire opens the device once; later calls are no-ops while it stays open.
	Acquire(ctx context.Context, sink FrameSink) error
	Release() error
	Acquired() bool
}

// LevelMeter turns the latest captured window into a loudness value in [0,1].
type LevelMeter interface {
	Write(pcm []byte)
	Sample() float64
	Reset()
}

// Player plays a complete synthesized reply, blocking until playback ends.
type Player interface {
	Play(ctx context.Context, audio []byte) error
}

// ErrNotConnected is returned by sends attempted without a live connection.
var ErrNotConnected = errors.New("not connected to the reasoning service")

// Transport opens duplex connections to the reasoning service.
type Transport interface {
	Dial(ctx context.Context) (Connection, error)
}

// Connection is one live duplex channel.
type Connection interface {
	SendConfig(sampleRate int) error
	SendText(text string) error
	SendAudio(blob []byte) error
	Events() <-chan domain.ServerEvent
	Wait() error
	Close() error
}

// TranscriptNormalizer rewrites transcribed text before it is gated.
type TranscriptNormalizer interface {
	Apply(text string) (string, error)
}

// EventSink emits engine state and events to the UI.
type EventSink interface {
	StatusChanged(status domain.Status, reason domain.StatusReason)
	Transcription(text string)
	ResponseUpdated(partial string)
	MessageAppended(message domain.ChatMessage)
	LevelSampled(level float64)
	SessionError(code domain.ErrorCode, detail string)
}
