package usecase

import (
	"bytes"
	"errors"
	"sync"
	"time"

	"zedvoice/internal/audio"
)

var ErrNotRecording = errors.New("no recording in progress")

// Utterance is one finalised recording ready to send.
type Utterance struct {
	WAV      []byte
	Duration time.Duration
}

// recordingSession buffers microphone frames between start and stop. Frames
// arrive on the microphone goroutine, commands on the engine loop.
type recordingSession struct {
	sampleRate int
	channels   int

	mu        sync.Mutex
	recording bool
	startedAt time.Time
	buf       bytes.Buffer
}

func newRecordingSession(sampleRate, channels int) *recordingSession {
	return &recordingSession{sampleRate: sampleRate, channels: channels}
}

// Start begins buffering. It returns false when a recording was already running.
func (r *recordingSession) Start(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return false
	}
	r.recording = true
	r.startedAt = now
	r.buf.Reset()
	return true
}

// Append buffers one frame if a recording is running.
func (r *recordingSession) Append(pcm []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		r.buf.Write(pcm)
	}
}

// Stop finalises the buffered audio into a WAV utterance and clears the buffer.
func (r *recordingSession) Stop() (Utterance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return Utterance{}, ErrNotRecording
	}
	r.recording = false

	pcm := r.buf.Bytes()
	utterance := Utterance{
		WAV:      audio.EncodeWAV(pcm, r.sampleRate, r.channels),
		Duration: time.Duration(audio.PCMDurationMillis(len(pcm), r.sampleRate, r.channels)) * time.Millisecond,
	}
	r.buf.Reset()
	return utterance, nil
}

// Discard drops buffered audio without producing an utterance.
func (r *recordingSession) Discard() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	was := r.recording
	r.recording = false
	r.buf.Reset()
	return was
}

func (r *recordingSession) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

func (r *recordingSession) StartedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startedAt
}
