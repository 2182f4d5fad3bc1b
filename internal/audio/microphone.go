package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"zedvoice/internal/ports"
)

var errStreamEnded = errors.New("microphone stream ended")

// Microphone shares one capture process between the level meter and recordings,
// so repeated recordings never reopen the device.
type Microphone struct {
	capture   ports.AudioCapture
	cfg       ports.AudioConfig
	chunkSize int
	log       zerolog.Logger

	mu      sync.Mutex
	session ports.AudioSession
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewMicrophone(capture ports.AudioCapture, cfg ports.AudioConfig, chunkSize int, log zerolog.Logger) *Microphone {
	if chunkSize < 256 {
		chunkSize = 4096
	}
	return &Microphone{
		capture:   capture,
		cfg:       cfg,
		chunkSize: chunkSize,
		log:       log.With().Str("component", "microphone").Logger(),
	}
}

// Acquire opens the device if needed and streams frames into sink.
func (m *Microphone) Acquire(ctx context.Context, sink ports.FrameSink) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		return nil
	}

	deviceCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	session, err := m.capture.Start(deviceCtx, m.cfg)
	if err != nil {
		cancel()
		return fmt.Errorf("acquire microphone: %w", err)
	}

	m.session = session
	m.cancel = cancel
	m.done = make(chan struct{})

	m.log.Info().
		Str("device", m.cfg.InputDevice).
		Int("sample_rate", m.cfg.SampleRate).
		Msg("microphone acquired")

	go m.pump(session, sink, m.done)
	return nil
}

// Acquired reports whether a capture process is currently open.
func (m *Microphone) Acquired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil
}

// Release stops the capture process and waits for the pump to exit.
func (m *Microphone) Release() error {
	m.mu.Lock()
	session := m.session
	cancel := m.cancel
	done := m.done
	m.session = nil
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()

	if session == nil {
		return nil
	}

	err := session.Stop()
	cancel()
	<-done
	m.log.Info().Msg("microphone released")
	return err
}

func (m *Microphone) pump(session ports.AudioSession, sink ports.FrameSink, done chan struct{}) {
	defer close(done)

	buf := make([]byte, m.chunkSize)
	for {
		n, err := session.Read(buf)
		if n > 0 {
			frame := make([]byte, n)
			copy(frame, buf[:n])
			sink.Frame(frame)
		}
		if err != nil {
			m.finishPump(session, sink, err)
			return
		}
	}
}

func (m *Microphone) finishPump(session ports.AudioSession, sink ports.FrameSink, readErr error) {
	m.mu.Lock()
	owned := m.session == session
	if owned {
		m.session = nil
		if m.cancel != nil {
			m.cancel()
		}
		m.cancel = nil
		m.done = nil
	}
	m.mu.Unlock()

	// Released on purpose: the read error is just the closed pipe.
	if !owned {
		return
	}

	_ = session.Stop()
	if errors.Is(readErr, io.EOF) {
		readErr = errStreamEnded
	}
	m.log.Warn().Err(readErr).Msg("microphone capture stopped unexpectedly")
	sink.CaptureFailed(fmt.Errorf("audio capture error: %w", readErr))
}
