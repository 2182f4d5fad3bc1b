package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"zedvoice/internal/domain"
	"zedvoice/internal/ports"
	"zedvoice/internal/vad"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeMicrophone struct {
	mu       sync.Mutex
	sink     ports.FrameSink
	err      error
	acquires int
	releases int
}

func (m *fakeMicrophone) Acquire(_ context.Context, sink ports.FrameSink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acquires++
	if m.err != nil {
		return m.err
	}
	m.sink = sink
	return nil
}

func (m *fakeMicrophone) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releases++
	m.sink = nil
	return nil
}

func (m *fakeMicrophone) Acquired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sink != nil
}

func (m *fakeMicrophone) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *fakeMicrophone) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquires, m.releases
}

// speak feeds d of PCM through the shared device.
func (m *fakeMicrophone) speak(t *testing.T, d time.Duration) {
	t.Helper()
	m.mu.Lock()
	sink := m.sink
	m.mu.Unlock()
	require.NotNil(t, sink, "microphone not acquired")
	samples := int(d.Milliseconds() * 16)
	sink.Frame(make([]byte, samples*2))
}

func (m *fakeMicrophone) fail(t *testing.T, err error) {
	t.Helper()
	m.mu.Lock()
	sink := m.sink
	m.sink = nil
	m.mu.Unlock()
	require.NotNil(t, sink, "microphone not acquired")
	sink.CaptureFailed(err)
}

type fakeMeter struct {
	mu     sync.Mutex
	level  float64
	writes int
	resets int
}

func (m *fakeMeter) Write([]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
}

func (m *fakeMeter) Sample() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

func (m *fakeMeter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
}

func (m *fakeMeter) set(level float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.level = level
}

type fakeConnection struct {
	events chan domain.ServerEvent

	mu      sync.Mutex
	configs []int
	texts   []string
	audio   [][]byte
	sendErr error
	closed  bool
	waitErr error
	done    chan struct{}
}

func newFakeConnection() *fakeConnection {
	return &fakeConnection{
		events: make(chan domain.ServerEvent, 64),
		done:   make(chan struct{}),
	}
}

func (c *fakeConnection) SendConfig(sampleRate int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ports.ErrNotConnected
	}
	c.configs = append(c.configs, sampleRate)
	return nil
}

func (c *fakeConnection) SendText(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ports.ErrNotConnected
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.texts = append(c.texts, text)
	return nil
}

func (c *fakeConnection) SendAudio(blob []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ports.ErrNotConnected
	}
	c.audio = append(c.audio, append([]byte(nil), blob...))
	return nil
}

func (c *fakeConnection) Events() <-chan domain.ServerEvent {
	return c.events
}

func (c *fakeConnection) Wait() error {
	<-c.done
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waitErr
}

func (c *fakeConnection) Close() error {
	c.end(nil)
	return nil
}

// end simulates the connection going away, optionally abnormally.
func (c *fakeConnection) end(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.waitErr = err
	close(c.events)
	close(c.done)
}

func (c *fakeConnection) push(ev domain.ServerEvent) {
	c.events <- ev
}

func (c *fakeConnection) sentTexts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.texts...)
}

func (c *fakeConnection) sentAudio() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.audio...)
}

func (c *fakeConnection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeTransport struct {
	mu    sync.Mutex
	conns []*fakeConnection
	err   error
}

func (t *fakeTransport) Dial(context.Context) (ports.Connection, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return nil, t.err
	}
	conn := newFakeConnection()
	t.conns = append(t.conns, conn)
	return conn, nil
}

func (t *fakeTransport) dials() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

func (t *fakeTransport) last() *fakeConnection {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.conns) == 0 {
		return nil
	}
	return t.conns[len(t.conns)-1]
}

type fakePlayer struct {
	mu      sync.Mutex
	played  [][]byte
	err     error
	release chan struct{}
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{release: make(chan struct{})}
}

// Play blocks until finish is called or ctx is cancelled.
func (p *fakePlayer) Play(ctx context.Context, audio []byte) error {
	p.mu.Lock()
	p.played = append(p.played, audio)
	release := p.release
	p.mu.Unlock()

	select {
	case <-release:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *fakePlayer) finish(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
	close(p.release)
	p.release = make(chan struct{})
}

func (p *fakePlayer) playCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.played)
}

type statusChange struct {
	status domain.Status
	reason domain.StatusReason
}

type errorEvent struct {
	code   domain.ErrorCode
	detail string
}

type fakeEventSink struct {
	mu             sync.Mutex
	statuses       []statusChange
	transcriptions []string
	partials       []string
	messages       []domain.ChatMessage
	levels         []float64
	errors         []errorEvent
}

func (s *fakeEventSink) StatusChanged(status domain.Status, reason domain.StatusReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, statusChange{status: status, reason: reason})
}

func (s *fakeEventSink) Transcription(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcriptions = append(s.transcriptions, text)
}

func (s *fakeEventSink) ResponseUpdated(partial string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partials = append(s.partials, partial)
}

func (s *fakeEventSink) MessageAppended(message domain.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)
}

func (s *fakeEventSink) LevelSampled(level float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels = append(s.levels, level)
}

func (s *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, errorEvent{code: code, detail: detail})
}

func (s *fakeEventSink) snapshotStatuses() []statusChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]statusChange(nil), s.statuses...)
}

func (s *fakeEventSink) snapshotErrors() []errorEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]errorEvent(nil), s.errors...)
}

func (s *fakeEventSink) sawStatus(status domain.Status) bool {
	for _, change := range s.snapshotStatuses() {
		if change.status == status {
			return true
		}
	}
	return false
}

type fakeNormalizer struct {
	replace map[string]string
}

func (n fakeNormalizer) Apply(text string) (string, error) {
	if out, ok := n.replace[text]; ok {
		return out, nil
	}
	return text, nil
}

type harness struct {
	engine    *Engine
	clock     *fakeClock
	mic       *fakeMicrophone
	meter     *fakeMeter
	transport *fakeTransport
	player    *fakePlayer
	sink      *fakeEventSink

	normalizer fakeNormalizer
	ticks      chan time.Time
}

func testConfig(mode domain.CaptureMode) Config {
	return Config{
		Mode:                 mode,
		SampleRate:           16000,
		Channels:             1,
		VAD:                  vad.DefaultConfig(),
		Cooldown:             2 * time.Second,
		MinUtteranceDuration: 250 * time.Millisecond,
	}
}

// newHarness starts an engine whose sampler only ticks when a test sends on
// h.ticks; most tests feed levels with h.level instead.
func newHarness(t *testing.T, cfg Config, setup ...func(*harness)) *harness {
	t.Helper()

	h := &harness{
		clock:     newFakeClock(),
		mic:       &fakeMicrophone{},
		meter:     &fakeMeter{},
		transport: &fakeTransport{},
		player:    newFakePlayer(),
		sink:      &fakeEventSink{},
		ticks:     make(chan time.Time),
	}
	for _, fn := range setup {
		fn(h)
	}
	cfg.Clock = h.clock.Now

	h.engine = NewEngine(Dependencies{
		Microphone: h.mic,
		Meter:      h.meter,
		Transport:  h.transport,
		Player:     h.player,
		Normalizer: h.normalizer,
		Events:     h.sink,
	}, cfg, zerolog.Nop())
	h.engine.newTicker = func(time.Duration) (<-chan time.Time, func()) {
		return h.ticks, func() {}
	}

	require.NoError(t, h.engine.Start(context.Background()))
	t.Cleanup(func() { _ = h.engine.Close() })
	return h
}

func (h *harness) waitConnected(t *testing.T) *fakeConnection {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.engine.Snapshot().Connected
	}, 2*time.Second, 5*time.Millisecond)
	return h.transport.last()
}

func (h *harness) waitDevice(t *testing.T) {
	t.Helper()
	require.Eventually(t, h.mic.Acquired, 2*time.Second, 5*time.Millisecond)
	// Let the loop consume the acquisition result too.
	h.inspect(t, func() {})
}

// level runs one sampler tick on the loop.
func (h *harness) level(t *testing.T, level float64, ticks int) {
	t.Helper()
	for i := 0; i < ticks; i++ {
		require.NoError(t, h.engine.do(func() error {
			h.engine.onLevel(level, h.clock.Now())
			return nil
		}))
		h.clock.Advance(50 * time.Millisecond)
	}
}

// inspect runs fn on the engine loop.
func (h *harness) inspect(t *testing.T, fn func()) {
	t.Helper()
	require.NoError(t, h.engine.do(func() error {
		fn()
		return nil
	}))
}

func (h *harness) status() domain.Status {
	return h.engine.Snapshot().Status
}

func (h *harness) waitStatus(t *testing.T, want domain.Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.status() == want
	}, 2*time.Second, 5*time.Millisecond, "status never became %s (now %s)", want, h.status())
}

func (h *harness) waitMessages(t *testing.T, n int) []domain.ChatMessage {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(h.engine.Snapshot().ChatHistory) >= n
	}, 2*time.Second, 5*time.Millisecond)
	return h.engine.Snapshot().ChatHistory
}
