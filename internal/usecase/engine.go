package usecase

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"zedvoice/internal/domain"
	"zedvoice/internal/gate"
	"zedvoice/internal/ports"
	"zedvoice/internal/vad"
)

var ErrEngineStopped = errors.New("voice engine is not running")

const (
	DefaultCooldown             = 2 * time.Second
	DefaultMinUtteranceDuration = 250 * time.Millisecond
	DefaultSampleRate           = 16000

	queueSize = 64
	maxEchoes = 16
)

// Config controls the voice session engine.
type Config struct {
	Mode                 domain.CaptureMode
	SampleRate           int
	Channels             int
	VAD                  vad.Config
	Gate                 gate.Config
	Cooldown             time.Duration
	MinUtteranceDuration time.Duration
	// Clock defaults to time.Now.
	Clock func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Mode != domain.ModeHandsFree {
		c.Mode = domain.ModePushToTalk
	}
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
	if c.VAD.SampleInterval <= 0 {
		c.VAD.SampleInterval = vad.DefaultSampleInterval
	}
	if c.Cooldown < 0 {
		c.Cooldown = DefaultCooldown
	}
	if c.MinUtteranceDuration < 0 {
		c.MinUtteranceDuration = DefaultMinUtteranceDuration
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

// Dependencies are the engine's adapters.
type Dependencies struct {
	Microphone ports.Microphone
	Meter      ports.LevelMeter
	Transport  ports.Transport
	Player     ports.Player
	Normalizer ports.TranscriptNormalizer
	Events     ports.EventSink
}

type deviceState int

const (
	deviceReleased deviceState = iota
	deviceAcquiring
	deviceReady
)

// sessionState is owned by the engine loop; nothing else touches it.
type sessionState struct {
	status        domain.Status
	mode          domain.CaptureMode
	conversation  domain.ConversationState
	connected     bool
	transcription string
	response      string
	lastError     string
	volume        float64
	history       []domain.ChatMessage
	cooldownUntil time.Time
}

// Engine serialises every input of the voice session onto one loop.
type Engine struct {
	cfg        Config
	mic        ports.Microphone
	meter      ports.LevelMeter
	transport  ports.Transport
	player     ports.Player
	normalizer ports.TranscriptNormalizer
	events     ports.EventSink
	gate       *gate.Gate
	vad        *vad.Detector
	recording  *recordingSession
	log        zerolog.Logger
	clock      func() time.Time
	newTicker  func(time.Duration) (<-chan time.Time, func())

	queue    chan event
	stopped  chan struct{}
	startMu  sync.Mutex
	started  bool
	ctx      context.Context
	cancel   context.CancelFunc
	snapMu   sync.RWMutex
	snapshot domain.Snapshot

	// Loop-owned below.
	state       sessionState
	assembler   responseAssembler
	echoes      []string
	device      deviceState
	acquireDone chan struct{}
	sampler     *sampler
	conn        ports.Connection
	connGen     int
	connecting  bool
	playback    *playback
	playbackGen int
	audioPlayed bool
	closing     bool
}

func NewEngine(deps Dependencies, cfg Config, log zerolog.Logger) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{
		cfg:        cfg,
		mic:        deps.Microphone,
		meter:      deps.Meter,
		transport:  deps.Transport,
		player:     deps.Player,
		normalizer: deps.Normalizer,
		events:     deps.Events,
		gate:       gate.New(cfg.Gate),
		vad:        vad.NewDetector(cfg.VAD),
		recording:  newRecordingSession(cfg.SampleRate, cfg.Channels),
		log:        log.With().Str("component", "engine").Logger(),
		clock:      cfg.Clock,
		newTicker:  systemTicker,
		queue:      make(chan event, queueSize),
		stopped:    make(chan struct{}),
		state: sessionState{
			status:       domain.StatusIdle,
			mode:         cfg.Mode,
			conversation: domain.ConversationWaiting,
		},
	}
	e.publish()
	return e
}

// Start launches the loop, connects to the reasoning service and, in
// hands-free mode, opens the microphone and starts sampling.
func (e *Engine) Start(ctx context.Context) error {
	e.startMu.Lock()
	if e.started {
		e.startMu.Unlock()
		return nil
	}
	e.started = true
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.startMu.Unlock()

	go e.run()

	return e.do(func() error {
		e.log.Info().
			Str("mode", string(e.state.mode)).
			Int("sample_rate", e.cfg.SampleRate).
			Msg("voice engine started")
		if e.state.mode == domain.ModeHandsFree {
			e.enableHandsFree()
		}
		e.connect()
		e.setStatus(domain.StatusIdle, domain.ReasonReady)
		return nil
	})
}

// Close stops sampling, discards any recording, cancels playback, closes the
// connection and releases the microphone.
func (e *Engine) Close() error {
	err := e.do(func() error {
		e.shutdown()
		return nil
	})
	if errors.Is(err, ErrEngineStopped) {
		return nil
	}
	return err
}

// Snapshot returns a copy of the current session state.
func (e *Engine) Snapshot() domain.Snapshot {
	e.snapMu.RLock()
	defer e.snapMu.RUnlock()
	snap := e.snapshot
	snap.ChatHistory = slices.Clone(snap.ChatHistory)
	if snap.ChatHistory == nil {
		snap.ChatHistory = []domain.ChatMessage{}
	}
	return snap
}

func (e *Engine) run() {
	defer close(e.stopped)
	for ev := range e.queue {
		e.handle(ev)
		e.publish()
		if e.closing {
			return
		}
	}
}

// post queues an event, giving up once the loop has exited.
func (e *Engine) post(ev event) bool {
	select {
	case e.queue <- ev:
		return true
	case <-e.stopped:
		return false
	}
}

// do runs fn on the loop and waits for its result.
func (e *Engine) do(fn func() error) error {
	e.startMu.Lock()
	started := e.started
	e.startMu.Unlock()
	if !started {
		return ErrEngineStopped
	}

	reply := make(chan error, 1)
	if !e.post(command{apply: fn, reply: reply}) {
		return ErrEngineStopped
	}
	select {
	case err := <-reply:
		return err
	case <-e.stopped:
		select {
		case err := <-reply:
			return err
		default:
			return ErrEngineStopped
		}
	}
}

func (e *Engine) shutdown() {
	e.closing = true
	e.stopSampler()
	e.vad.Reset()
	if e.recording.Discard() {
		e.log.Info().Msg("discarded in-flight recording")
	}
	e.stopPlayback(true)
	e.disconnect()
	if e.acquireDone != nil {
		<-e.acquireDone
	}
	if err := e.mic.Release(); err != nil {
		e.log.Warn().Err(err).Msg("microphone release failed")
	}
	e.meter.Reset()
	e.device = deviceReleased
	if e.cancel != nil {
		e.cancel()
	}
	e.log.Info().Msg("voice engine stopped")
}

func (e *Engine) publish() {
	s := e.state
	snap := domain.Snapshot{
		Status:            s.status,
		Mode:              s.mode,
		ConversationState: s.conversation,
		Connected:         s.connected,
		Transcription:     s.transcription,
		Response:          s.response,
		Error:             s.lastError,
		Volume:            s.volume,
		// Entries are never mutated in place, so sharing a capped prefix is safe.
		ChatHistory: s.history[:len(s.history):len(s.history)],
	}
	e.snapMu.Lock()
	e.snapshot = snap
	e.snapMu.Unlock()
}

func (e *Engine) setStatus(status domain.Status, reason domain.StatusReason) {
	e.state.status = status
	e.log.Debug().Str("status", string(status)).Str("reason", string(reason)).Msg("status changed")
	e.events.StatusChanged(status, reason)
}

// setActivity reports conversation progress. A running recording keeps its
// status until it is stopped.
func (e *Engine) setActivity(status domain.Status, reason domain.StatusReason) {
	if e.recording.Active() {
		e.log.Debug().Str("status", string(status)).Str("reason", string(reason)).Msg("status held while recording")
		return
	}
	e.setStatus(status, reason)
}

func (e *Engine) appendMessage(role domain.Role, content string) domain.ChatMessage {
	msg := domain.ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: e.clock(),
	}
	e.state.history = append(e.state.history, msg)
	e.events.MessageAppended(msg)
	return msg
}

func (e *Engine) reportError(code domain.ErrorCode, detail string) {
	e.state.lastError = detail
	e.events.SessionError(code, detail)
}

// canStartRecording is the hands-free eligibility rule.
func (e *Engine) canStartRecording(now time.Time) bool {
	if e.state.mode != domain.ModeHandsFree || e.recording.Active() {
		return false
	}
	if now.Before(e.state.cooldownUntil) {
		return false
	}
	return e.state.status != domain.StatusProcessing && e.state.status != domain.StatusSpeaking
}

func (e *Engine) openCooldown() {
	e.state.cooldownUntil = e.clock().Add(e.cfg.Cooldown)
}
