// Package transport speaks the reasoning service's websocket protocol.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"zedvoice/internal/domain"
	"zedvoice/internal/ports"
)

const (
	DefaultURL              = "ws://localhost:8000/ws"
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultPingInterval     = 20 * time.Second

	writeTimeout = 10 * time.Second
	// Synthesized replies arrive as one binary frame.
	maxFrameSize = 32 << 20
	eventBuffer  = 256
	sendBuffer   = 32
)

// Config controls the reasoning service connection.
type Config struct {
	URL              string
	HandshakeTimeout time.Duration
	// PingInterval is the keepalive period; zero disables pings.
	PingInterval time.Duration
}

// Client implements ports.Transport over gorilla/websocket.
type Client struct {
	cfg Config
	log zerolog.Logger
}

func NewClient(cfg Config, log zerolog.Logger) *Client {
	if strings.TrimSpace(cfg.URL) == "" {
		cfg.URL = DefaultURL
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.PingInterval < 0 {
		cfg.PingInterval = 0
	}
	return &Client{cfg: cfg, log: log.With().Str("component", "transport").Logger()}
}

// URL returns the websocket endpoint after scheme normalisation.
func (c *Client) URL() (string, error) {
	return websocketURL(c.cfg.URL)
}

// Dial opens a connection. The connection closes itself when ctx is cancelled.
func (c *Client) Dial(ctx context.Context) (ports.Connection, error) {
	target, err := websocketURL(c.cfg.URL)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", target, err)
	}
	conn.SetReadLimit(maxFrameSize)

	session := &connection{
		conn:         conn,
		log:          c.log.With().Str("url", target).Logger(),
		pingInterval: c.cfg.PingInterval,
		events:       make(chan domain.ServerEvent, eventBuffer),
		outbound:     make(chan frame, sendBuffer),
		closing:      make(chan struct{}),
		done:         make(chan struct{}),
	}

	session.wg.Add(2)
	go session.readLoop()
	go session.writeLoop()
	go func() {
		session.wg.Wait()
		close(session.events)
		close(session.done)
		_ = conn.Close()
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = session.Close()
		case <-session.done:
		}
	}()

	session.log.Info().Msg("connected")
	return session, nil
}

func websocketURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(raw, "https://"):
		raw = "wss://" + strings.TrimPrefix(raw, "https://")
	case strings.HasPrefix(raw, "http://"):
		raw = "ws://" + strings.TrimPrefix(raw, "http://")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid server url %q: %w", raw, err)
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return "", fmt.Errorf("invalid server url %q: scheme must be ws or wss", raw)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("invalid server url %q: missing host", raw)
	}
	return parsed.String(), nil
}

type frame struct {
	messageType int
	data        []byte
}

type connection struct {
	conn         *websocket.Conn
	log          zerolog.Logger
	pingInterval time.Duration

	events   chan domain.ServerEvent
	outbound chan frame
	closing  chan struct{}
	done     chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	shutdownOnce sync.Once
}

func (c *connection) SendConfig(sampleRate int) error {
	payload, err := encodeConfig(sampleRate)
	if err != nil {
		return err
	}
	return c.send(frame{messageType: websocket.TextMessage, data: payload})
}

func (c *connection) SendText(text string) error {
	payload, err := encodeText(text)
	if err != nil {
		return err
	}
	return c.send(frame{messageType: websocket.TextMessage, data: payload})
}

func (c *connection) SendAudio(blob []byte) error {
	if len(blob) == 0 {
		return nil
	}
	return c.send(frame{messageType: websocket.BinaryMessage, data: append([]byte(nil), blob...)})
}

func (c *connection) send(f frame) error {
	select {
	case <-c.closing:
		return ports.ErrNotConnected
	default:
	}
	select {
	case c.outbound <- f:
		return nil
	case <-c.closing:
		return ports.ErrNotConnected
	}
}

// Events is closed once the connection has fully shut down.
func (c *connection) Events() <-chan domain.ServerEvent {
	return c.events
}

// Wait blocks until the connection ends and returns the first abnormal error.
func (c *connection) Wait() error {
	<-c.done
	return c.waitErr()
}

func (c *connection) Close() error {
	c.shutdown()
	<-c.done
	return c.waitErr()
}

func (c *connection) shutdown() {
	c.shutdownOnce.Do(func() {
		close(c.closing)
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		_ = c.conn.Close()
	})
}

func (c *connection) isClosing() bool {
	select {
	case <-c.closing:
		return true
	default:
		return false
	}
}

func (c *connection) waitErr() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// setErr records the first abnormal failure. Normal close codes are checked
// before wrapping since IsCloseError does not unwrap.
func (c *connection) setErr(action string, err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}

	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = fmt.Errorf("%s: %w", action, err)
	}
}

func (c *connection) writeLoop() {
	defer c.wg.Done()

	var pings <-chan time.Time
	if c.pingInterval > 0 {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		pings = ticker.C
	}

	for {
		var f frame
		select {
		case <-c.closing:
			return
		case f = <-c.outbound:
		case <-pings:
			f = frame{messageType: websocket.TextMessage, data: pingFrame}
		}

		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(f.messageType, f.data); err != nil {
			if !c.isClosing() {
				c.setErr("failed to send frame", err)
			}
			c.shutdown()
			return
		}
	}
}

func (c *connection) readLoop() {
	defer c.wg.Done()
	defer c.shutdown()

	for {
		messageType, payload, err := c.conn.ReadMessage()
		if err != nil {
			if !c.isClosing() {
				c.setErr("failed to read server frame", err)
			}
			if waitErr := c.waitErr(); waitErr != nil {
				c.log.Warn().Err(waitErr).Msg("connection lost")
			} else {
				c.log.Info().Msg("connection closed")
			}
			return
		}

		var event domain.ServerEvent
		switch messageType {
		case websocket.BinaryMessage:
			event = domain.ServerEvent{Kind: domain.EventAudio, Audio: payload}
		case websocket.TextMessage:
			event, err = decodeText(payload)
			if err != nil {
				c.log.Warn().Err(err).Int("bytes", len(payload)).Msg("dropping server frame")
				continue
			}
		default:
			continue
		}

		if !c.emit(event) {
			return
		}
	}
}

// emit blocks until the event is queued or the connection starts closing.
func (c *connection) emit(event domain.ServerEvent) bool {
	select {
	case c.events <- event:
		return true
	case <-c.closing:
		return false
	}
}
