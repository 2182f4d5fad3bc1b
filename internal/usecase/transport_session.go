package usecase

import (
	"zedvoice/internal/domain"
	"zedvoice/internal/ports"
)

// connect dials in the background; reconnecting is always an explicit command.
func (e *Engine) connect() {
	if e.conn != nil || e.connecting {
		return
	}
	e.connGen++
	gen := e.connGen
	e.connecting = true
	ctx := e.ctx

	go func() {
		conn, err := e.transport.Dial(ctx)
		if err != nil {
			e.post(connectionFailed{gen: gen, err: err})
			return
		}
		if !e.post(connectionOpened{gen: gen, conn: conn}) {
			_ = conn.Close()
		}
	}()
}

// disconnect drops the current connection. Events from it are ignored from now on.
func (e *Engine) disconnect() {
	e.connGen++
	e.connecting = false
	e.echoes = nil
	conn := e.conn
	e.conn = nil
	e.state.connected = false
	if conn == nil {
		return
	}
	if e.closing {
		if err := conn.Close(); err != nil {
			e.log.Debug().Err(err).Msg("connection closed with error")
		}
		return
	}
	go func() { _ = conn.Close() }()
}

func (e *Engine) onConnectionOpened(gen int, conn ports.Connection) {
	if gen != e.connGen {
		go func() { _ = conn.Close() }()
		return
	}
	e.connecting = false
	e.conn = conn
	e.state.connected = true
	e.state.lastError = ""
	e.log.Info().Msg("connected to reasoning service")

	if err := conn.SendConfig(e.cfg.SampleRate); err != nil {
		e.log.Warn().Err(err).Msg("failed to send session config")
	}

	go func() {
		for ev := range conn.Events() {
			if !e.post(serverEvent{gen: gen, event: ev}) {
				return
			}
		}
		e.post(connectionClosed{gen: gen, err: conn.Wait()})
	}()
}

func (e *Engine) onConnectionFailed(gen int, err error) {
	if gen != e.connGen {
		return
	}
	e.connecting = false
	e.log.Warn().Err(err).Msg("could not connect to reasoning service")
	e.reportError(domain.ErrorCodeTransport, err.Error())
}

// onConnectionClosed marks the session disconnected. Conversation and chat
// state are left alone so a reconnect resumes the same session. Pending
// echoes die with the connection that would have sent them.
func (e *Engine) onConnectionClosed(gen int, err error) {
	if gen != e.connGen {
		return
	}
	e.conn = nil
	e.echoes = nil
	e.state.connected = false
	if err != nil {
		e.log.Warn().Err(err).Msg("connection to reasoning service lost")
		e.reportError(domain.ErrorCodeTransport, err.Error())
		return
	}
	e.log.Info().Msg("reasoning service closed the connection")
}

func (e *Engine) sendAudio(wav []byte) error {
	if e.conn == nil {
		e.reportError(domain.ErrorCodeTransport, ports.ErrNotConnected.Error())
		return ports.ErrNotConnected
	}
	if err := e.conn.SendAudio(wav); err != nil {
		e.reportError(domain.ErrorCodeTransport, err.Error())
		return err
	}
	return nil
}

// sendText remembers the text so the server's echo of it is not gated again.
func (e *Engine) sendText(text string) error {
	if e.conn == nil {
		e.reportError(domain.ErrorCodeTransport, ports.ErrNotConnected.Error())
		return ports.ErrNotConnected
	}
	e.echoes = append(e.echoes, text)
	if len(e.echoes) > maxEchoes {
		e.echoes = e.echoes[len(e.echoes)-maxEchoes:]
	}
	if err := e.conn.SendText(text); err != nil {
		e.echoes = e.echoes[:len(e.echoes)-1]
		e.reportError(domain.ErrorCodeTransport, err.Error())
		return err
	}
	return nil
}

// consumeEcho reports whether text is the server echoing something we sent.
func (e *Engine) consumeEcho(text string) bool {
	for i, sent := range e.echoes {
		if sent == text {
			e.echoes = append(e.echoes[:i], e.echoes[i+1:]...)
			return true
		}
	}
	return false
}

func (e *Engine) onServerEvent(ev domain.ServerEvent) {
	switch ev.Kind {
	case domain.EventTranscription:
		e.onTranscription(ev.Text)
	case domain.EventResponse:
		e.onResponse(ev)
	case domain.EventAudio:
		e.startPlayback(ev.Audio)
	case domain.EventError:
		e.onRemoteError(ev.Message)
	case domain.EventStatus:
		e.onServerMode(ev.Mode, ev.Text)
	case domain.EventAudioCue:
		e.log.Info().Str("cue", ev.Text).Msg("audio cue")
	case domain.EventConfigAck, domain.EventPong:
		e.log.Debug().Str("kind", string(ev.Kind)).Msg("server ack")
	}
}

func (e *Engine) onRemoteError(message string) {
	e.log.Warn().Str("message", message).Msg("reasoning service error")
	e.assembler.Abandon()
	e.reportError(domain.ErrorCodeRemote, message)
	e.setStatus(domain.StatusError, domain.ReasonRemoteError)
}

// onServerMode follows the server's own conversation mode; asleep is a hangup.
func (e *Engine) onServerMode(mode domain.ServerMode, text string) {
	switch mode {
	case domain.ServerModeAsleep:
		e.state.conversation = domain.ConversationWaiting
	case domain.ServerModeAwake:
		e.state.conversation = domain.ConversationActive
	}
	e.log.Info().Str("mode", string(mode)).Str("text", text).Msg("server conversation mode")
}
