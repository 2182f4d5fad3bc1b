package usecase

import (
	"errors"
	"fmt"
	"strings"

	"zedvoice/internal/domain"
)

var ErrEmptyText = errors.New("text is empty")

// StartRecording begins a recording; it is a no-op while one is running.
func (e *Engine) StartRecording() error {
	return e.do(func() error {
		e.startRecording()
		return nil
	})
}

// StopRecording finalises and sends the current recording. Stopping with
// nothing recorded does nothing.
func (e *Engine) StopRecording() error {
	return e.do(func() error {
		e.finishRecording()
		return nil
	})
}

// ToggleRecording starts a recording or stops the running one.
func (e *Engine) ToggleRecording() error {
	return e.do(func() error {
		if e.recording.Active() {
			e.finishRecording()
		} else {
			e.startRecording()
		}
		return nil
	})
}

// SetMode switches between push-to-talk and hands-free.
func (e *Engine) SetMode(mode domain.CaptureMode) error {
	if mode != domain.ModePushToTalk && mode != domain.ModeHandsFree {
		return fmt.Errorf("unknown capture mode %q", mode)
	}
	return e.do(func() error {
		if e.state.mode == mode {
			return nil
		}
		e.state.mode = mode
		if mode == domain.ModeHandsFree {
			e.enableHandsFree()
		} else {
			e.disableHandsFree()
		}
		e.log.Info().Str("mode", string(mode)).Msg("capture mode changed")
		e.setStatus(e.state.status, domain.ReasonModeChanged)
		return nil
	})
}

// SendText dispatches typed text directly, without wake or end phrase checks.
func (e *Engine) SendText(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}
	return e.do(func() error {
		return e.dispatchQuery(text)
	})
}

// Clear empties the chat history and returns the conversation to waiting.
func (e *Engine) Clear() error {
	return e.do(func() error {
		e.state.history = nil
		e.state.transcription = ""
		e.state.response = ""
		e.state.lastError = ""
		e.state.conversation = domain.ConversationWaiting
		e.assembler.Reset()
		e.echoes = nil
		e.events.ResponseUpdated("")

		status := e.state.status
		if status == domain.StatusError {
			status = domain.StatusIdle
		}
		e.setStatus(status, domain.ReasonCleared)
		return nil
	})
}

// Reconnect closes the current connection, if any, and dials again.
func (e *Engine) Reconnect() error {
	return e.do(func() error {
		e.disconnect()
		e.connect()
		e.log.Info().Msg("reconnecting to reasoning service")
		return nil
	})
}
