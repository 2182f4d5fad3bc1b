package usecase

import (
	"strings"

	"zedvoice/internal/domain"
	"zedvoice/internal/gate"
	"zedvoice/internal/ports"
)

func (e *Engine) onTranscription(raw string) {
	text := strings.TrimSpace(raw)
	if e.consumeEcho(text) {
		e.log.Debug().Str("text", text).Msg("skipping echo of sent text")
		return
	}

	e.state.transcription = text
	e.events.Transcription(text)

	normalized := e.normalize(text)
	decision := e.gate.Evaluate(normalized, e.state.conversation)
	e.log.Info().
		Str("text", text).
		Str("action", string(decision.Action)).
		Str("phrase", decision.Phrase).
		Msg("transcript gated")

	switch decision.Action {
	case gate.ActionEnd:
		wasActive := e.state.conversation == domain.ConversationActive
		e.state.conversation = domain.ConversationWaiting
		e.assembler.Abandon()
		// The farewell goes to the server so it can close its side too.
		if wasActive && e.conn != nil {
			e.appendMessage(domain.RoleUser, text)
			_ = e.sendText(text)
		}
		e.setActivity(domain.StatusIdle, domain.ReasonConversationEnded)

	case gate.ActionActivate:
		e.state.conversation = domain.ConversationActive
		e.dispatchQuery(decision.Payload)

	case gate.ActionAcknowledge:
		e.state.conversation = domain.ConversationActive
		e.setActivity(domain.StatusIdle, domain.ReasonWakeAcknowledged)

	case gate.ActionIgnore:
		e.setActivity(domain.StatusIdle, domain.ReasonTranscriptIgnored)

	case gate.ActionDispatch:
		e.dispatchQuery(decision.Payload)
	}
}

func (e *Engine) normalize(text string) string {
	if e.normalizer == nil {
		return text
	}
	out, err := e.normalizer.Apply(text)
	if err != nil {
		e.log.Warn().Err(err).Msg("transcript normalisation incomplete")
	}
	if strings.TrimSpace(out) == "" {
		return text
	}
	return out
}

// dispatchQuery records the user message, opens a turn and sends the text.
func (e *Engine) dispatchQuery(text string) error {
	if e.conn == nil {
		e.reportError(domain.ErrorCodeTransport, ports.ErrNotConnected.Error())
		e.setActivity(domain.StatusIdle, domain.ReasonSendFailed)
		return ports.ErrNotConnected
	}
	e.appendMessage(domain.RoleUser, text)
	e.beginTurn()
	if err := e.sendText(text); err != nil {
		e.assembler.Abandon()
		e.setActivity(domain.StatusIdle, domain.ReasonSendFailed)
		return err
	}
	e.setActivity(domain.StatusProcessing, domain.ReasonQueryDispatched)
	return nil
}

func (e *Engine) beginTurn() {
	e.assembler.Begin()
	e.state.response = ""
	e.audioPlayed = false
	e.events.ResponseUpdated("")
}

func (e *Engine) onResponse(ev domain.ServerEvent) {
	if !ev.Done {
		if ev.Text == "" {
			return
		}
		if !e.assembler.TurnOpen() {
			e.audioPlayed = false
		}
		partial := e.assembler.Append(ev.Text)
		e.state.response = partial
		e.events.ResponseUpdated(partial)
		if e.state.status != domain.StatusSpeaking {
			e.setActivity(domain.StatusSpeaking, domain.ReasonResponseStreaming)
		}
		return
	}

	content, ok := e.assembler.Finish(ev.FullText)
	if !ok {
		e.log.Debug().Msg("dropping terminal response without an open turn")
		return
	}
	if content != "" {
		e.state.response = content
		e.events.ResponseUpdated(content)
		e.appendMessage(domain.RoleAssistant, content)
	}

	if ev.HasAudio && (e.playback != nil || !e.audioPlayed) {
		e.setActivity(domain.StatusSpeaking, domain.ReasonResponseComplete)
		return
	}
	e.openCooldown()
	e.setActivity(domain.StatusIdle, domain.ReasonResponseComplete)
}
