package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"zedvoice/internal/domain"
)

var errMalformedFrame = errors.New("malformed server frame")

type outboundMessage struct {
	Type       string `json:"type"`
	SampleRate int    `json:"sampleRate,omitempty"`
	Text       string `json:"text,omitempty"`
}

type inboundMessage struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Done     bool   `json:"done"`
	FullText string `json:"full_text"`
	HasAudio bool   `json:"has_audio"`
	Message  string `json:"message"`
	Mode     string `json:"mode"`
	Name     string `json:"name"`
}

func encodeConfig(sampleRate int) ([]byte, error) {
	return json.Marshal(outboundMessage{Type: "config", SampleRate: sampleRate})
}

func encodeText(text string) ([]byte, error) {
	return json.Marshal(outboundMessage{Type: "text", Text: text})
}

var pingFrame = []byte(`{"type":"ping"}`)

// decodeText turns one JSON text frame into a server event.
func decodeText(payload []byte) (domain.ServerEvent, error) {
	var msg inboundMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return domain.ServerEvent{}, fmt.Errorf("%w: %v", errMalformedFrame, err)
	}

	switch domain.ServerEventKind(strings.TrimSpace(msg.Type)) {
	case domain.EventTranscription:
		return domain.ServerEvent{Kind: domain.EventTranscription, Text: msg.Text}, nil
	case domain.EventResponse:
		return domain.ServerEvent{
			Kind:     domain.EventResponse,
			Text:     msg.Text,
			Done:     msg.Done,
			FullText: msg.FullText,
			HasAudio: msg.HasAudio,
		}, nil
	case domain.EventError:
		message := strings.TrimSpace(msg.Message)
		if message == "" {
			message = "reasoning service returned an unknown error"
		}
		return domain.ServerEvent{Kind: domain.EventError, Message: message}, nil
	case domain.EventStatus:
		mode := domain.ServerMode(strings.ToLower(strings.TrimSpace(msg.Mode)))
		if mode != domain.ServerModeAsleep && mode != domain.ServerModeAwake {
			return domain.ServerEvent{}, fmt.Errorf("%w: unknown status mode %q", errMalformedFrame, msg.Mode)
		}
		return domain.ServerEvent{Kind: domain.EventStatus, Mode: mode, Text: msg.Text}, nil
	case domain.EventAudioCue:
		return domain.ServerEvent{Kind: domain.EventAudioCue, Text: msg.Name}, nil
	case domain.EventConfigAck:
		return domain.ServerEvent{Kind: domain.EventConfigAck}, nil
	case domain.EventPong:
		return domain.ServerEvent{Kind: domain.EventPong}, nil
	case "":
		return domain.ServerEvent{}, fmt.Errorf("%w: missing type", errMalformedFrame)
	default:
		return domain.ServerEvent{}, fmt.Errorf("%w: unknown type %q", errMalformedFrame, msg.Type)
	}
}
