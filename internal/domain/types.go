package domain

import "time"

// Status is the single externally visible session status.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusListening  Status = "listening"
	StatusRecording  Status = "recording"
	StatusProcessing Status = "processing"
	StatusSpeaking   Status = "speaking"
	StatusError      Status = "error"
)

// CaptureMode decides whether the VAD or the user starts recordings.
type CaptureMode string

const (
	ModePushToTalk CaptureMode = "push-to-talk"
	ModeHandsFree  CaptureMode = "hands-free"
)

// ParseCaptureMode accepts the canonical names plus a few short aliases.
func ParseCaptureMode(value string) (CaptureMode, bool) {
	switch value {
	case string(ModePushToTalk), "ptt", "push_to_talk":
		return ModePushToTalk, true
	case string(ModeHandsFree), "vad", "hands_free", "handsfree":
		return ModeHandsFree, true
	default:
		return "", false
	}
}

// ConversationState models whether utterances reach the reasoning service.
type ConversationState string

const (
	ConversationWaiting ConversationState = "waiting"
	ConversationActive  ConversationState = "active"
)

// StatusReason provides a structured reason for status transitions.
type StatusReason string

const (
	ReasonReady              StatusReason = "ready"
	ReasonSpeechPending      StatusReason = "speech_pending"
	ReasonFalseAlarm         StatusReason = "false_alarm"
	ReasonRecordingStarted   StatusReason = "recording_started"
	ReasonUtteranceSent      StatusReason = "utterance_sent"
	ReasonUtteranceDiscarded StatusReason = "utterance_discarded"
	ReasonSendFailed         StatusReason = "send_failed"
	ReasonTranscriptIgnored  StatusReason = "transcript_ignored"
	ReasonWakeAcknowledged   StatusReason = "wake_acknowledged"
	ReasonQueryDispatched    StatusReason = "query_dispatched"
	ReasonConversationEnded  StatusReason = "conversation_ended"
	ReasonResponseStreaming  StatusReason = "response_streaming"
	ReasonResponseComplete   StatusReason = "response_complete"
	ReasonPlaybackStarted    StatusReason = "playback_started"
	ReasonPlaybackFinished   StatusReason = "playback_finished"
	ReasonModeChanged        StatusReason = "mode_changed"
	ReasonCleared            StatusReason = "cleared"
	ReasonDeviceFailed       StatusReason = "device_failed"
	ReasonRemoteError        StatusReason = "remote_error"
)

// ErrorCode classifies errors surfaced to the presentation layer.
type ErrorCode string

const (
	ErrorCodeStartup   ErrorCode = "startup"
	ErrorCodeDevice    ErrorCode = "device"
	ErrorCodeTransport ErrorCode = "transport"
	ErrorCodeProtocol  ErrorCode = "protocol"
	ErrorCodeRemote    ErrorCode = "remote"
	ErrorCodePlayback  ErrorCode = "playback"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one immutable entry of the conversation log.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ServerEventKind enumerates inbound transport events.
type ServerEventKind string

const (
	EventTranscription ServerEventKind = "transcription"
	EventResponse      ServerEventKind = "response"
	EventAudio         ServerEventKind = "audio"
	EventError         ServerEventKind = "error"
	EventStatus        ServerEventKind = "status"
	EventAudioCue      ServerEventKind = "audio_cue"
	EventConfigAck     ServerEventKind = "config_ack"
	EventPong          ServerEventKind = "pong"
)

// ServerMode is the server's own conversation mode from status messages.
type ServerMode string

const (
	ServerModeAsleep ServerMode = "asleep"
	ServerModeAwake  ServerMode = "awake"
)

// ServerEvent is one decoded inbound message from the reasoning service.
type ServerEvent struct {
	Kind ServerEventKind

	// Text carries transcription text, a response token, or a status/cue label.
	Text     string
	Done     bool
	FullText string
	HasAudio bool
	Audio    []byte
	Message  string
	Mode     ServerMode
}

// Snapshot is the read-only view consumed by the presentation layer.
type Snapshot struct {
	Status            Status            `json:"status"`
	Mode              CaptureMode       `json:"mode"`
	ConversationState ConversationState `json:"conversationState"`
	Connected         bool              `json:"connected"`
	Transcription     string            `json:"transcription"`
	Response          string            `json:"response"`
	Error             string            `json:"error,omitempty"`
	Volume            float64           `json:"volume"`
	ChatHistory       []ChatMessage     `json:"chatHistory"`
}
