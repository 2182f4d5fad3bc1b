package main

import (
	"context"
	"fmt"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"zedvoice/internal/bootstrap"
	"zedvoice/internal/config"
	"zedvoice/internal/domain"
	"zedvoice/internal/usecase"
)

const (
	eventStatus        = "zed:status"
	eventTranscription = "zed:transcription"
	eventResponse      = "zed:response"
	eventMessage       = "zed:message"
	eventLevel         = "zed:level"
	eventError         = "zed:error"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	engine   *usecase.Engine
	services bootstrap.Services
	cfg      config.Config
	bootErr  error

	emit func(ctx context.Context, name string, data ...interface{})
}

func NewApp() *App {
	return &App{emit: runtime.EventsEmit}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}
	a.services = services
	a.cfg = services.Config
	a.engine = services.Engine

	if err := a.engine.Start(ctx); err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
	}
}

func (a *App) shutdown(context.Context) {
	if a.engine != nil {
		if err := a.engine.Close(); err != nil {
			a.services.Log.Warn().Err(err).Msg("engine close failed")
		}
	}
	_ = a.services.Close()
}

// StartRecording begins a push-to-talk recording.
func (a *App) StartRecording() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.engine.StartRecording()
}

// StopRecording sends the current recording.
func (a *App) StopRecording() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.engine.StopRecording()
}

func (a *App) ToggleRecording() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.engine.ToggleRecording()
}

// SetMode switches capture mode; accepts "push-to-talk" or "hands-free".
func (a *App) SetMode(mode string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	parsed, ok := domain.ParseCaptureMode(mode)
	if !ok {
		return fmt.Errorf("unknown capture mode %q", mode)
	}
	return a.engine.SetMode(parsed)
}

// SendText sends typed text straight to the reasoning service.
func (a *App) SendText(text string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.engine.SendText(text)
}

func (a *App) Clear() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.engine.Clear()
}

func (a *App) Reconnect() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.engine.Reconnect()
}

// GetSnapshot returns the current session state.
func (a *App) GetSnapshot() domain.Snapshot {
	if a.engine == nil {
		snap := domain.Snapshot{
			Status:            domain.StatusIdle,
			Mode:              domain.ModePushToTalk,
			ConversationState: domain.ConversationWaiting,
			ChatHistory:       []domain.ChatMessage{},
		}
		if a.bootErr != nil {
			snap.Status = domain.StatusError
			snap.Error = a.bootErr.Error()
		}
		return snap
	}
	return a.engine.Snapshot()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"server":           a.cfg.Server.URL,
		"mode":             a.cfg.Session.Mode,
		"rulesFile":        a.cfg.Rules.Path,
		"configFile":       a.cfg.File,
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
		"vadThreshold":     fmt.Sprintf("%.2f", a.cfg.VAD.Threshold),
		"silence":          a.cfg.VAD.Silence.String(),
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.engine == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

func (a *App) send(name string, data interface{}) {
	if a.ctx == nil || a.emit == nil {
		return
	}
	a.emit(a.ctx, name, data)
}

// StatusChanged emits status transitions to the frontend.
func (a *App) StatusChanged(status domain.Status, reason domain.StatusReason) {
	a.send(eventStatus, map[string]string{
		"status":  string(status),
		"reason":  string(reason),
		"message": statusReasonMessage(reason),
	})
}

func (a *App) Transcription(text string) {
	a.send(eventTranscription, map[string]string{"text": text})
}

// ResponseUpdated emits the partial reply; empty text clears it.
func (a *App) ResponseUpdated(partial string) {
	a.send(eventResponse, map[string]string{"text": partial})
}

func (a *App) MessageAppended(message domain.ChatMessage) {
	a.send(eventMessage, message)
}

func (a *App) LevelSampled(level float64) {
	a.send(eventLevel, map[string]float64{"level": level})
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	a.send(eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func statusReasonMessage(reason domain.StatusReason) string {
	switch reason {
	case domain.ReasonReady:
		return "Ready"
	case domain.ReasonSpeechPending:
		return "Listening..."
	case domain.ReasonRecordingStarted:
		return "Recording"
	case domain.ReasonUtteranceSent:
		return "Thinking..."
	case domain.ReasonUtteranceDiscarded:
		return "Too short, discarded"
	case domain.ReasonSendFailed:
		return "Not connected"
	case domain.ReasonTranscriptIgnored:
		return "Say \"hey Zed\" to start"
	case domain.ReasonWakeAcknowledged:
		return "I'm listening"
	case domain.ReasonQueryDispatched:
		return "Thinking..."
	case domain.ReasonConversationEnded:
		return "Conversation ended"
	case domain.ReasonResponseStreaming, domain.ReasonPlaybackStarted:
		return "Speaking"
	case domain.ReasonDeviceFailed:
		return "Microphone unavailable"
	case domain.ReasonRemoteError:
		return "Server error"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeDevice:
		return "Microphone error"
	case domain.ErrorCodeTransport:
		return "Connection problem"
	case domain.ErrorCodeProtocol:
		return "Unexpected server message"
	case domain.ErrorCodeRemote:
		// Remote errors are already user-facing.
		if detail != "" {
			return detail
		}
		return "Server error"
	case domain.ErrorCodePlayback:
		return "Playback failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
