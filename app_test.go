package main

import (
	"context"
	"errors"
	"sync"
	"testing"

	"zedvoice/internal/domain"
)

type emitted struct {
	name string
	data interface{}
}

type recorder struct {
	mu     sync.Mutex
	events []emitted
}

func (r *recorder) emit(_ context.Context, name string, data ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var payload interface{}
	if len(data) > 0 {
		payload = data[0]
	}
	r.events = append(r.events, emitted{name: name, data: payload})
}

func TestStatusReasonMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.StatusReason]string{
		domain.ReasonReady:              "Ready",
		domain.ReasonSpeechPending:      "Listening...",
		domain.ReasonRecordingStarted:   "Recording",
		domain.ReasonUtteranceDiscarded: "Too short, discarded",
		domain.ReasonWakeAcknowledged:   "I'm listening",
		domain.ReasonConversationEnded:  "Conversation ended",
		domain.ReasonPlaybackStarted:    "Speaking",
		domain.ReasonDeviceFailed:       "Microphone unavailable",
	}

	for reason, want := range cases {
		reason := reason
		want := want
		t.Run(string(reason), func(t *testing.T) {
			t.Parallel()
			if got := statusReasonMessage(reason); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := statusReasonMessage("unknown"); got != "" {
		t.Fatalf("expected empty unknown reason message, got %q", got)
	}
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.ErrorCode]string{
		domain.ErrorCodeStartup:   "Startup failed",
		domain.ErrorCodeDevice:    "Microphone error",
		domain.ErrorCodeTransport: "Connection problem",
		domain.ErrorCodeProtocol:  "Unexpected server message",
		domain.ErrorCodePlayback:  "Playback failed",
	}
	for code, want := range cases {
		code := code
		want := want
		t.Run(string(code), func(t *testing.T) {
			t.Parallel()
			if got := errorMessage(code, "ignored"); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := errorMessage(domain.ErrorCodeRemote, "LLM unavailable"); got != "LLM unavailable" {
		t.Fatalf("remote errors should be shown verbatim, got %q", got)
	}
	if got := errorMessage("unknown", "detail"); got != "detail" {
		t.Fatalf("expected detail fallback, got %q", got)
	}
	if got := errorMessage("unknown", ""); got != "Unknown error" {
		t.Fatalf("expected unknown fallback, got %q", got)
	}
}

func TestRequireReady(t *testing.T) {
	t.Parallel()

	app := &App{}
	if err := app.requireReady(); err == nil {
		t.Fatalf("expected uninitialized error")
	}
	if err := app.SendText("hello"); err == nil {
		t.Fatalf("expected commands to fail before startup")
	}

	bootErr := errors.New("boot")
	app.bootErr = bootErr
	if err := app.requireReady(); !errors.Is(err, bootErr) {
		t.Fatalf("expected boot error, got %v", err)
	}
}

func TestGetSnapshotWhenNotInitialized(t *testing.T) {
	t.Parallel()

	app := &App{}
	snap := app.GetSnapshot()
	if snap.Status != domain.StatusIdle || snap.ChatHistory == nil {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	app.bootErr = errors.New("boot")
	snap = app.GetSnapshot()
	if snap.Status != domain.StatusError || snap.Error != "boot" {
		t.Fatalf("unexpected boot snapshot: %+v", snap)
	}
	if info := app.GetRuntimeInfo(); info["error"] != "boot" {
		t.Fatalf("unexpected runtime info: %v", info)
	}
}

func TestEventSinkEmitsNamedEvents(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	app := &App{ctx: context.Background(), emit: rec.emit}

	app.StatusChanged(domain.StatusRecording, domain.ReasonRecordingStarted)
	app.Transcription("hey zed")
	app.ResponseUpdated("Var")
	app.MessageAppended(domain.ChatMessage{ID: "1", Role: domain.RoleUser, Content: "hi"})
	app.LevelSampled(0.25)
	app.SessionError(domain.ErrorCodeRemote, "LLM unavailable")

	want := []string{eventStatus, eventTranscription, eventResponse, eventMessage, eventLevel, eventError}
	if len(rec.events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(rec.events))
	}
	for i, name := range want {
		if rec.events[i].name != name {
			t.Fatalf("event %d: expected %s, got %s", i, name, rec.events[i].name)
		}
	}

	status := rec.events[0].data.(map[string]string)
	if status["status"] != "recording" || status["message"] != "Recording" {
		t.Fatalf("unexpected status payload: %v", status)
	}
	errPayload := rec.events[5].data.(map[string]string)
	if errPayload["message"] != "LLM unavailable" || errPayload["code"] != "remote" {
		t.Fatalf("unexpected error payload: %v", errPayload)
	}
}

func TestEventSinkSilentWithoutContext(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	app := &App{emit: rec.emit}
	app.StatusChanged(domain.StatusIdle, domain.ReasonReady)
	if len(rec.events) != 0 {
		t.Fatalf("expected no events before startup, got %d", len(rec.events))
	}
}
