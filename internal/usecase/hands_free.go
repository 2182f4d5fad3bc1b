package usecase

import (
	"errors"
	"time"

	"zedvoice/internal/audio"
	"zedvoice/internal/domain"
	"zedvoice/internal/vad"
)

type sampler struct {
	stop chan struct{}
	done chan struct{}
}

func systemTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// startSampler polls the level meter on a fixed period. Ticks are dropped
// rather than queued when the loop is busy.
func (e *Engine) startSampler() {
	if e.sampler != nil {
		return
	}
	s := &sampler{stop: make(chan struct{}), done: make(chan struct{})}
	e.sampler = s

	ticks, stopTicker := e.newTicker(e.cfg.VAD.SampleInterval)
	go func() {
		defer close(s.done)
		defer stopTicker()
		for {
			select {
			case <-s.stop:
				return
			case <-ticks:
				sample := levelSampled{level: e.meter.Sample(), at: e.clock()}
				select {
				case e.queue <- sample:
				default:
				}
			}
		}
	}()
}

// stopSampler returns once the sampler goroutine has exited.
func (e *Engine) stopSampler() {
	if e.sampler == nil {
		return
	}
	close(e.sampler.stop)
	<-e.sampler.done
	e.sampler = nil
}

func (e *Engine) enableHandsFree() {
	e.vad.Reset()
	e.ensureDevice()
	e.startSampler()
}

// disableHandsFree halts sampling and finalises any in-flight recording.
func (e *Engine) disableHandsFree() {
	e.stopSampler()
	e.vad.Reset()
	e.state.volume = 0
	if e.recording.Active() {
		e.finishRecording()
		return
	}
	if e.state.status == domain.StatusListening {
		e.setStatus(domain.StatusIdle, domain.ReasonModeChanged)
	}
}

func (e *Engine) onLevel(level float64, now time.Time) {
	if e.sampler == nil {
		return
	}
	e.state.volume = level
	e.events.LevelSampled(level)

	switch e.vad.Observe(level, now, e.canStartRecording(now)) {
	case vad.SpeechPending:
		e.setStatus(domain.StatusListening, domain.ReasonSpeechPending)
	case vad.FalseAlarm:
		if e.state.status == domain.StatusListening {
			e.setStatus(domain.StatusIdle, domain.ReasonFalseAlarm)
		}
	case vad.SpeechStarted:
		e.startRecording()
	case vad.SpeechEnded:
		e.finishRecording()
	}
}

// ensureDevice opens the shared microphone in the background. The result
// comes back as a deviceAcquired event.
func (e *Engine) ensureDevice() {
	if e.device != deviceReleased {
		return
	}
	e.device = deviceAcquiring
	done := make(chan struct{})
	e.acquireDone = done
	ctx := e.ctx

	go func() {
		err := e.mic.Acquire(ctx, deviceSink{e: e})
		close(done)
		e.post(deviceAcquired{err: err})
	}()
}

func (e *Engine) onDeviceAcquired(err error) {
	e.acquireDone = nil
	if err != nil {
		e.onDeviceFailed(err)
		return
	}
	if e.device == deviceAcquiring {
		e.device = deviceReady
	}
}

// onDeviceFailed drops back to push-to-talk. Recovery is an explicit retry.
func (e *Engine) onDeviceFailed(err error) {
	e.device = deviceReleased
	e.acquireDone = nil
	e.meter.Reset()
	discarded := e.recording.Discard()
	if e.state.mode == domain.ModeHandsFree {
		e.stopSampler()
		e.vad.Reset()
		e.state.mode = domain.ModePushToTalk
	}
	e.state.volume = 0

	detail := describeDeviceError(err)
	e.log.Error().Err(err).Bool("discarded_recording", discarded).Msg("microphone failed")
	e.reportError(domain.ErrorCodeDevice, detail)
	e.setStatus(domain.StatusError, domain.ReasonDeviceFailed)
}

func describeDeviceError(err error) string {
	switch {
	case errors.Is(err, audio.ErrPermissionDenied):
		return "microphone permission denied"
	case errors.Is(err, audio.ErrDeviceBusy):
		return "microphone is in use by another application"
	default:
		return err.Error()
	}
}

// startRecording is a no-op while a recording is already running.
func (e *Engine) startRecording() {
	e.ensureDevice()
	if !e.recording.Start(e.clock()) {
		return
	}
	e.log.Debug().Msg("recording started")
	e.setStatus(domain.StatusRecording, domain.ReasonRecordingStarted)
}

// finishRecording stops the recording and hands the utterance to the transport.
func (e *Engine) finishRecording() {
	utterance, err := e.recording.Stop()
	if errors.Is(err, ErrNotRecording) {
		return
	}
	e.vad.Reset()

	if utterance.Duration < e.cfg.MinUtteranceDuration {
		e.log.Debug().Dur("duration", utterance.Duration).Msg("utterance too short, discarded")
		e.setStatus(domain.StatusIdle, domain.ReasonUtteranceDiscarded)
		return
	}

	if err := e.sendAudio(utterance.WAV); err != nil {
		e.setStatus(domain.StatusIdle, domain.ReasonSendFailed)
		return
	}
	e.log.Info().Dur("duration", utterance.Duration).Int("bytes", len(utterance.WAV)).Msg("utterance sent")
	e.setStatus(domain.StatusProcessing, domain.ReasonUtteranceSent)
}
