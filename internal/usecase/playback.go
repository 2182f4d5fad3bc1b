package usecase

import (
	"context"
	"errors"

	"zedvoice/internal/domain"
)

type playback struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// startPlayback plays a reply, replacing anything still playing. Status stays
// speaking until the player reports back.
func (e *Engine) startPlayback(audio []byte) {
	e.stopPlayback(false)
	if len(audio) == 0 {
		return
	}

	e.playbackGen++
	gen := e.playbackGen
	ctx, cancel := context.WithCancel(e.ctx)
	p := &playback{cancel: cancel, done: make(chan struct{})}
	e.playback = p
	e.audioPlayed = true
	e.setActivity(domain.StatusSpeaking, domain.ReasonPlaybackStarted)
	e.log.Debug().Int("bytes", len(audio)).Msg("playback started")

	go func() {
		err := e.player.Play(ctx, audio)
		close(p.done)
		e.post(playbackFinished{gen: gen, err: err})
	}()
}

// stopPlayback cancels the current playback; wait blocks until the player exits.
func (e *Engine) stopPlayback(wait bool) {
	p := e.playback
	if p == nil {
		return
	}
	e.playback = nil
	e.playbackGen++
	p.cancel()
	if wait {
		<-p.done
	}
}

// onPlaybackFinished opens the cooldown whether or not the player succeeded.
func (e *Engine) onPlaybackFinished(gen int, err error) {
	if gen != e.playbackGen {
		return
	}
	if e.playback != nil {
		e.playback.cancel()
		e.playback = nil
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		e.log.Warn().Err(err).Msg("playback failed")
		e.reportError(domain.ErrorCodePlayback, err.Error())
	}
	e.openCooldown()
	if e.assembler.TurnOpen() {
		return
	}
	e.setActivity(domain.StatusIdle, domain.ReasonPlaybackFinished)
}
