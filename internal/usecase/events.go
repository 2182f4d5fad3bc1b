package usecase

import (
	"time"

	"zedvoice/internal/domain"
	"zedvoice/internal/ports"
)

// event is anything the engine loop reacts to.
type event any

type command struct {
	apply func() error
	reply chan error
}

type levelSampled struct {
	level float64
	at    time.Time
}

type deviceAcquired struct {
	err error
}

type captureFailed struct {
	err error
}

type connectionOpened struct {
	gen  int
	conn ports.Connection
}

type connectionFailed struct {
	gen int
	err error
}

type connectionClosed struct {
	gen int
	err error
}

type serverEvent struct {
	gen   int
	event domain.ServerEvent
}

type playbackFinished struct {
	gen int
	err error
}

func (e *Engine) handle(ev event) {
	switch ev := ev.(type) {
	case command:
		ev.reply <- ev.apply()
	case levelSampled:
		e.onLevel(ev.level, ev.at)
	case deviceAcquired:
		e.onDeviceAcquired(ev.err)
	case captureFailed:
		e.onDeviceFailed(ev.err)
	case connectionOpened:
		e.onConnectionOpened(ev.gen, ev.conn)
	case connectionFailed:
		e.onConnectionFailed(ev.gen, ev.err)
	case connectionClosed:
		e.onConnectionClosed(ev.gen, ev.err)
	case serverEvent:
		if ev.gen == e.connGen {
			e.onServerEvent(ev.event)
		}
	case playbackFinished:
		e.onPlaybackFinished(ev.gen, ev.err)
	default:
		e.log.Warn().Type("event", ev).Msg("unhandled engine event")
	}
}

// deviceSink feeds microphone frames to the level meter and any running
// recording, and reports capture failures back to the loop.
type deviceSink struct {
	e *Engine
}

func (s deviceSink) Frame(pcm []byte) {
	s.e.meter.Write(pcm)
	s.e.recording.Append(pcm)
}

func (s deviceSink) CaptureFailed(err error) {
	s.e.post(captureFailed{err: err})
}
