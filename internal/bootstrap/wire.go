package bootstrap

import (
	"fmt"

	"github.com/rs/zerolog"

	"zedvoice/internal/audio"
	"zedvoice/internal/config"
	"zedvoice/internal/domain"
	"zedvoice/internal/gate"
	"zedvoice/internal/logging"
	"zedvoice/internal/ports"
	"zedvoice/internal/rules"
	"zedvoice/internal/transport"
	"zedvoice/internal/usecase"
	"zedvoice/internal/vad"
)

// Services is the assembled runtime graph.
type Services struct {
	Engine *usecase.Engine
	Config config.Config
	Log    zerolog.Logger

	closeLog func() error
}

// Close flushes and closes the log file, if one was opened. The engine is
// closed separately by its owner.
func (s Services) Close() error {
	if s.closeLog == nil {
		return nil
	}
	return s.closeLog()
}

// Build loads configuration and wires all backend dependencies.
func Build(eventSink ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	log, closeLog, err := logging.New(logging.Config{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return Services{}, err
	}

	services, err := BuildWith(cfg, eventSink, log)
	if err != nil {
		_ = closeLog()
		return Services{}, err
	}
	services.closeLog = closeLog
	return services, nil
}

// BuildWith wires the engine from an already loaded configuration.
func BuildWith(cfg config.Config, eventSink ports.EventSink, log zerolog.Logger) (Services, error) {
	normalizer, err := rules.Load(cfg.Rules.Path, cfg.Rules.IterationLimit)
	if err != nil {
		return Services{}, fmt.Errorf("load substitution rules: %w", err)
	}
	log.Debug().Str("path", cfg.Rules.Path).Int("rules", normalizer.Len()).Msg("substitution rules loaded")

	microphone := audio.NewMicrophone(
		audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand),
		ports.AudioConfig{
			SampleRate:  cfg.Audio.SampleRate,
			Channels:    cfg.Audio.Channels,
			InputFormat: cfg.Audio.InputFormat,
			InputDevice: cfg.Audio.InputDevice,
		},
		cfg.Audio.ChunkSize,
		log,
	)

	engine := usecase.NewEngine(usecase.Dependencies{
		Microphone: microphone,
		Meter:      audio.NewLevelMeter(cfg.VAD.LevelWindow, cfg.VAD.LevelGain),
		Transport: transport.NewClient(transport.Config{
			URL:              cfg.Server.URL,
			HandshakeTimeout: cfg.Server.HandshakeTimeout,
			PingInterval:     cfg.Server.PingInterval,
		}, log),
		Player:     audio.NewFFPlayPlayer(cfg.Audio.PlayerCommand),
		Normalizer: normalizer,
		Events:     eventSink,
	}, usecase.Config{
		Mode:       domain.CaptureMode(cfg.Session.Mode),
		SampleRate: cfg.Audio.SampleRate,
		Channels:   cfg.Audio.Channels,
		VAD: vad.Config{
			Threshold:         cfg.VAD.Threshold,
			SpeechMinDuration: cfg.VAD.SpeechMin,
			SilenceDuration:   cfg.VAD.Silence,
			SampleInterval:    cfg.VAD.SampleInterval,
		},
		Gate: gate.Config{
			WakePhrases:    cfg.Gate.WakePhrases,
			EndPhrases:     cfg.Gate.EndPhrases,
			MinQueryLength: cfg.Gate.MinQueryLength,
		},
		Cooldown:             cfg.Session.Cooldown,
		MinUtteranceDuration: cfg.Session.MinUtteranceDuration,
	}, log)

	return Services{Engine: engine, Config: cfg, Log: log}, nil
}
