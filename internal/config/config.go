package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"zedvoice/internal/domain"
)

const (
	envPrefix     = "ZED"
	configEnvVar  = "ZED_CONFIG"
	appDirName    = "zedvoice"
	rulesFileName = "substitutions.rules"
)

// Config stores runtime configuration for the voice client.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Audio   AudioConfig   `mapstructure:"audio"`
	VAD     VADConfig     `mapstructure:"vad"`
	Session SessionConfig `mapstructure:"session"`
	Gate    GateConfig    `mapstructure:"gate"`
	Rules   RulesConfig   `mapstructure:"rules"`
	Log     LogConfig     `mapstructure:"log"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

type ServerConfig struct {
	URL              string        `mapstructure:"url"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	PingInterval     time.Duration `mapstructure:"ping_interval"`
}

type AudioConfig struct {
	RecorderCommand string `mapstructure:"recorder_command"`
	PlayerCommand   string `mapstructure:"player_command"`
	InputFormat     string `mapstructure:"input_format"`
	InputDevice     string `mapstructure:"input_device"`
	SampleRate      int    `mapstructure:"sample_rate"`
	Channels        int    `mapstructure:"channels"`
	ChunkSize       int    `mapstructure:"chunk_size"`
}

type VADConfig struct {
	Threshold      float64       `mapstructure:"threshold"`
	SpeechMin      time.Duration `mapstructure:"speech_min"`
	Silence        time.Duration `mapstructure:"silence"`
	SampleInterval time.Duration `mapstructure:"sample_interval"`
	LevelGain      float64       `mapstructure:"level_gain"`
	LevelWindow    int           `mapstructure:"level_window"`
}

type SessionConfig struct {
	Mode                 string        `mapstructure:"mode"`
	Cooldown             time.Duration `mapstructure:"cooldown"`
	MinUtteranceDuration time.Duration `mapstructure:"min_utterance"`
}

type GateConfig struct {
	WakePhrases    []string `mapstructure:"wake_phrases"`
	EndPhrases     []string `mapstructure:"end_phrases"`
	MinQueryLength int      `mapstructure:"min_query_length"`
}

type RulesConfig struct {
	Path           string `mapstructure:"path"`
	IterationLimit int    `mapstructure:"iteration_limit"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Options adjusts where Load looks for its inputs.
type Options struct {
	// ConfigFile overrides ZED_CONFIG and the default location.
	ConfigFile string
	// EnvFiles are dotenv files loaded before reading the environment.
	// Missing files are skipped. Defaults to .env.
	EnvFiles []string
}

// Load resolves configuration from defaults, an optional YAML file, dotenv
// files and ZED_* environment variables, in increasing priority.
func Load() (Config, error) {
	return LoadWith(Options{})
}

func LoadWith(opts Options) (Config, error) {
	if err := loadDotenv(opts.EnvFiles); err != nil {
		return Config{}, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}
	appDir := filepath.Join(home, ".config", appDirName)

	v := viper.New()
	setDefaults(v, appDir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	file := firstNonEmpty(opts.ConfigFile, os.Getenv(configEnvVar))
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(appDir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	cfg.sanitize()
	return cfg, nil
}

func loadDotenv(files []string) error {
	if files == nil {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper, appDir string) {
	v.SetDefault("server.url", "ws://localhost:8000/ws")
	v.SetDefault("server.handshake_timeout", 10*time.Second)
	v.SetDefault("server.ping_interval", 20*time.Second)

	v.SetDefault("audio.recorder_command", "ffmpeg")
	v.SetDefault("audio.player_command", "ffplay")
	v.SetDefault("audio.input_format", "pulse")
	v.SetDefault("audio.input_device", "default")
	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.channels", 1)
	v.SetDefault("audio.chunk_size", 3200)

	v.SetDefault("vad.threshold", 0.08)
	v.SetDefault("vad.speech_min", 150*time.Millisecond)
	v.SetDefault("vad.silence", 1500*time.Millisecond)
	v.SetDefault("vad.sample_interval", 50*time.Millisecond)
	v.SetDefault("vad.level_gain", 4.0)
	v.SetDefault("vad.level_window", 1600)

	v.SetDefault("session.mode", "push-to-talk")
	v.SetDefault("session.cooldown", 2*time.Second)
	v.SetDefault("session.min_utterance", 250*time.Millisecond)

	// Phrase lists are left empty so the gate falls back to its built-in lists.
	v.SetDefault("gate.wake_phrases", []string{})
	v.SetDefault("gate.end_phrases", []string{})
	v.SetDefault("gate.min_query_length", 3)

	v.SetDefault("rules.path", filepath.Join(appDir, rulesFileName))
	v.SetDefault("rules.iteration_limit", 30)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

func (c *Config) sanitize() {
	c.Server.URL = strings.TrimSpace(c.Server.URL)
	if c.Server.URL == "" {
		c.Server.URL = "ws://localhost:8000/ws"
	}
	if c.Server.HandshakeTimeout <= 0 {
		c.Server.HandshakeTimeout = 10 * time.Second
	}
	if c.Server.PingInterval <= 0 {
		c.Server.PingInterval = 20 * time.Second
	}

	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.Channels <= 0 {
		c.Audio.Channels = 1
	}
	if c.Audio.ChunkSize < 256 {
		c.Audio.ChunkSize = 3200
	}

	if c.VAD.Threshold <= 0 || c.VAD.Threshold > 1 {
		c.VAD.Threshold = 0.08
	}
	if c.VAD.SpeechMin < 0 {
		c.VAD.SpeechMin = 150 * time.Millisecond
	}
	if c.VAD.Silence <= 0 {
		c.VAD.Silence = 1500 * time.Millisecond
	}
	if c.VAD.SampleInterval <= 0 {
		c.VAD.SampleInterval = 50 * time.Millisecond
	}
	if c.VAD.LevelGain <= 0 {
		c.VAD.LevelGain = 4
	}
	if c.VAD.LevelWindow <= 0 {
		c.VAD.LevelWindow = 1600
	}

	mode, ok := domain.ParseCaptureMode(strings.ToLower(strings.TrimSpace(c.Session.Mode)))
	if !ok {
		mode = domain.ModePushToTalk
	}
	c.Session.Mode = string(mode)
	if c.Session.Cooldown < 0 {
		c.Session.Cooldown = 2 * time.Second
	}
	if c.Session.MinUtteranceDuration < 0 {
		c.Session.MinUtteranceDuration = 250 * time.Millisecond
	}

	c.Gate.WakePhrases = trimAll(c.Gate.WakePhrases)
	c.Gate.EndPhrases = trimAll(c.Gate.EndPhrases)
	if c.Gate.MinQueryLength <= 0 {
		c.Gate.MinQueryLength = 3
	}

	if c.Rules.IterationLimit <= 0 {
		c.Rules.IterationLimit = 30
	}

	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
