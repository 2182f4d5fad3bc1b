package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

type effective struct {
	Server struct {
		URL              string `yaml:"url"`
		HandshakeTimeout string `yaml:"handshake_timeout"`
		PingInterval     string `yaml:"ping_interval"`
	} `yaml:"server"`
	Audio struct {
		RecorderCommand string `yaml:"recorder_command"`
		PlayerCommand   string `yaml:"player_command"`
		InputFormat     string `yaml:"input_format"`
		InputDevice     string `yaml:"input_device"`
		SampleRate      int    `yaml:"sample_rate"`
		Channels        int    `yaml:"channels"`
		ChunkSize       int    `yaml:"chunk_size"`
	} `yaml:"audio"`
	VAD struct {
		Threshold      float64 `yaml:"threshold"`
		SpeechMin      string  `yaml:"speech_min"`
		Silence        string  `yaml:"silence"`
		SampleInterval string  `yaml:"sample_interval"`
		LevelGain      float64 `yaml:"level_gain"`
		LevelWindow    int     `yaml:"level_window"`
	} `yaml:"vad"`
	Session struct {
		Mode                 string `yaml:"mode"`
		Cooldown             string `yaml:"cooldown"`
		MinUtteranceDuration string `yaml:"min_utterance"`
	} `yaml:"session"`
	Gate struct {
		WakePhrases    []string `yaml:"wake_phrases,omitempty"`
		EndPhrases     []string `yaml:"end_phrases,omitempty"`
		MinQueryLength int      `yaml:"min_query_length"`
	} `yaml:"gate"`
	Rules struct {
		Path           string `yaml:"path"`
		IterationLimit int    `yaml:"iteration_limit"`
	} `yaml:"rules"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file,omitempty"`
	} `yaml:"log"`
}

// MarshalYAML renders the config in the same shape the config file takes,
// with durations as strings so the output can be read back.
func (c Config) MarshalYAML() (any, error) {
	var out effective
	out.Server.URL = c.Server.URL
	out.Server.HandshakeTimeout = duration(c.Server.HandshakeTimeout)
	out.Server.PingInterval = duration(c.Server.PingInterval)

	out.Audio.RecorderCommand = c.Audio.RecorderCommand
	out.Audio.PlayerCommand = c.Audio.PlayerCommand
	out.Audio.InputFormat = c.Audio.InputFormat
	out.Audio.InputDevice = c.Audio.InputDevice
	out.Audio.SampleRate = c.Audio.SampleRate
	out.Audio.Channels = c.Audio.Channels
	out.Audio.ChunkSize = c.Audio.ChunkSize

	out.VAD.Threshold = c.VAD.Threshold
	out.VAD.SpeechMin = duration(c.VAD.SpeechMin)
	out.VAD.Silence = duration(c.VAD.Silence)
	out.VAD.SampleInterval = duration(c.VAD.SampleInterval)
	out.VAD.LevelGain = c.VAD.LevelGain
	out.VAD.LevelWindow = c.VAD.LevelWindow

	out.Session.Mode = c.Session.Mode
	out.Session.Cooldown = duration(c.Session.Cooldown)
	out.Session.MinUtteranceDuration = duration(c.Session.MinUtteranceDuration)

	out.Gate.WakePhrases = c.Gate.WakePhrases
	out.Gate.EndPhrases = c.Gate.EndPhrases
	out.Gate.MinQueryLength = c.Gate.MinQueryLength

	out.Rules.Path = c.Rules.Path
	out.Rules.IterationLimit = c.Rules.IterationLimit

	out.Log.Level = c.Log.Level
	out.Log.File = c.Log.File
	return out, nil
}

// YAML returns the effective configuration as a YAML document.
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

func duration(d time.Duration) string {
	return d.String()
}
