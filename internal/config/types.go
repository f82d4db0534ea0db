// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// TTS backends.
const (
	TTSBackendHTTP    = "http"
	TTSBackendCommand = "command"
	TTSBackendOffload = "offload"
	TTSBackendReuse   = "reuse"
)

// AppConfig is the effective, validated operator configuration.
type AppConfig struct {
	Version   string
	LogLevel  string
	LogFormat string // json | console

	// WorkRoot holds one directory per run (audio, clips, assembly).
	WorkRoot string
	KeepWork bool

	FFmpeg    FFmpegConfig
	Browser   BrowserConfig
	TTS       TTSConfig
	Ledger    LedgerConfig
	Metrics   MetricsConfig
	Telemetry TelemetryConfig
}

type FFmpegConfig struct {
	Bin        string
	FFprobeBin string
	KillGrace  time.Duration
	// StallTimeout terminates an encode that stops making progress. Zero disables.
	StallTimeout time.Duration
}

type BrowserConfig struct {
	ChromePath    string
	Headless      bool
	LaunchTimeout time.Duration
}

type TTSConfig struct {
	Backend  string
	Endpoint string
	APIKey   string
	Command  []string
	Timeout  time.Duration

	OffloadDir     string
	OffloadTimeout time.Duration
	PollInterval   time.Duration
}

type LedgerConfig struct {
	// Path to the SQLite run ledger. Empty disables the ledger.
	Path string
}

type MetricsConfig struct {
	// TextfilePath receives a node-exporter textfile at run end. Empty disables.
	TextfilePath string
}

type TelemetryConfig struct {
	Enabled      bool
	Exporter     string
	Endpoint     string
	SamplingRate float64
}

// FileConfig is the on-disk YAML shape. Pointers distinguish unset from zero.
type FileConfig struct {
	LogLevel  string `yaml:"logLevel,omitempty"`
	LogFormat string `yaml:"logFormat,omitempty"`
	WorkRoot  string `yaml:"workRoot,omitempty"`
	KeepWork  *bool  `yaml:"keepWork,omitempty"`

	FFmpeg *struct {
		Bin          string `yaml:"bin,omitempty"`
		FFprobeBin   string `yaml:"ffprobeBin,omitempty"`
		KillGrace    string `yaml:"killGrace,omitempty"`
		StallTimeout string `yaml:"stallTimeout,omitempty"`
	} `yaml:"ffmpeg,omitempty"`

	Browser *struct {
		ChromePath    string `yaml:"chromePath,omitempty"`
		Headless      *bool  `yaml:"headless,omitempty"`
		LaunchTimeout string `yaml:"launchTimeout,omitempty"`
	} `yaml:"browser,omitempty"`

	TTS *struct {
		Backend        string   `yaml:"backend,omitempty"`
		Endpoint       string   `yaml:"endpoint,omitempty"`
		Command        []string `yaml:"command,omitempty"`
		Timeout        string   `yaml:"timeout,omitempty"`
		OffloadDir     string   `yaml:"offloadDir,omitempty"`
		OffloadTimeout string   `yaml:"offloadTimeout,omitempty"`
		PollInterval   string   `yaml:"pollInterval,omitempty"`
	} `yaml:"tts,omitempty"`

	Ledger *struct {
		Path string `yaml:"path,omitempty"`
	} `yaml:"ledger,omitempty"`

	Metrics *struct {
		TextfilePath string `yaml:"textfilePath,omitempty"`
	} `yaml:"metrics,omitempty"`

	Telemetry *struct {
		Enabled      *bool    `yaml:"enabled,omitempty"`
		Exporter     string   `yaml:"exporter,omitempty"`
		Endpoint     string   `yaml:"endpoint,omitempty"`
		SamplingRate *float64 `yaml:"samplingRate,omitempty"`
	} `yaml:"telemetry,omitempty"`
}
