// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"strings"

	"github.com/rs/zerolog"
)

// Validate checks the effective configuration. All violations are joined.
func Validate(cfg AppConfig) error {
	var errs []error
	add := func(field string, value any, reason string) {
		errs = append(errs, &ValidationError{Field: field, Value: value, Reason: reason})
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err != nil {
		add("logLevel", cfg.LogLevel, "unknown log level")
	}
	switch cfg.LogFormat {
	case "json", "console":
	default:
		add("logFormat", cfg.LogFormat, "must be json or console")
	}
	if strings.TrimSpace(cfg.WorkRoot) == "" {
		add("workRoot", cfg.WorkRoot, "must not be empty")
	}
	if strings.TrimSpace(cfg.FFmpeg.Bin) == "" {
		add("ffmpeg.bin", cfg.FFmpeg.Bin, "must not be empty")
	}
	if cfg.FFmpeg.KillGrace <= 0 {
		add("ffmpeg.killGrace", cfg.FFmpeg.KillGrace, "must be positive")
	}
	if cfg.FFmpeg.StallTimeout < 0 {
		add("ffmpeg.stallTimeout", cfg.FFmpeg.StallTimeout, "must not be negative")
	}
	if cfg.Browser.LaunchTimeout <= 0 {
		add("browser.launchTimeout", cfg.Browser.LaunchTimeout, "must be positive")
	}

	switch cfg.TTS.Backend {
	case TTSBackendHTTP:
		if cfg.TTS.Endpoint == "" {
			add("tts.endpoint", cfg.TTS.Endpoint, "required for http backend")
		}
	case TTSBackendCommand:
		if len(cfg.TTS.Command) == 0 {
			add("tts.command", cfg.TTS.Command, "required for command backend")
		}
	case TTSBackendOffload:
		if cfg.TTS.OffloadDir == "" {
			add("tts.offloadDir", cfg.TTS.OffloadDir, "required for offload backend")
		}
		if cfg.TTS.PollInterval <= 0 {
			add("tts.pollInterval", cfg.TTS.PollInterval, "must be positive")
		}
	case TTSBackendReuse:
	default:
		add("tts.backend", cfg.TTS.Backend, "must be one of http, command, offload, reuse")
	}
	if cfg.TTS.Timeout <= 0 {
		add("tts.timeout", cfg.TTS.Timeout, "must be positive")
	}

	if cfg.Telemetry.Enabled {
		switch cfg.Telemetry.Exporter {
		case "grpc", "http":
		default:
			add("telemetry.exporter", cfg.Telemetry.Exporter, "must be grpc or http")
		}
	}
	if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
		add("telemetry.samplingRate", cfg.Telemetry.SamplingRate, "must be within [0,1]")
	}
	return errors.Join(errs...)
}
