// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment keys.
const (
	EnvLogLevel       = "TOURCAST_LOG_LEVEL"
	EnvLogFormat      = "TOURCAST_LOG_FORMAT"
	EnvWorkRoot       = "TOURCAST_WORK_ROOT"
	EnvKeepWork       = "TOURCAST_KEEP_WORK"
	EnvFFmpegBin      = "TOURCAST_FFMPEG_BIN"
	EnvFFprobeBin     = "TOURCAST_FFPROBE_BIN"
	EnvKillGrace      = "TOURCAST_FFMPEG_KILL_GRACE"
	EnvStallTimeout   = "TOURCAST_FFMPEG_STALL_TIMEOUT"
	EnvChromePath     = "TOURCAST_CHROME_PATH"
	EnvHeadless       = "TOURCAST_HEADLESS"
	EnvLaunchTimeout  = "TOURCAST_BROWSER_LAUNCH_TIMEOUT"
	EnvTTSBackend     = "TOURCAST_TTS_BACKEND"
	EnvTTSEndpoint    = "TOURCAST_TTS_ENDPOINT"
	EnvTTSAPIKey      = "TOURCAST_TTS_API_KEY"
	EnvTTSCommand     = "TOURCAST_TTS_COMMAND"
	EnvTTSTimeout     = "TOURCAST_TTS_TIMEOUT"
	EnvOffloadDir     = "TOURCAST_TTS_OFFLOAD_DIR"
	EnvOffloadTimeout = "TOURCAST_TTS_OFFLOAD_TIMEOUT"
	EnvPollInterval   = "TOURCAST_TTS_POLL_INTERVAL"
	EnvLedgerPath     = "TOURCAST_LEDGER_PATH"
	EnvMetricsFile    = "TOURCAST_METRICS_TEXTFILE"
	EnvTelemetry      = "TOURCAST_TELEMETRY_ENABLED"
	EnvOTLPExporter   = "TOURCAST_OTLP_EXPORTER"
	EnvOTLPEndpoint   = "TOURCAST_OTLP_ENDPOINT"
	EnvTraceSampling  = "TOURCAST_TRACE_SAMPLING"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{} // Mechanical tracking of consumed keys
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envList(key string, defaultVal []string) []string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseList(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults
// It enforces Strict Validated Order: Parse File (Strict) -> Apply Env -> Validate
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := mergeFileConfig(&cfg, fileCfg); err != nil {
			return cfg, fmt.Errorf("merge file config: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)
	resolveBinaries(&cfg.FFmpeg, defaultLookPath)

	if abs, err := filepath.Abs(cfg.WorkRoot); err == nil {
		cfg.WorkRoot = abs
	}
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel:  "info",
		LogFormat: "json",
		WorkRoot:  filepath.Join(os.TempDir(), "tourcast"),
		FFmpeg: FFmpegConfig{
			Bin:       "ffmpeg",
			KillGrace:    3 * time.Second,
			StallTimeout: time.Minute,
		},
		Browser: BrowserConfig{
			Headless:      true,
			LaunchTimeout: 30 * time.Second,
		},
		TTS: TTSConfig{
			Backend:        TTSBackendHTTP,
			Endpoint:       "http://127.0.0.1:8880/v1/audio/speech",
			Timeout:        2 * time.Minute,
			OffloadTimeout: 30 * time.Minute,
			PollInterval:   10 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}

// loadFile loads configuration from a YAML file with STRICT parsing.
// Unknown fields will cause a fatal error to prevent misconfiguration.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // Reject unknown fields

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("strict config parse error: %w: %v", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}

	return &fileCfg, nil
}

func mergeFileConfig(cfg *AppConfig, f *FileConfig) error {
	setString(&cfg.LogLevel, f.LogLevel)
	setString(&cfg.LogFormat, f.LogFormat)
	setString(&cfg.WorkRoot, expandEnv(f.WorkRoot))
	if f.KeepWork != nil {
		cfg.KeepWork = *f.KeepWork
	}

	if f.FFmpeg != nil {
		setString(&cfg.FFmpeg.Bin, f.FFmpeg.Bin)
		setString(&cfg.FFmpeg.FFprobeBin, f.FFmpeg.FFprobeBin)
		if err := setDuration(&cfg.FFmpeg.KillGrace, "ffmpeg.killGrace", f.FFmpeg.KillGrace); err != nil {
			return err
		}
		if err := setDuration(&cfg.FFmpeg.StallTimeout, "ffmpeg.stallTimeout", f.FFmpeg.StallTimeout); err != nil {
			return err
		}
	}
	if f.Browser != nil {
		setString(&cfg.Browser.ChromePath, f.Browser.ChromePath)
		if f.Browser.Headless != nil {
			cfg.Browser.Headless = *f.Browser.Headless
		}
		if err := setDuration(&cfg.Browser.LaunchTimeout, "browser.launchTimeout", f.Browser.LaunchTimeout); err != nil {
			return err
		}
	}
	if f.TTS != nil {
		setString(&cfg.TTS.Backend, f.TTS.Backend)
		setString(&cfg.TTS.Endpoint, f.TTS.Endpoint)
		setString(&cfg.TTS.OffloadDir, expandEnv(f.TTS.OffloadDir))
		if len(f.TTS.Command) > 0 {
			cfg.TTS.Command = append([]string(nil), f.TTS.Command...)
		}
		for _, d := range []struct {
			dst   *time.Duration
			field string
			raw   string
		}{
			{&cfg.TTS.Timeout, "tts.timeout", f.TTS.Timeout},
			{&cfg.TTS.OffloadTimeout, "tts.offloadTimeout", f.TTS.OffloadTimeout},
			{&cfg.TTS.PollInterval, "tts.pollInterval", f.TTS.PollInterval},
		} {
			if err := setDuration(d.dst, d.field, d.raw); err != nil {
				return err
			}
		}
	}
	if f.Ledger != nil {
		setString(&cfg.Ledger.Path, expandEnv(f.Ledger.Path))
	}
	if f.Metrics != nil {
		setString(&cfg.Metrics.TextfilePath, expandEnv(f.Metrics.TextfilePath))
	}
	if f.Telemetry != nil {
		if f.Telemetry.Enabled != nil {
			cfg.Telemetry.Enabled = *f.Telemetry.Enabled
		}
		setString(&cfg.Telemetry.Exporter, f.Telemetry.Exporter)
		setString(&cfg.Telemetry.Endpoint, f.Telemetry.Endpoint)
		if f.Telemetry.SamplingRate != nil {
			cfg.Telemetry.SamplingRate = *f.Telemetry.SamplingRate
		}
	}
	return nil
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.LogLevel = l.envString(EnvLogLevel, cfg.LogLevel)
	cfg.LogFormat = l.envString(EnvLogFormat, cfg.LogFormat)
	cfg.WorkRoot = l.envString(EnvWorkRoot, cfg.WorkRoot)
	cfg.KeepWork = l.envBool(EnvKeepWork, cfg.KeepWork)

	cfg.FFmpeg.Bin = l.envString(EnvFFmpegBin, cfg.FFmpeg.Bin)
	cfg.FFmpeg.FFprobeBin = l.envString(EnvFFprobeBin, cfg.FFmpeg.FFprobeBin)
	cfg.FFmpeg.KillGrace = l.envDuration(EnvKillGrace, cfg.FFmpeg.KillGrace)
	cfg.FFmpeg.StallTimeout = l.envDuration(EnvStallTimeout, cfg.FFmpeg.StallTimeout)

	cfg.Browser.ChromePath = l.envString(EnvChromePath, cfg.Browser.ChromePath)
	cfg.Browser.Headless = l.envBool(EnvHeadless, cfg.Browser.Headless)
	cfg.Browser.LaunchTimeout = l.envDuration(EnvLaunchTimeout, cfg.Browser.LaunchTimeout)

	cfg.TTS.Backend = l.envString(EnvTTSBackend, cfg.TTS.Backend)
	cfg.TTS.Endpoint = l.envString(EnvTTSEndpoint, cfg.TTS.Endpoint)
	cfg.TTS.APIKey = l.envString(EnvTTSAPIKey, cfg.TTS.APIKey)
	cfg.TTS.Command = l.envList(EnvTTSCommand, cfg.TTS.Command)
	cfg.TTS.Timeout = l.envDuration(EnvTTSTimeout, cfg.TTS.Timeout)
	cfg.TTS.OffloadDir = l.envString(EnvOffloadDir, cfg.TTS.OffloadDir)
	cfg.TTS.OffloadTimeout = l.envDuration(EnvOffloadTimeout, cfg.TTS.OffloadTimeout)
	cfg.TTS.PollInterval = l.envDuration(EnvPollInterval, cfg.TTS.PollInterval)

	cfg.Ledger.Path = l.envString(EnvLedgerPath, cfg.Ledger.Path)
	cfg.Metrics.TextfilePath = l.envString(EnvMetricsFile, cfg.Metrics.TextfilePath)

	cfg.Telemetry.Enabled = l.envBool(EnvTelemetry, cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString(EnvOTLPExporter, cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString(EnvOTLPEndpoint, cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat(EnvTraceSampling, cfg.Telemetry.SamplingRate)
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, field, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return &ValidationError{Field: field, Value: raw, Reason: "invalid duration"}
	}
	*dst = d
	return nil
}

// expandEnv expands environment variables in the format ${VAR} or $VAR
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}
