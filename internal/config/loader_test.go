// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tourcast.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := NewLoader("", "v1.2.3").Load()
	require.NoError(t, err)

	assert.Equal(t, "v1.2.3", cfg.Version)
	assert.Equal(t, "ffmpeg", filepath.Base(cfg.FFmpeg.Bin))
	assert.Equal(t, "ffprobe", filepath.Base(cfg.FFmpeg.FFprobeBin))
	assert.Equal(t, time.Minute, cfg.FFmpeg.StallTimeout)
	assert.Equal(t, TTSBackendHTTP, cfg.TTS.Backend)
	assert.True(t, cfg.Browser.Headless)
	assert.True(t, filepath.IsAbs(cfg.WorkRoot))
}

func TestLoad_FileThenEnvPrecedence(t *testing.T) {
	path := writeConfig(t, `
logLevel: debug
workRoot: /var/lib/tourcast
ffmpeg:
  bin: /opt/ffmpeg/bin/ffmpeg
  killGrace: 5s
  stallTimeout: 90s
tts:
  backend: offload
  offloadDir: /mnt/shared/tts
  pollInterval: 2s
browser:
  headless: false
`)
	t.Setenv(EnvWorkRoot, "/srv/tourcast")
	t.Setenv(EnvHeadless, "true")

	cfg, err := NewLoader(path, "dev").Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/srv/tourcast", cfg.WorkRoot, "env wins over file")
	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", cfg.FFmpeg.Bin)
	assert.Equal(t, 5*time.Second, cfg.FFmpeg.KillGrace)
	assert.Equal(t, 90*time.Second, cfg.FFmpeg.StallTimeout)
	assert.Equal(t, TTSBackendOffload, cfg.TTS.Backend)
	assert.Equal(t, "/mnt/shared/tts", cfg.TTS.OffloadDir)
	assert.Equal(t, 2*time.Second, cfg.TTS.PollInterval)
	assert.True(t, cfg.Browser.Headless, "env wins over file")
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "logLevel: info\nwokRoot: /tmp\n")

	_, err := NewLoader(path, "dev").Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownConfigField), "got %v", err)
}

func TestLoad_RejectsMultipleDocuments(t *testing.T) {
	path := writeConfig(t, "logLevel: info\n---\nlogLevel: debug\n")

	_, err := NewLoader(path, "dev").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple documents")
}

func TestLoad_RejectsNonYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tourcast.toml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o600))

	_, err := NewLoader(path, "dev").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config format")
}

func TestLoad_CommandFromEnv(t *testing.T) {
	t.Setenv(EnvTTSBackend, TTSBackendCommand)
	t.Setenv(EnvTTSCommand, "piper --model en_US")

	cfg, err := NewLoader("", "dev").Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"piper", "--model", "en_US"}, cfg.TTS.Command)
}

func TestValidate_CollectsAllViolations(t *testing.T) {
	cfg := Defaults()
	cfg.LogFormat = "xml"
	cfg.TTS.Backend = "carrier-pigeon"
	cfg.Telemetry.SamplingRate = 2

	err := Validate(cfg)
	require.Error(t, err)

	var fields []string
	for _, e := range err.(interface{ Unwrap() []error }).Unwrap() {
		var ve *ValidationError
		require.True(t, errors.As(e, &ve))
		fields = append(fields, ve.Field)
	}
	assert.ElementsMatch(t, []string{"logFormat", "tts.backend", "telemetry.samplingRate"}, fields)
}

func TestValidate_BackendRequirements(t *testing.T) {
	cfg := Defaults()
	cfg.TTS.Backend = TTSBackendOffload
	cfg.TTS.OffloadDir = ""

	var ve *ValidationError
	require.True(t, errors.As(Validate(cfg), &ve))
	assert.Equal(t, "tts.offloadDir", ve.Field)
}
