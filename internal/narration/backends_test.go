// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package narration

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSynthesizer_WritesWAVAtomically(t *testing.T) {
	var got speechRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(SilentWAV(1500*time.Millisecond, 24000, 1))
	}))
	defer srv.Close()

	s := NewHTTPSynthesizer(srv.URL, "secret", 5*time.Second)
	path := filepath.Join(t.TempDir(), "step-intro.wav")
	asset, err := s.Synthesize(context.Background(), Request{
		StepID: "intro", Text: "Hello", Voice: "am_michael", Speed: 1.1, Language: "en-us", Path: path,
	})
	require.NoError(t, err)

	assert.Equal(t, 1500*time.Millisecond, asset.Duration)
	assert.Equal(t, "Hello", got.Input)
	assert.Equal(t, "wav", got.ResponseFormat)
	assert.FileExists(t, path)
}

func TestHTTPSynthesizer_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "voice not found", http.StatusBadRequest)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "step-a.wav")
	_, err := NewHTTPSynthesizer(srv.URL, "", time.Second).Synthesize(context.Background(), Request{StepID: "a", Path: path})

	var he *HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusBadRequest, he.Status)
	assert.NoFileExists(t, path)
}

func TestCommandSynthesizer_SubstitutesPlaceholders(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "fixture.wav")
	require.NoError(t, os.WriteFile(src, SilentWAV(time.Second, 24000, 1), 0o600))

	s := &CommandSynthesizer{Argv: []string{"cp", src, "{output}"}}
	path := filepath.Join(dir, "step-a.wav")
	asset, err := s.Synthesize(context.Background(), Request{StepID: "a", Text: "hi", Path: path})
	require.NoError(t, err)
	assert.Equal(t, time.Second, asset.Duration)

	argv := (&CommandSynthesizer{Argv: []string{"piper", "--speed={speed}"}}).argv(Request{Speed: 1.25, Path: "/o.wav"})
	assert.Equal(t, []string{"piper", "--speed=1.25", "/o.wav"}, argv)
}

func TestCommandSynthesizer_FailureCarriesStderr(t *testing.T) {
	s := &CommandSynthesizer{Argv: []string{"sh", "-c", "echo model not found >&2; exit 3", "tts"}}
	_, err := s.Synthesize(context.Background(), Request{StepID: "a", Path: filepath.Join(t.TempDir(), "x.wav")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
}

func TestReuse(t *testing.T) {
	dir := t.TempDir()
	path := AudioPath(dir, "intro")
	require.NoError(t, os.WriteFile(path, SilentWAV(2*time.Second, 24000, 1), 0o600))

	a, err := Reuse{}.Synthesize(context.Background(), Request{StepID: "intro", Path: path})
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, a.Duration)

	_, err = Reuse{}.Synthesize(context.Background(), Request{StepID: "x", Path: AudioPath(dir, "x")})
	assert.True(t, errors.Is(err, ErrMissingAudio))
}
