// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package narration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/renameio/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ManuGH/tourcast/internal/log"
)

// maxAudioBytes bounds a single synthesized response.
const maxAudioBytes = 256 << 20

// HTTPSynthesizer talks to a speech endpoint that returns WAV bytes.
type HTTPSynthesizer struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
}

// NewHTTPSynthesizer builds a client with a traced transport.
func NewHTTPSynthesizer(endpoint, apiKey string, timeout time.Duration) *HTTPSynthesizer {
	return &HTTPSynthesizer{
		Endpoint: endpoint,
		APIKey:   apiKey,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (s *HTTPSynthesizer) Name() string { return "http" }

type speechRequest struct {
	Input          string  `json:"input"`
	Voice          string  `json:"voice,omitempty"`
	Speed          float64 `json:"speed,omitempty"`
	Language       string  `json:"language,omitempty"`
	ResponseFormat string  `json:"response_format"`
}

// HTTPError is a non-2xx response from the speech endpoint.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("speech endpoint returned %d: %s", e.Status, e.Body)
}

func (s *HTTPSynthesizer) Synthesize(ctx context.Context, req Request) (Asset, error) {
	body, err := json.Marshal(speechRequest{
		Input:          req.Text,
		Voice:          req.Voice,
		Speed:          req.Speed,
		Language:       req.Language,
		ResponseFormat: "wav",
	})
	if err != nil {
		return Asset{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Asset{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/wav")
	if s.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	resp, err := s.Client.Do(httpReq)
	if err != nil {
		return Asset{}, fmt.Errorf("speech request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Asset{}, &HTTPError{Status: resp.StatusCode, Body: string(snippet)}
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return Asset{}, fmt.Errorf("read speech response: %w", err)
	}
	d, err := WAVDurationBytes(audio)
	if err != nil {
		return Asset{}, err
	}
	if d <= 0 {
		return Asset{}, ErrEmptyAudio
	}
	if err := renameio.WriteFile(req.Path, audio, 0o644); err != nil {
		return Asset{}, fmt.Errorf("write %s: %w", req.Path, err)
	}

	log.FromContext(ctx).Debug().
		Str(log.FieldStepID, req.StepID).
		Float64(log.FieldDuration, d.Seconds()).
		Int("bytes", len(audio)).
		Msg("narration synthesized")
	return Asset{StepID: req.StepID, Path: req.Path, Duration: d}, nil
}
