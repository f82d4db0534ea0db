// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/tourcast/internal/log"
)

// Prober inspects an encoded file.
type Prober interface {
	Probe(ctx context.Context, path string) (*StreamInfo, error)
}

// StreamInfo is the subset of ffprobe output used for verification.
type StreamInfo struct {
	Container string
	Duration  time.Duration // container duration
	Video     VideoStream
	Audio     AudioStream
}

type VideoStream struct {
	CodecName string
	Width     int
	Height    int
	PixFmt    string
	FPS       float64
	Duration  time.Duration
}

type AudioStream struct {
	CodecName  string
	SampleRate int
	Channels   int
	Duration   time.Duration
}

func (s *StreamInfo) HasVideo() bool { return s.Video.CodecName != "" }
func (s *StreamInfo) HasAudio() bool { return s.Audio.CodecName != "" }

// AVDrift is |video - audio| duration. Zero when either stream is missing.
func (s *StreamInfo) AVDrift() time.Duration {
	if !s.HasVideo() || !s.HasAudio() {
		return 0
	}
	d := s.Video.Duration - s.Audio.Duration
	if d < 0 {
		d = -d
	}
	return d
}

// FFprobe implements Prober with the ffprobe binary.
type FFprobe struct {
	Bin string
}

func NewFFprobe(bin string) *FFprobe {
	if bin == "" {
		bin = "ffprobe"
	}
	return &FFprobe{Bin: bin}
}

// Probe executes ffprobe and returns stream info.
func (p *FFprobe) Probe(ctx context.Context, path string) (*StreamInfo, error) {
	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	// #nosec G204 - binary comes from operator config; args are strictly controlled
	cmd := exec.CommandContext(ctx, p.Bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		errStr := stderr.String()
		if len(errStr) > 4096 {
			errStr = errStr[:4096] + "..."
		}
		return nil, fmt.Errorf("ffprobe %s failed: %w (stderr: %s)", path, err, errStr)
	}
	info, err := ParseProbeJSON(out)
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	log.L().Debug().
		Str(log.FieldPath, path).
		Float64(log.FieldDuration, info.Duration.Seconds()).
		Str(log.FieldCodec, info.Video.CodecName).
		Msg("probed media")
	return info, nil
}

// ParseProbeJSON decodes `ffprobe -print_format json -show_format -show_streams` output.
func ParseProbeJSON(out []byte) (*StreamInfo, error) {
	var data probeData
	if err := json.Unmarshal(out, &data); err != nil {
		return nil, fmt.Errorf("json decode: %w", err)
	}

	info := &StreamInfo{}
	for _, s := range data.Streams {
		switch s.CodecType {
		case "video":
			if info.HasVideo() {
				continue
			}
			info.Video = VideoStream{
				CodecName: s.CodecName,
				Width:     s.Width,
				Height:    s.Height,
				PixFmt:    s.PixFmt,
				FPS:       parseRate(s.AvgFrameRate),
				Duration:  parseSeconds(s.Duration),
			}
		case "audio":
			if info.HasAudio() {
				continue
			}
			sr, _ := strconv.Atoi(s.SampleRate)
			info.Audio = AudioStream{
				CodecName:  s.CodecName,
				SampleRate: sr,
				Channels:   s.Channels,
				Duration:   parseSeconds(s.Duration),
			}
		}
	}
	if !info.HasVideo() && !info.HasAudio() {
		return nil, fmt.Errorf("ffprobe returned empty data (no playable streams)")
	}

	info.Duration = parseSeconds(data.Format.Duration)
	// Some muxers omit per-stream durations; fall back to the container.
	if info.HasVideo() && info.Video.Duration == 0 {
		info.Video.Duration = info.Duration
	}
	if info.HasAudio() && info.Audio.Duration == 0 {
		info.Audio.Duration = info.Duration
	}

	parts := strings.Split(data.Format.FormatName, ",")
	info.Container = strings.TrimSpace(parts[0])
	return info, nil
}

func parseSeconds(s string) time.Duration {
	if s == "" || s == "N/A" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}

func parseRate(s string) float64 {
	if s == "" || s == "0/0" {
		return 0
	}
	num, den, ok := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !ok {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

type probeData struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		PixFmt       string `json:"pix_fmt,omitempty"`
		Duration     string `json:"duration,omitempty"`
		Width        int    `json:"width,omitempty"`
		Height       int    `json:"height,omitempty"`
		AvgFrameRate string `json:"avg_frame_rate,omitempty"`
		SampleRate   string `json:"sample_rate,omitempty"`
		Channels     int    `json:"channels,omitempty"`
	} `json:"streams"`
	Format struct {
		Duration   string `json:"duration"`
		FormatName string `json:"format_name"`
	} `json:"format"`
}
