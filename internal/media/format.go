// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package media wraps the external encoder: canonical format, ffmpeg
// invocation, ffprobe inspection and argument builders.
package media

import (
	"fmt"

	"github.com/ManuGH/tourcast/internal/tour"
)

// CanonicalFormat is the single stream format every clip is normalized to
// before concatenation. Fixed for a run.
type CanonicalFormat struct {
	Width        int
	Height       int
	FPS          int
	PixelFormat  string
	VideoCodec   string
	Preset       string
	CRF          int
	AudioCodec   string
	AudioBitrate string
	SampleRate   int
	Channels     int
}

// FormatFromSpec derives the canonical format from the output block and viewport.
func FormatFromSpec(s *tour.Spec) CanonicalFormat {
	o := s.Output
	crf := tour.DefaultVideoCRF
	if o.VideoCRF != nil {
		crf = *o.VideoCRF
	}
	return CanonicalFormat{
		Width:        s.Settings.Viewport.Width,
		Height:       s.Settings.Viewport.Height,
		FPS:          o.FPS,
		PixelFormat:  o.PixelFormat,
		VideoCodec:   o.VideoCodec,
		Preset:       o.VideoPreset,
		CRF:          crf,
		AudioCodec:   o.AudioCodec,
		AudioBitrate: o.AudioBitrate,
		SampleRate:   o.SampleRate,
		Channels:     o.Channels,
	}
}

// ChannelLayout is the ffmpeg layout name for Channels.
func (f CanonicalFormat) ChannelLayout() string {
	if f.Channels == 2 {
		return "stereo"
	}
	return "mono"
}

// Resolution formats WxH.
func (f CanonicalFormat) Resolution() string {
	return fmt.Sprintf("%dx%d", f.Width, f.Height)
}

// Mismatch lists parameters of info that differ from f. Empty means the
// clip is concat-compatible.
func (f CanonicalFormat) Mismatch(info *StreamInfo) []string {
	var out []string
	check := func(name string, ok bool, got any) {
		if !ok {
			out = append(out, fmt.Sprintf("%s=%v", name, got))
		}
	}
	check("video", info.HasVideo(), "missing")
	check("audio", info.HasAudio(), "missing")
	if info.HasVideo() {
		check("video_codec", info.Video.CodecName == CodecName(f.VideoCodec), info.Video.CodecName)
		check("width", info.Video.Width == f.Width, info.Video.Width)
		check("height", info.Video.Height == f.Height, info.Video.Height)
		check("pix_fmt", info.Video.PixFmt == f.PixelFormat, info.Video.PixFmt)
		check("fps", roundFPS(info.Video.FPS) == f.FPS, info.Video.FPS)
	}
	if info.HasAudio() {
		check("audio_codec", info.Audio.CodecName == CodecName(f.AudioCodec), info.Audio.CodecName)
		check("sample_rate", info.Audio.SampleRate == f.SampleRate, info.Audio.SampleRate)
		check("channels", info.Audio.Channels == f.Channels, info.Audio.Channels)
	}
	return out
}

// encoderCodecs maps ffmpeg encoder names to the codec_name ffprobe reports
// for their output.
var encoderCodecs = map[string]string{
	"libx264":           "h264",
	"libopenh264":       "h264",
	"h264_nvenc":        "h264",
	"h264_qsv":          "h264",
	"h264_vaapi":        "h264",
	"h264_videotoolbox": "h264",
	"libx265":           "hevc",
	"hevc_nvenc":        "hevc",
	"hevc_qsv":          "hevc",
	"hevc_vaapi":        "hevc",
	"hevc_videotoolbox": "hevc",
	"libvpx":            "vp8",
	"libvpx-vp9":        "vp9",
	"libaom-av1":        "av1",
	"libsvtav1":         "av1",
	"librav1e":          "av1",
	"libfdk_aac":        "aac",
	"aac_at":            "aac",
	"libopus":           "opus",
	"libmp3lame":        "mp3",
	"libvorbis":         "vorbis",
}

// CodecName returns the ffprobe codec name produced by encoder. Encoders
// named after their codec (aac, flac, opus, pcm_*) map to themselves.
func CodecName(encoder string) string {
	if c, ok := encoderCodecs[encoder]; ok {
		return c
	}
	return encoder
}

func roundFPS(fps float64) int {
	return int(fps + 0.5)
}
