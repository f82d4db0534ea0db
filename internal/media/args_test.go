// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFormat() CanonicalFormat {
	return CanonicalFormat{
		Width: 1920, Height: 1080, FPS: 30, PixelFormat: "yuv420p",
		VideoCodec: "libx264", Preset: "medium", CRF: 20,
		AudioCodec: "aac", AudioBitrate: "192k", SampleRate: 24000, Channels: 1,
	}
}

func argValue(t *testing.T, args []string, flag string) string {
	t.Helper()
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	t.Fatalf("flag %s not found in %v", flag, args)
	return ""
}

func TestNormalizeArgs_StepClipPinsAudioFormat(t *testing.T) {
	args := NormalizeArgs(testFormat(), NormalizeRequest{
		Input:     "clips/step-intro.mkv",
		Narration: []AudioPlacement{{Path: "audio/step-intro.wav", Offset: 500 * time.Millisecond}},
		Duration:  4 * time.Second,
		Output:    "assembly/norm-000.mp4",
	})

	assert.Equal(t, "24000", argValue(t, args, "-ar"))
	assert.Equal(t, "1", argValue(t, args, "-ac"))
	assert.Contains(t, args, "-shortest")
	assert.Equal(t, "assembly/norm-000.mp4", args[len(args)-1])

	graph := argValue(t, args, "-filter_complex")
	assert.Contains(t, graph, "adelay=500:all=1")
	assert.Contains(t, graph, "trim=duration=4.000")
	assert.Contains(t, graph, "atrim=duration=4.000")
	assert.Contains(t, graph, "channel_layouts=mono")
	assert.NotContains(t, graph, "tpad", "normalization must never freeze frames")
	assert.NotContains(t, graph, "loudnorm")
}

func TestNormalizeArgs_ContinuousMixUsesAmix(t *testing.T) {
	args := NormalizeArgs(testFormat(), NormalizeRequest{
		Input: "clips/continuous.mkv",
		Narration: []AudioPlacement{
			{Path: "a.wav", Offset: 500 * time.Millisecond},
			{Path: "b.wav", Offset: 4500 * time.Millisecond},
		},
		Loudnorm: true,
		Output:   "out.mp4",
	})
	graph := argValue(t, args, "-filter_complex")
	assert.Contains(t, graph, "[n0][n1]amix=inputs=2:duration=longest:normalize=0[mix]")
	assert.Contains(t, graph, "adelay=4500:all=1")
	assert.Contains(t, graph, "loudnorm=")
	assert.NotContains(t, graph, "atrim", "untrimmed when no duration is given")
}

func TestNormalizeArgs_SilentOverlayGetsNullSource(t *testing.T) {
	args := NormalizeArgs(testFormat(), NormalizeRequest{Input: "intro.mp4", Output: "out.mp4"})
	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-f lavfi -i anullsrc=r=24000:cl=mono")
	assert.Contains(t, argValue(t, args, "-filter_complex"), "[1:a]apad[a]")
}

func TestNormalizeArgs_Deterministic(t *testing.T) {
	req := NormalizeRequest{Input: "in.mp4", SourceAudio: true, Output: "out.mp4"}
	assert.Equal(t, NormalizeArgs(testFormat(), req), NormalizeArgs(testFormat(), req))
}

func TestSlideArgs(t *testing.T) {
	args := SlideArgs(testFormat(), SlideRequest{
		Pattern: "slides/slide-%d.png", Start: 2, Count: 3,
		Advance: 4 * time.Second, Duration: 15 * time.Second, Output: "slides.mkv",
	})
	assert.Equal(t, "1000/4000", argValue(t, args, "-framerate"))
	assert.Equal(t, "2", argValue(t, args, "-start_number"))
	assert.Equal(t, "15.000", argValue(t, args, "-t"))
	assert.Contains(t, argValue(t, args, "-filter_complex"), "trim=end=12.000")
}

func TestConcatArgs_StreamCopy(t *testing.T) {
	args := ConcatArgs("list.txt", "final.tmp")
	assert.Equal(t, "copy", argValue(t, args, "-c"))
	assert.Equal(t, "concat", argValue(t, args, "-f"))
	assert.Equal(t, "mp4", args[len(args)-2])
}

func TestConcatList_EscapesQuotes(t *testing.T) {
	got := ConcatList([]string{"/w/a.mp4", "/w/it's.mp4"})
	assert.Equal(t, "file '/w/a.mp4'\nfile '/w/it'\\''s.mp4'\n", got)
}

func TestParseProbeJSON(t *testing.T) {
	out := []byte(`{
	  "streams": [
	    {"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080,
	     "pix_fmt": "yuv420p", "avg_frame_rate": "30/1", "duration": "8.000000"},
	    {"codec_type": "audio", "codec_name": "aac", "sample_rate": "24000", "channels": 1,
	     "duration": "7.980000"}
	  ],
	  "format": {"format_name": "mov,mp4,m4a,3gp,3g2,mj2", "duration": "8.000000"}
	}`)
	info, err := ParseProbeJSON(out)
	require.NoError(t, err)

	assert.Equal(t, "mov", info.Container)
	assert.Equal(t, 8*time.Second, info.Duration)
	assert.Equal(t, 24000, info.Audio.SampleRate)
	assert.InDelta(t, 0.02, info.AVDrift().Seconds(), 1e-6)
	assert.Empty(t, testFormat().Mismatch(info))

	info.Audio.SampleRate = 44100
	assert.Equal(t, []string{"sample_rate=44100"}, testFormat().Mismatch(info))
}

func TestMismatch_ComparesCodecs(t *testing.T) {
	info := &StreamInfo{
		Video: VideoStream{CodecName: "hevc", Width: 1920, Height: 1080, PixFmt: "yuv420p", FPS: 30},
		Audio: AudioStream{CodecName: "opus", SampleRate: 24000, Channels: 1},
	}
	assert.Equal(t, []string{"video_codec=hevc", "audio_codec=opus"}, testFormat().Mismatch(info))

	info.Video.CodecName, info.Audio.CodecName = "h264", "aac"
	assert.Empty(t, testFormat().Mismatch(info))
}

func TestCodecName(t *testing.T) {
	for encoder, want := range map[string]string{
		"libx264":    "h264",
		"libx265":    "hevc",
		"libvpx-vp9": "vp9",
		"libopus":    "opus",
		"aac":        "aac",
		"flac":       "flac",
	} {
		assert.Equal(t, want, CodecName(encoder), encoder)
	}
}

func TestParseProbeJSON_NoStreams(t *testing.T) {
	_, err := ParseProbeJSON([]byte(`{"streams": [], "format": {"format_name": "mp4"}}`))
	require.Error(t, err)
}
