// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AudioPlacement positions one narration file on a clip's timeline.
type AudioPlacement struct {
	Path   string
	Offset time.Duration
}

// NormalizeRequest describes one clip re-encode to the canonical format.
type NormalizeRequest struct {
	Input string
	// Narration is mixed at the given offsets. Empty means the clip keeps its
	// own audio (SourceAudio) or gets generated silence.
	Narration   []AudioPlacement
	SourceAudio bool
	// Duration trims both streams; zero keeps the shorter natural length.
	Duration time.Duration
	Loudnorm bool
	Output   string
}

func baseArgs() []string {
	return []string{"-y", "-nostdin", "-hide_banner", "-loglevel", "error"}
}

// videoChain scales and pads to the canonical frame without changing aspect.
func videoChain(f CanonicalFormat) string {
	return fmt.Sprintf(
		"fps=%d,scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,format=%s",
		f.FPS, f.Width, f.Height, f.Width, f.Height, f.PixelFormat)
}

// audioChain pins sample rate and layout; codec defaults are never trusted.
func audioChain(f CanonicalFormat) string {
	return fmt.Sprintf("aresample=%d,aformat=sample_fmts=fltp:sample_rates=%d:channel_layouts=%s",
		f.SampleRate, f.SampleRate, f.ChannelLayout())
}

func encodeArgs(f CanonicalFormat) []string {
	return []string{
		"-c:v", f.VideoCodec,
		"-preset", f.Preset,
		"-crf", strconv.Itoa(f.CRF),
		"-pix_fmt", f.PixelFormat,
		"-r", strconv.Itoa(f.FPS),
		"-c:a", f.AudioCodec,
		"-b:a", f.AudioBitrate,
		"-ar", strconv.Itoa(f.SampleRate),
		"-ac", strconv.Itoa(f.Channels),
	}
}

func secs(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

// NormalizeArgs re-encodes one clip. Streams are truncated to the shorter of
// the two (apad + -shortest), never extended by freezing frames.
func NormalizeArgs(f CanonicalFormat, req NormalizeRequest) []string {
	args := append(baseArgs(), "-i", req.Input)

	var graph []string
	vf := "[0:v]" + videoChain(f)
	if req.Duration > 0 {
		vf += ",trim=duration=" + secs(req.Duration) + ",setpts=PTS-STARTPTS"
	}
	graph = append(graph, vf+"[v]")

	var mixed string
	switch {
	case len(req.Narration) > 0:
		labels := make([]string, 0, len(req.Narration))
		for i, p := range req.Narration {
			args = append(args, "-i", p.Path)
			label := fmt.Sprintf("[n%d]", i)
			chain := fmt.Sprintf("[%d:a]%s", i+1, audioChain(f))
			if p.Offset > 0 {
				chain += fmt.Sprintf(",adelay=%d:all=1", p.Offset.Milliseconds())
			}
			graph = append(graph, chain+label)
			labels = append(labels, label)
		}
		if len(labels) == 1 {
			mixed = labels[0]
		} else {
			graph = append(graph, fmt.Sprintf("%samix=inputs=%d:duration=longest:normalize=0[mix]",
				strings.Join(labels, ""), len(labels)))
			mixed = "[mix]"
		}
	case req.SourceAudio:
		graph = append(graph, "[0:a]"+audioChain(f)+"[src]")
		mixed = "[src]"
	default:
		args = append(args, "-f", "lavfi", "-i",
			fmt.Sprintf("anullsrc=r=%d:cl=%s", f.SampleRate, f.ChannelLayout()))
		mixed = "[1:a]"
	}

	af := mixed
	if req.Loudnorm {
		af += "loudnorm=I=-16:TP=-1.5:LRA=11," + audioChain(f) + ","
	}
	af += "apad"
	if req.Duration > 0 {
		af += ",atrim=duration=" + secs(req.Duration)
	}
	graph = append(graph, af+"[a]")

	args = append(args, "-filter_complex", strings.Join(graph, ";"), "-map", "[v]", "-map", "[a]")
	args = append(args, encodeArgs(f)...)
	return append(args, "-shortest", "-movflags", "+faststart", "-f", "mp4", req.Output)
}

// SlideRequest renders a slide range as a video-only clip.
type SlideRequest struct {
	Pattern  string // printf pattern over the 1-based slide number
	Start    int
	Count    int
	Advance  time.Duration
	Duration time.Duration
	Output   string
}

// SlideArgs loops the selected images, holding the last slide until Duration.
func SlideArgs(f CanonicalFormat, req SlideRequest) []string {
	adv := req.Advance.Milliseconds()
	if adv <= 0 {
		adv = 1000
	}
	shown := time.Duration(int64(req.Count)*adv) * time.Millisecond
	args := append(baseArgs(),
		"-framerate", fmt.Sprintf("1000/%d", adv),
		"-start_number", strconv.Itoa(req.Start),
		"-i", req.Pattern,
		"-filter_complex", fmt.Sprintf("[0:v]trim=end=%s,setpts=PTS-STARTPTS,%s,tpad=stop_mode=clone:stop=-1[v]",
			secs(shown), videoChain(f)),
		"-map", "[v]",
		"-t", secs(req.Duration),
		"-c:v", f.VideoCodec,
		"-preset", f.Preset,
		"-crf", strconv.Itoa(f.CRF),
		"-pix_fmt", f.PixelFormat,
		"-an",
	)
	return append(args, "-f", "matroska", req.Output)
}

// RecorderArgs encodes JPEG frames from stdin into a raw capture clip.
func RecorderArgs(f CanonicalFormat, output string) []string {
	args := append(baseArgs(),
		"-f", "image2pipe",
		"-framerate", strconv.Itoa(f.FPS),
		"-c:v", "mjpeg",
		"-i", "pipe:0",
		"-vf", videoChain(f),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "18",
		"-pix_fmt", f.PixelFormat,
		"-an",
	)
	return append(args, "-f", "matroska", output)
}

// ConcatArgs joins normalized clips with stream copy. Valid only because
// every input already matches the canonical format.
func ConcatArgs(listPath, output string) []string {
	return append(baseArgs(),
		"-f", "concat", "-safe", "0", "-i", listPath,
		"-c", "copy",
		"-movflags", "+faststart",
		"-f", "mp4", output,
	)
}

// FilterScriptArgs re-encodes video through a filter graph script whose
// output is labeled [vout]. Audio is copied untouched.
func FilterScriptArgs(f CanonicalFormat, input, script, output string) []string {
	return append(baseArgs(),
		"-i", input,
		"-filter_complex_script", script,
		"-map", "[vout]",
		"-map", "0:a?",
		"-c:v", f.VideoCodec,
		"-preset", f.Preset,
		"-crf", strconv.Itoa(f.CRF),
		"-pix_fmt", f.PixelFormat,
		"-r", strconv.Itoa(f.FPS),
		"-c:a", "copy",
		"-movflags", "+faststart",
		"-f", "mp4", output,
	)
}

// ConcatList renders a concat demuxer list. Single quotes are escaped the way
// the demuxer expects ('\'').
func ConcatList(paths []string) string {
	var b strings.Builder
	for _, p := range paths {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(p, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}
