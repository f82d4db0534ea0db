// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package assembly

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/tourcast/internal/camera"
	"github.com/ManuGH/tourcast/internal/capture"
	"github.com/ManuGH/tourcast/internal/media"
	"github.com/ManuGH/tourcast/internal/metrics"
	"github.com/ManuGH/tourcast/internal/narration"
	"github.com/ManuGH/tourcast/internal/tour"
)

var canonical = media.CanonicalFormat{
	Width: 1280, Height: 720, FPS: 30, PixelFormat: "yuv420p",
	VideoCodec: "libx264", Preset: "medium", CRF: 20,
	AudioCodec: "aac", AudioBitrate: "192k", SampleRate: 24000, Channels: 1,
}

// fakeRunner writes a placeholder at the output path (the last argument).
type fakeRunner struct {
	mu    sync.Mutex
	calls map[string][]string
	order []string
	fail  map[string]error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{calls: map[string][]string{}, fail: map[string]error{}}
}

func (r *fakeRunner) Run(ctx context.Context, desc string, args []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[desc] = args
	r.order = append(r.order, desc)
	if err := r.fail[desc]; err != nil {
		return err
	}
	return os.WriteFile(args[len(args)-1], []byte(desc), 0o600)
}

// fakeProber answers by file base name; unknown files get a canonical stream
// of defaultDur.
type fakeProber struct {
	infos      map[string]*media.StreamInfo
	defaultDur time.Duration
}

func streamOf(d time.Duration) *media.StreamInfo {
	return &media.StreamInfo{
		Container: "mov,mp4,m4a,3gp,3g2,mj2",
		Duration:  d,
		Video:     media.VideoStream{CodecName: "h264", Width: 1280, Height: 720, PixFmt: "yuv420p", FPS: 30, Duration: d},
		Audio:     media.AudioStream{CodecName: "aac", SampleRate: 24000, Channels: 1, Duration: d},
	}
}

func (p *fakeProber) Probe(ctx context.Context, path string) (*media.StreamInfo, error) {
	if info, ok := p.infos[filepath.Base(path)]; ok {
		return info, nil
	}
	return streamOf(p.defaultDur), nil
}

func baseSpec() *tour.Spec {
	pad, lead := 1.0, 0.5
	return &tour.Spec{
		Meta:     tour.Meta{Title: "t"},
		Settings: tour.Settings{PaddingSeconds: &pad, LeadInSeconds: &lead},
	}
}

func independentRequest(t *testing.T) Request {
	t.Helper()
	dir := t.TempDir()
	return Request{
		Spec:  baseSpec(),
		Steps: []tour.Step{{ID: "one"}, {ID: "two"}},
		Capture: capture.Result{Mode: tour.ModeIndependent, Clips: []capture.Clip{
			{ID: "one", Kind: capture.ClipStep, Path: "/raw/step-one.mkv", Placements: []capture.Placement{{StepID: "one", End: 4 * time.Second}}},
			{ID: "two", Kind: capture.ClipStep, Path: "/raw/step-two.mkv", Placements: []capture.Placement{{StepID: "two", End: 6 * time.Second}}},
		}},
		Assets: []narration.Asset{
			{StepID: "one", Path: "/audio/step-one.wav", Duration: 3 * time.Second},
			{StepID: "two", Path: "/audio/step-two.wav", Duration: 5 * time.Second},
		},
		WorkDir: filepath.Join(dir, "assembly"),
		Output:  filepath.Join(dir, "out", "tour.mp4"),
	}
}

func engine(r *fakeRunner, p *fakeProber) *Engine {
	return &Engine{Runner: r, Prober: p, Format: canonical, Zoom: camera.ModeOff}
}

func TestAssemble_IndependentClips(t *testing.T) {
	r := newFakeRunner()
	p := &fakeProber{infos: map[string]*media.StreamInfo{
		"00-one.mp4": streamOf(4 * time.Second),
		"01-two.mp4": streamOf(6 * time.Second),
		"joined.mp4": streamOf(10*time.Second + 50*time.Millisecond),
	}}
	req := independentRequest(t)

	res, err := engine(r, p).Assemble(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []string{"normalize one", "normalize two", "concat"}, r.order)
	assert.Equal(t, 10*time.Second+50*time.Millisecond, res.Duration)
	assert.Equal(t, req.Output, res.Path)
	assert.FileExists(t, req.Output)
	assert.False(t, res.Zoomed)
	assert.InDelta(t, 10.05, testutil.ToFloat64(metrics.OutputDurationSeconds), 1e-9)

	// Narration starts lead-in after the clip start.
	args := strings.Join(r.calls["normalize one"], " ")
	assert.Contains(t, args, "-i /audio/step-one.wav")
	assert.Contains(t, args, "adelay=500:all=1")
	assert.Contains(t, args, "loudnorm=")
	assert.Contains(t, args, "-shortest")
	// Each clip is cut to its resolved step length.
	assert.Contains(t, args, "trim=duration=4.000,setpts=PTS-STARTPTS")
	assert.Contains(t, args, "atrim=duration=4.000")
	assert.Contains(t, strings.Join(r.calls["normalize two"], " "), "trim=duration=6.000")

	list, err := os.ReadFile(filepath.Join(req.WorkDir, "concat.txt"))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(list), "file '"))
}

func TestAssemble_ContinuousPlacesNarrationAtOffsets(t *testing.T) {
	r := newFakeRunner()
	p := &fakeProber{defaultDur: 9 * time.Second}
	req := independentRequest(t)
	req.Capture = capture.Result{Mode: tour.ModeContinuous, Clips: []capture.Clip{{
		ID: "continuous", Kind: capture.ClipContinuous, Path: "/raw/continuous.mkv",
		Placements: []capture.Placement{
			{StepID: "one", Start: 0, End: 4 * time.Second},
			{StepID: "two", Start: 4 * time.Second, End: 9 * time.Second},
		},
	}}}
	off := false
	req.Spec.Output.Loudnorm = &off

	_, err := engine(r, p).Assemble(context.Background(), req)
	require.NoError(t, err)

	args := strings.Join(r.calls["normalize continuous"], " ")
	assert.Contains(t, args, "adelay=500:all=1")
	assert.Contains(t, args, "adelay=4500:all=1")
	assert.Contains(t, args, "amix=inputs=2:duration=longest:normalize=0")
	assert.Contains(t, args, "trim=duration=9.000")
	assert.NotContains(t, args, "loudnorm")
}

func TestAssemble_NonCanonicalClipFails(t *testing.T) {
	r := newFakeRunner()
	bad := streamOf(4 * time.Second)
	bad.Audio.SampleRate = 44100
	p := &fakeProber{infos: map[string]*media.StreamInfo{"00-one.mp4": bad}, defaultDur: 6 * time.Second}
	before := testutil.ToFloat64(metrics.ClipsNormalizedTotal.WithLabelValues("step", "error"))
	req := independentRequest(t)

	_, err := engine(r, p).Assemble(context.Background(), req)

	var ne *NormalizationError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, "one", ne.ClipID)
	assert.Equal(t, []string{"sample_rate=44100"}, ne.Mismatch)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ClipsNormalizedTotal.WithLabelValues("step", "error")))
	assert.NoFileExists(t, req.Output)
}

func TestAssemble_WrongCodecClipFails(t *testing.T) {
	r := newFakeRunner()
	bad := streamOf(4 * time.Second)
	bad.Video.CodecName = "hevc"
	bad.Audio.CodecName = "opus"
	p := &fakeProber{infos: map[string]*media.StreamInfo{"00-one.mp4": bad}, defaultDur: 6 * time.Second}
	req := independentRequest(t)

	_, err := engine(r, p).Assemble(context.Background(), req)

	var ne *NormalizationError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, "one", ne.ClipID)
	assert.Equal(t, []string{"video_codec=hevc", "audio_codec=opus"}, ne.Mismatch)
	assert.NoFileExists(t, req.Output)
}

func TestAssemble_EncoderFailure(t *testing.T) {
	r := newFakeRunner()
	r.fail["normalize two"] = &media.ProcessError{Desc: "normalize two", Err: errors.New("exit status 1")}
	req := independentRequest(t)

	_, err := engine(r, &fakeProber{defaultDur: 4 * time.Second}).Assemble(context.Background(), req)

	var ne *NormalizationError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, "two", ne.ClipID)
	var pe *media.ProcessError
	assert.True(t, errors.As(err, &pe))
}

func TestAssemble_ConcatDurationMismatch(t *testing.T) {
	r := newFakeRunner()
	p := &fakeProber{infos: map[string]*media.StreamInfo{
		"00-one.mp4": streamOf(4 * time.Second),
		"01-two.mp4": streamOf(6 * time.Second),
		"joined.mp4": streamOf(11 * time.Second),
	}}
	req := independentRequest(t)

	_, err := engine(r, p).Assemble(context.Background(), req)

	var ce *ConcatDurationMismatchError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 10*time.Second, ce.Expected)
	assert.Equal(t, 400*time.Millisecond, ce.Tolerance)
	assert.NoFileExists(t, req.Output)
}

func TestAssemble_AVDrift(t *testing.T) {
	r := newFakeRunner()
	joined := streamOf(10 * time.Second)
	joined.Audio.Duration = 9800 * time.Millisecond
	p := &fakeProber{infos: map[string]*media.StreamInfo{
		"00-one.mp4": streamOf(4 * time.Second),
		"01-two.mp4": streamOf(6 * time.Second),
		"joined.mp4": joined,
	}}

	_, err := engine(r, p).Assemble(context.Background(), independentRequest(t))

	var ce *ConcatDurationMismatchError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 200*time.Millisecond, ce.AVDrift)
}

func TestAssemble_MaxDurationExceeded(t *testing.T) {
	r := newFakeRunner()
	p := &fakeProber{defaultDur: 5 * time.Second, infos: map[string]*media.StreamInfo{"joined.mp4": streamOf(10 * time.Second)}}
	req := independentRequest(t)
	req.Spec.Meta.MaxDurationSeconds = 8

	_, err := engine(r, p).Assemble(context.Background(), req)

	var me *MaxDurationExceededError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, 8*time.Second, me.Max)
	assert.NoFileExists(t, req.Output)
}

func TestAssemble_IntroOutroAndCamera(t *testing.T) {
	r := newFakeRunner()
	silentIntro := streamOf(2 * time.Second)
	silentIntro.Audio = media.AudioStream{}
	p := &fakeProber{defaultDur: 2 * time.Second, infos: map[string]*media.StreamInfo{
		"intro.mp4":  silentIntro,
		"outro.mp4":  streamOf(2 * time.Second),
		"joined.mp4": streamOf(8 * time.Second),
		"zoomed.mp4": streamOf(8 * time.Second),
	}}
	req := independentRequest(t)
	req.Spec.Output.IntroClip = "/brand/intro.mp4"
	req.Spec.Output.OutroClip = "/brand/outro.mp4"
	req.Steps[0].Actions = []tour.Action{{Kind: tour.ActionTypeText, Text: "x"}}
	e := engine(r, p)
	e.Zoom = camera.ModeAuto

	res, err := e.Assemble(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []string{"normalize intro", "normalize one", "normalize two", "normalize outro", "concat", "camera"}, r.order)
	assert.True(t, res.Zoomed)
	require.Len(t, res.Segments, 4)
	assert.Equal(t, KindIntro, res.Segments[0].Kind)

	intro := strings.Join(r.calls["normalize intro"], " ")
	assert.Contains(t, intro, "anullsrc=r=24000:cl=mono")
	outro := strings.Join(r.calls["normalize outro"], " ")
	assert.Contains(t, outro, "[0:a]aresample=24000")

	script, err := os.ReadFile(filepath.Join(req.WorkDir, "camera.filter"))
	require.NoError(t, err)
	assert.Contains(t, string(script), "[vout]")
	published, err := os.ReadFile(req.Output)
	require.NoError(t, err)
	assert.Equal(t, "camera", string(published))
}
