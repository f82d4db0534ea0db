// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package assembly turns raw captures and narration into the published video:
// normalize every clip to one canonical format, join them with stream copy,
// optionally run the virtual camera, verify durations and publish atomically.
package assembly

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/tourcast/internal/camera"
	"github.com/ManuGH/tourcast/internal/capture"
	"github.com/ManuGH/tourcast/internal/log"
	"github.com/ManuGH/tourcast/internal/media"
	"github.com/ManuGH/tourcast/internal/metrics"
	"github.com/ManuGH/tourcast/internal/narration"
	"github.com/ManuGH/tourcast/internal/telemetry"
	"github.com/ManuGH/tourcast/internal/tour"
)

// Verification limits.
const (
	MaxAVDrift        = 100 * time.Millisecond
	BoundaryTolerance = 200 * time.Millisecond
)

// Clip kinds beyond the capture kinds.
const (
	KindIntro = "intro"
	KindOutro = "outro"
)

// Engine assembles one run. Runner and Prober are the only ways it touches
// media files.
type Engine struct {
	Runner media.Runner
	Prober media.Prober
	Format media.CanonicalFormat
	Zoom   camera.Mode
}

// Request is the input of Assemble.
type Request struct {
	Spec    *tour.Spec
	Steps   []tour.Step
	Capture capture.Result
	Assets  []narration.Asset
	WorkDir string
	Output  string
}

// Segment is one normalized clip in final order.
type Segment struct {
	ID         string
	Kind       string
	Path       string
	Duration   time.Duration
	Placements []capture.Placement
}

// Result describes the published video.
type Result struct {
	Path     string
	Duration time.Duration
	Size     int64
	Segments []Segment
	Zoomed   bool
}

// Assemble runs every assembly stage. The output path is only written once
// the final file has passed verification.
func (e *Engine) Assemble(ctx context.Context, req Request) (*Result, error) {
	logger := log.WithComponentFromContext(ctx, "assembly")
	if err := os.MkdirAll(req.WorkDir, 0o750); err != nil {
		return nil, fmt.Errorf("create assembly dir: %w", err)
	}

	segs, err := e.normalizeAll(ctx, req)
	if err != nil {
		return nil, err
	}

	joined := filepath.Join(req.WorkDir, "joined.mp4")
	if err := e.concat(ctx, segs, req.WorkDir, joined); err != nil {
		return nil, err
	}

	var expected time.Duration
	for _, s := range segs {
		expected += s.Duration
	}
	final, err := e.verify(ctx, joined, expected, len(segs), req.Spec.Meta.MaxDuration())
	if err != nil {
		return nil, err
	}

	res := &Result{Segments: segs}
	candidate := joined
	if e.Zoom != camera.ModeOff && e.Zoom != "" {
		zoomed, ok, err := e.applyCamera(ctx, req, segs, joined, final)
		if err != nil {
			return nil, err
		}
		if ok {
			if final, err = e.verify(ctx, zoomed, final, 1, req.Spec.Meta.MaxDuration()); err != nil {
				return nil, err
			}
			candidate, res.Zoomed = zoomed, true
		}
	}

	size, err := publish(candidate, req.Output)
	if err != nil {
		return nil, err
	}
	res.Path, res.Duration, res.Size = req.Output, final, size
	metrics.OutputDurationSeconds.Set(final.Seconds())

	logger.Info().
		Str(log.FieldEvent, "assembly.published").
		Str(log.FieldFinalPath, req.Output).
		Float64(log.FieldDuration, final.Seconds()).
		Int64("size_bytes", size).
		Int("segments", len(segs)).
		Msg("video published")
	return res, nil
}

func (e *Engine) normalizeAll(ctx context.Context, req Request) ([]Segment, error) {
	assets := make(map[string]narration.Asset, len(req.Assets))
	for _, a := range req.Assets {
		assets[a.StepID] = a
	}
	leadIn := req.Spec.Settings.LeadIn()
	loudnorm := req.Spec.Output.LoudnormEnabled()

	var segs []Segment
	add := func(id, kind, input string, nr media.NormalizeRequest, placements []capture.Placement) error {
		nr.Input = input
		nr.Loudnorm = loudnorm
		nr.Output = filepath.Join(req.WorkDir, fmt.Sprintf("%02d-%s.mp4", len(segs), id))
		d, err := e.normalize(ctx, id, kind, nr)
		if err != nil {
			return err
		}
		segs = append(segs, Segment{ID: id, Kind: kind, Path: nr.Output, Duration: d, Placements: placements})
		return nil
	}

	if intro := req.Spec.Output.IntroClip; intro != "" {
		if err := e.overlay(ctx, add, KindIntro, intro); err != nil {
			return nil, err
		}
	}

	for _, c := range req.Capture.Clips {
		nr := media.NormalizeRequest{}
		for _, p := range c.Placements {
			a, ok := assets[p.StepID]
			if !ok {
				return nil, &NormalizationError{ClipID: c.ID, Kind: string(c.Kind), Err: fmt.Errorf("no narration for step %q", p.StepID)}
			}
			nr.Narration = append(nr.Narration, media.AudioPlacement{Path: a.Path, Offset: p.Start + leadIn})
			// Frames flushed after the last step's hold are cut.
			nr.Duration = max(nr.Duration, p.End)
		}
		if err := add(c.ID, string(c.Kind), c.Path, nr, c.Placements); err != nil {
			return nil, err
		}
	}

	if outro := req.Spec.Output.OutroClip; outro != "" {
		if err := e.overlay(ctx, add, KindOutro, outro); err != nil {
			return nil, err
		}
	}
	return segs, nil
}

type addFunc func(id, kind, input string, nr media.NormalizeRequest, placements []capture.Placement) error

// overlay normalizes a pre-made intro or outro, keeping its own audio when it
// has any.
func (e *Engine) overlay(ctx context.Context, add addFunc, kind, path string) error {
	info, err := e.Prober.Probe(ctx, path)
	if err != nil {
		return &NormalizationError{ClipID: kind, Kind: kind, Err: err}
	}
	if !info.HasVideo() {
		return &NormalizationError{ClipID: kind, Kind: kind, Err: errors.New("no video stream")}
	}
	return add(kind, kind, path, media.NormalizeRequest{SourceAudio: info.HasAudio()}, nil)
}

// normalize encodes one clip and checks the result against the canonical
// format. It returns the clip's duration.
func (e *Engine) normalize(ctx context.Context, id, kind string, nr media.NormalizeRequest) (d time.Duration, err error) {
	ctx, span := telemetry.Tracer("tourcast/assembly").Start(ctx, "assembly.normalize",
		trace.WithAttributes(telemetry.ClipAttributes(kind, nr.Output)...))
	defer func() {
		metrics.RecordNormalization(kind, err == nil)
		telemetry.EndSpan(span, err, "normalization")
	}()

	if err := e.Runner.Run(ctx, "normalize "+id, media.NormalizeArgs(e.Format, nr)); err != nil {
		return 0, &NormalizationError{ClipID: id, Kind: kind, Err: err}
	}
	info, err := e.Prober.Probe(ctx, nr.Output)
	if err != nil {
		return 0, &NormalizationError{ClipID: id, Kind: kind, Err: err}
	}
	if mm := e.Format.Mismatch(info); len(mm) > 0 {
		return 0, &NormalizationError{ClipID: id, Kind: kind, Mismatch: mm}
	}
	if drift := info.AVDrift(); drift > MaxAVDrift {
		return 0, &NormalizationError{ClipID: id, Kind: kind,
			Err: fmt.Errorf("video and audio differ by %.3fs", drift.Seconds())}
	}
	return info.Duration, nil
}

func (e *Engine) concat(ctx context.Context, segs []Segment, dir, output string) error {
	paths := make([]string, len(segs))
	for i, s := range segs {
		abs, err := filepath.Abs(s.Path)
		if err != nil {
			return err
		}
		paths[i] = abs
	}
	list := filepath.Join(dir, "concat.txt")
	if err := renameio.WriteFile(list, []byte(media.ConcatList(paths)), 0o600); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	return e.Runner.Run(ctx, "concat", media.ConcatArgs(list, output))
}

// verify probes path and checks stream drift, the expected duration within
// BoundaryTolerance per joined clip, and the max duration.
func (e *Engine) verify(ctx context.Context, path string, expected time.Duration, clips int, maxDur time.Duration) (time.Duration, error) {
	info, err := e.Prober.Probe(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", filepath.Base(path), err)
	}
	if drift := info.AVDrift(); drift > MaxAVDrift {
		return 0, &ConcatDurationMismatchError{Final: info.Duration, Expected: expected, Tolerance: MaxAVDrift, AVDrift: drift}
	}
	tol := BoundaryTolerance * time.Duration(max(clips, 1))
	if diff := info.Duration - expected; diff > tol || diff < -tol {
		return 0, &ConcatDurationMismatchError{Final: info.Duration, Expected: expected, Tolerance: tol}
	}
	if maxDur > 0 && info.Duration > maxDur {
		return 0, &MaxDurationExceededError{Duration: info.Duration, Max: maxDur}
	}
	return info.Duration, nil
}

// applyCamera renders the zoom pass. ok is false when the path has nothing
// to animate.
func (e *Engine) applyCamera(ctx context.Context, req Request, segs []Segment, input string, total time.Duration) (string, bool, error) {
	byID := make(map[string]tour.Step, len(req.Steps))
	for _, st := range req.Steps {
		byID[st.ID] = st
	}
	var spans []camera.StepSpan
	var offset time.Duration
	for _, s := range segs {
		for _, p := range s.Placements {
			if st, ok := byID[p.StepID]; ok {
				spans = append(spans, camera.StepSpan{Step: st, Start: offset + p.Start})
			}
		}
		offset += s.Duration
	}

	kfs := camera.Path(spans, total, e.Zoom)
	graph := camera.FilterGraph(kfs, total, e.Format.FPS, e.Format.Width, e.Format.Height)
	if graph == "" {
		return "", false, nil
	}
	script := filepath.Join(req.WorkDir, "camera.filter")
	if err := renameio.WriteFile(script, []byte(graph), 0o600); err != nil {
		return "", false, fmt.Errorf("write camera script: %w", err)
	}
	out := filepath.Join(req.WorkDir, "zoomed.mp4")
	if err := e.Runner.Run(ctx, "camera", media.FilterScriptArgs(e.Format, input, script, out)); err != nil {
		return "", false, err
	}
	log.FromContext(ctx).Debug().Int("keyframes", len(kfs)).Str(log.FieldMode, string(e.Zoom)).Msg("camera pass applied")
	return out, true, nil
}

// publish copies src to dst through a pending file in dst's directory, so
// readers see either the previous file or the complete new one.
func publish(src, dst string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("create output dir: %w", err)
	}
	in, err := os.Open(src) // #nosec G304 - path built inside the run work dir
	if err != nil {
		return 0, err
	}
	defer func() { _ = in.Close() }()

	pf, err := renameio.NewPendingFile(dst, renameio.WithPermissions(0o644))
	if err != nil {
		return 0, fmt.Errorf("publish %s: %w", dst, err)
	}
	defer func() { _ = pf.Cleanup() }()

	n, err := io.Copy(pf, in)
	if err != nil {
		return 0, fmt.Errorf("publish %s: %w", dst, err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return 0, fmt.Errorf("publish %s: %w", dst, err)
	}
	return n, nil
}
