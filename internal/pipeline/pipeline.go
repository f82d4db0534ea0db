// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package pipeline runs one recording end to end: load, narrate, time,
// capture, assemble. Phases run strictly in sequence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ManuGH/tourcast/internal/assembly"
	"github.com/ManuGH/tourcast/internal/capture"
	"github.com/ManuGH/tourcast/internal/executor"
	"github.com/ManuGH/tourcast/internal/ledger"
	"github.com/ManuGH/tourcast/internal/log"
	"github.com/ManuGH/tourcast/internal/metrics"
	"github.com/ManuGH/tourcast/internal/narration"
	"github.com/ManuGH/tourcast/internal/telemetry"
	"github.com/ManuGH/tourcast/internal/timing"
	"github.com/ManuGH/tourcast/internal/tour"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Phase names, shared by logs, spans, metrics and the ledger.
const (
	PhaseSetup     = "setup"
	PhaseNarration = "narration"
	PhaseTiming    = "timing"
	PhaseCapture   = "capture"
	PhaseAssembly  = "assembly"
)

const teardownTimeout = 30 * time.Second

var tracer = telemetry.Tracer("tourcast/pipeline")

// Capturer records every step of a plan.
type Capturer interface {
	Capture(ctx context.Context, plan capture.Plan) (capture.Result, error)
}

// Assembler turns captured clips into the published video.
type Assembler interface {
	Assemble(ctx context.Context, req assembly.Request) (*assembly.Result, error)
}

// Ledger persists run history. Write failures are logged, never fatal.
type Ledger interface {
	executor.Observer
	StartRun(ctx context.Context, r ledger.Run) error
	FinishRun(ctx context.Context, id, result, outputPath string, duration time.Duration, finishedAt time.Time, runErr error) error
	RecordPhase(ctx context.Context, runID, phase string, d time.Duration, phaseErr error) error
}

// Pipeline holds the collaborators shared by every run. Capture and assembly
// depend on the spec, so they are built per run.
type Pipeline struct {
	WorkRoot     string
	KeepWork     bool
	Synthesizer  narration.Synthesizer
	NewCapturer  func(spec *tour.Spec) (Capturer, error)
	NewAssembler func(spec *tour.Spec) (Assembler, error)
	Shell        Shell
	Ledger       Ledger
	Now          func() time.Time
}

// RunOptions selects the spec and per-run overrides.
type RunOptions struct {
	SpecPath string
	// Spec skips loading when already parsed and validated.
	Spec *tour.Spec
	// WorkDir reuses an existing working tree, e.g. to reuse narration.
	WorkDir  string
	KeepWork bool
	DryRun   bool
	// Output overrides output.path.
	Output string
}

type run struct {
	p      *Pipeline
	rc     *RunContext
	spec   *tour.Spec
	report *Report
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Run executes one recording. It returns a report only when the run produced
// its output (or finished its dry run); on error no output file exists.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (_ *Report, err error) {
	started := p.now()
	runID := uuid.NewString()
	ctx = log.ContextWithRunID(ctx, runID)
	ctx, span := tracer.Start(ctx, "tourcast.run")
	logger := log.WithComponentFromContext(ctx, "pipeline")

	mode := "unknown"
	result := ledger.ResultFailed
	defer func() {
		if err != nil {
			result = ledger.ResultFailed
		}
		metrics.RecordRun(mode, result)
		telemetry.EndSpan(span, err, errorType(err))
	}()

	spec, err := p.load(ctx, opts)
	if err != nil {
		logger.Error().Err(err).Str("spec", opts.SpecPath).Msg("spec rejected")
		return nil, err
	}
	mode = spec.Settings.Mode
	span.SetAttributes(telemetry.RunAttributes(runID, mode)...)

	rc, err := NewRunContext(ctx, runID, p.WorkRoot, opts.WorkDir, p.KeepWork || opts.KeepWork)
	if err != nil {
		return nil, err
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
		defer cancel()
		if terr := rc.Close(tctx); terr != nil {
			logger.Warn().Err(terr).Msg("teardown incomplete")
		}
	}()

	r := &run{
		p:    p,
		rc:   rc,
		spec: spec,
		report: &Report{
			RunID:    runID,
			SpecPath: opts.SpecPath,
			Title:    spec.Meta.Title,
			Mode:     mode,
			DryRun:   opts.DryRun,
			WorkDir:  rc.WorkDir,
		},
	}
	output, err := outputPath(spec, opts)
	if err != nil {
		return nil, err
	}

	p.startRun(ctx, ledger.Run{
		ID:        runID,
		SpecPath:  opts.SpecPath,
		Title:     spec.Meta.Title,
		Mode:      mode,
		StartedAt: started,
		Result:    ledger.ResultRunning,
	})
	defer func() {
		r.report.Elapsed = p.now().Sub(started).Seconds()
		p.finishRun(ctx, runID, result, r.report, err)
	}()

	logger.Info().
		Str(log.FieldEvent, "run.started").
		Str(log.FieldMode, mode).
		Str("title", spec.Meta.Title).
		Int("steps", len(spec.Items())).
		Bool("dry_run", opts.DryRun).
		Msg("run started")

	if err := r.phase(ctx, PhaseSetup, func(ctx context.Context) error {
		return preSetup(ctx, p.shell(opts), spec.PreSetup)
	}); err != nil {
		return nil, err
	}

	var assets []narration.Asset
	if err := r.phase(ctx, PhaseNarration, func(ctx context.Context) error {
		var err error
		assets, err = narration.Prerender(ctx, p.Synthesizer, spec, rc.AudioDir)
		return err
	}); err != nil {
		return nil, err
	}

	steps := spec.Items()
	var tl timing.Timeline
	if err := r.phase(ctx, PhaseTiming, func(context.Context) error {
		var err error
		tl, err = timing.Resolve(steps, assets, spec.Settings, spec.Meta.TargetDuration())
		return err
	}); err != nil {
		return nil, err
	}
	r.report.setTimeline(tl)

	if opts.DryRun {
		result = ledger.ResultDryRun
		logger.Info().Str(log.FieldEvent, "run.dry_run").Float64("planned_s", tl.Total.Seconds()).Msg("dry run complete")
		return r.report, nil
	}

	var captured capture.Result
	if err := r.phase(ctx, PhaseCapture, func(ctx context.Context) error {
		c, err := p.NewCapturer(spec)
		if err != nil {
			return err
		}
		plan := capture.Plan{Spec: spec, Steps: steps, Timeline: tl, ClipDir: rc.ClipDir}
		if p.Ledger != nil {
			plan.Observer = p.Ledger
		}
		captured, err = c.Capture(ctx, plan)
		return err
	}); err != nil {
		return nil, err
	}
	r.report.setAttempts(captured)

	var out *assembly.Result
	if err := r.phase(ctx, PhaseAssembly, func(ctx context.Context) error {
		a, err := p.NewAssembler(spec)
		if err != nil {
			return err
		}
		out, err = a.Assemble(ctx, assembly.Request{
			Spec:    spec,
			Steps:   steps,
			Capture: captured,
			Assets:  assets,
			WorkDir: rc.AssemblyDir,
			Output:  output,
		})
		return err
	}); err != nil {
		return nil, err
	}

	r.report.OutputPath = out.Path
	r.report.OutputDuration = out.Duration.Seconds()
	r.report.OutputSize = out.Size
	r.report.Zoomed = out.Zoomed
	result = ledger.ResultSuccess
	logger.Info().
		Str(log.FieldEvent, "run.completed").
		Str(log.FieldFinalPath, out.Path).
		Float64(log.FieldDuration, out.Duration.Seconds()).
		Int("retries", r.report.Retries).
		Msg("run completed")
	return r.report, nil
}

func (p *Pipeline) load(ctx context.Context, opts RunOptions) (*tour.Spec, error) {
	if opts.Spec != nil {
		return opts.Spec, tour.Validate(opts.Spec)
	}
	_, span := tracer.Start(ctx, "phase.load")
	spec, err := tour.Load(opts.SpecPath)
	telemetry.EndSpan(span, err, errorType(err))
	return spec, err
}

func (p *Pipeline) shell(opts RunOptions) Shell {
	if p.Shell != nil {
		return p.Shell
	}
	sh := ShellRunner{}
	if opts.SpecPath != "" {
		sh.Dir = filepath.Dir(opts.SpecPath)
	}
	return sh
}

// outputPath resolves relative outputs against the working directory.
func outputPath(spec *tour.Spec, opts RunOptions) (string, error) {
	out := opts.Output
	if out == "" {
		out = spec.Output.Path
	}
	if out == "" {
		return "", errors.New("no output path")
	}
	abs, err := filepath.Abs(out)
	if err != nil {
		return "", fmt.Errorf("resolve output path: %w", err)
	}
	return abs, nil
}

// phase runs fn under its own span and records its duration everywhere.
func (r *run) phase(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, "phase."+name, trace.WithAttributes(telemetry.PhaseAttributes(name)...))
	logger := log.FromContext(ctx).With().Str(log.FieldPhase, name).Logger()
	start := r.p.now()

	err := fn(ctx)

	d := r.p.now().Sub(start)
	telemetry.EndSpan(span, err, errorType(err))
	metrics.ObservePhase(name, d.Seconds())
	r.report.addPhase(name, d)
	if r.p.Ledger != nil {
		if lerr := r.p.Ledger.RecordPhase(ctx, r.rc.ID, name, d, err); lerr != nil {
			logger.Warn().Err(lerr).Msg("ledger phase write failed")
		}
	}
	if err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "phase.failed").Str("error_type", errorType(err)).Msg("phase failed")
		return fmt.Errorf("%s: %w", name, err)
	}
	logger.Debug().Dur("elapsed", d).Msg("phase done")
	return nil
}

func (p *Pipeline) startRun(ctx context.Context, run ledger.Run) {
	if p.Ledger == nil {
		return
	}
	if err := p.Ledger.StartRun(ctx, run); err != nil {
		log.FromContext(ctx).Warn().Err(err).Msg("ledger run write failed")
	}
}

func (p *Pipeline) finishRun(ctx context.Context, id, result string, rep *Report, runErr error) {
	if p.Ledger == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	var outPath string
	var dur time.Duration
	if runErr == nil {
		outPath = rep.OutputPath
		dur = time.Duration(rep.OutputDuration * float64(time.Second))
	}
	if err := p.Ledger.FinishRun(ctx, id, result, outPath, dur, p.now(), runErr); err != nil {
		log.FromContext(ctx).Warn().Err(err).Msg("ledger run write failed")
	}
}

// errorType maps the error taxonomy onto a short label for spans and logs.
func errorType(err error) string {
	var (
		validation *tour.SpecValidationError
		budget     *timing.DurationBudgetExceededError
		setup      *SetupError
		synth      *narration.StepError
		sink       *capture.CaptureSinkError
		timeout    *executor.ActionTimeoutError
		assertion  *executor.StepAssertionError
		norm       *assembly.NormalizationError
		concat     *assembly.ConcatDurationMismatchError
		maxDur     *assembly.MaxDurationExceededError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validation):
		return "validation"
	case errors.As(err, &budget):
		return "duration_budget"
	case errors.As(err, &setup):
		return "pre_setup"
	case errors.As(err, &synth):
		return "narration"
	case errors.As(err, &sink):
		return "capture_sink"
	case errors.As(err, &assertion):
		return "assertion"
	case errors.As(err, &timeout):
		return "action_timeout"
	case errors.As(err, &norm):
		return "normalization"
	case errors.As(err, &concat):
		return "concat_mismatch"
	case errors.As(err, &maxDur):
		return "max_duration"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
