// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ManuGH/tourcast/internal/camera"
	"github.com/ManuGH/tourcast/internal/config"
	"github.com/ManuGH/tourcast/internal/log"
	"github.com/ManuGH/tourcast/internal/metrics"
	"github.com/ManuGH/tourcast/internal/pipeline"
	"github.com/ManuGH/tourcast/internal/telemetry"
	"github.com/ManuGH/tourcast/internal/version"
	"github.com/spf13/cobra"
)

type recordFlags struct {
	dryRun     bool
	skipTTS    bool
	workDir    string
	keepWork   bool
	ttsBackend string
	zoom       string
	output     string
	reportPath string
}

func newRecordCmd(g *globalFlags) *cobra.Command {
	f := &recordFlags{}
	cmd := &cobra.Command{
		Use:   "record <spec>",
		Short: "Narrate, capture and assemble a spec into one video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(cmd, g, f, args[0])
		},
	}
	fl := cmd.Flags()
	fl.BoolVar(&f.dryRun, "dry-run", false, "synthesize narration and resolve timing only")
	fl.BoolVar(&f.skipTTS, "skip-tts", false, "reuse narration already in --work-dir")
	fl.StringVar(&f.workDir, "work-dir", "", "use this working directory instead of a fresh one")
	fl.BoolVar(&f.keepWork, "keep-work", false, "keep intermediate files")
	fl.StringVar(&f.ttsBackend, "tts-backend", "", "override the narration backend (http, command, offload, reuse)")
	fl.StringVar(&f.zoom, "zoom", "off", "virtual camera: off, auto or mobile")
	fl.StringVarP(&f.output, "output", "o", "", "override output.path")
	fl.StringVar(&f.reportPath, "report", "", "also write the run report as JSON to this path")
	return cmd
}

func runRecord(cmd *cobra.Command, g *globalFlags, f *recordFlags, specPath string) error {
	ctx := cmd.Context()
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if f.skipTTS {
		if f.workDir == "" {
			return errors.New("--skip-tts needs --work-dir pointing at a previous run")
		}
		f.ttsBackend = config.TTSBackendReuse
	}
	if f.ttsBackend != "" {
		cfg.TTS.Backend = f.ttsBackend
		if err := config.Validate(cfg); err != nil {
			return err
		}
	}
	zoom, err := camera.ParseMode(f.zoom)
	if err != nil {
		return err
	}
	logger := log.WithComponent("cli")

	if cfg.Telemetry.Enabled {
		tp, err := telemetry.NewProvider(ctx, telemetry.Config{
			Enabled:        true,
			ServiceName:    "tourcast",
			ServiceVersion: version.Version,
			ExporterType:   cfg.Telemetry.Exporter,
			Endpoint:       cfg.Telemetry.Endpoint,
			SamplingRate:   cfg.Telemetry.SamplingRate,
		})
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			if serr := tp.Shutdown(ctx); serr != nil {
				logger.Warn().Err(serr).Msg("telemetry shutdown failed")
			}
		}()
	}

	synth, err := newSynthesizer(cfg)
	if err != nil {
		return err
	}
	w := newWiring(cfg, zoom)
	defer w.Close()

	p := &pipeline.Pipeline{
		WorkRoot:     cfg.WorkRoot,
		KeepWork:     cfg.KeepWork,
		Synthesizer:  synth,
		NewCapturer:  w.capturer,
		NewAssembler: w.assembler,
		Shell:        pipeline.ShellRunner{Dir: filepath.Dir(specPath), Grace: cfg.FFmpeg.KillGrace},
	}
	led, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	if led != nil {
		defer func() { _ = led.Close() }()
		p.Ledger = led
	}

	if cfg.Metrics.TextfilePath != "" {
		defer func() {
			if merr := metrics.WriteTextfile(cfg.Metrics.TextfilePath); merr != nil {
				logger.Warn().Err(merr).Str("path", cfg.Metrics.TextfilePath).Msg("metrics textfile write failed")
			}
		}()
	}

	rep, err := p.Run(ctx, pipeline.RunOptions{
		SpecPath: specPath,
		WorkDir:  f.workDir,
		KeepWork: f.keepWork,
		DryRun:   f.dryRun,
		Output:   f.output,
	})
	if err != nil {
		return err
	}
	if f.reportPath != "" {
		if err := rep.WriteJSON(f.reportPath); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	return rep.WriteText(cmd.OutOrStdout())
}
