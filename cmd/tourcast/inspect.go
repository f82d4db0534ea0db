// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/ManuGH/tourcast/internal/narration"
	"github.com/ManuGH/tourcast/internal/timing"
	"github.com/ManuGH/tourcast/internal/tour"
	"github.com/spf13/cobra"
)

func newValidateCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <spec>",
		Short: "Check a spec (and the config, if given) without recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if g.configPath != "" {
				if _, err := g.loadConfig(); err != nil {
					return err
				}
			}
			spec, err := tour.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is valid (%d steps, %s mode)\n",
				args[0], len(spec.Items()), spec.Settings.Mode)
			return nil
		},
	}
}

func newTimelineCmd() *cobra.Command {
	var workDir string
	cmd := &cobra.Command{
		Use:   "timeline <spec>",
		Short: "Print per-step action estimates, or the resolved timeline with --work-dir",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := tour.Load(args[0])
			if err != nil {
				return err
			}
			if workDir == "" {
				return writeEstimates(cmd.OutOrStdout(), spec)
			}
			assets, err := narration.Prerender(cmd.Context(), narration.Reuse{}, spec, filepath.Join(workDir, "audio"))
			if err != nil {
				return fmt.Errorf("reuse narration: %w", err)
			}
			tl, err := timing.Resolve(spec.Items(), assets, spec.Settings, spec.Meta.TargetDuration())
			var budget *timing.DurationBudgetExceededError
			if errors.As(err, &budget) {
				// Still useful: show where the time goes.
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", err)
				tl, err = timing.Resolve(spec.Items(), assets, spec.Settings, 0)
			}
			if err != nil {
				return err
			}
			return writeTimeline(cmd.OutOrStdout(), tl)
		},
	}
	cmd.Flags().StringVar(&workDir, "work-dir", "", "working directory of a previous run with narration audio")
	return cmd
}

func writeEstimates(w io.Writer, spec *tour.Spec) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tACTIONS\tMIN DURATION")
	var total time.Duration
	for _, st := range spec.Items() {
		est := timing.EstimateStep(st, spec.Settings.TypingDelay())
		minimum := est + spec.Settings.Padding()
		total += minimum
		fmt.Fprintf(tw, "%s\t%.2fs\t%.2fs\n", st.ID, est.Seconds(), minimum.Seconds())
	}
	fmt.Fprintf(tw, "total\t\t%.2fs\n", total.Seconds())
	return tw.Flush()
}

func writeTimeline(w io.Writer, tl timing.Timeline) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tSTART\tNARRATION\tACTIONS\tDURATION")
	var at time.Duration
	for _, e := range tl.Entries {
		fmt.Fprintf(tw, "%s\t%.2fs\t%.2fs\t%.2fs\t%.2fs\n",
			e.StepID, at.Seconds(), e.Narration.Seconds(), e.Action.Seconds(), e.Duration.Seconds())
		at += e.Duration
	}
	fmt.Fprintf(tw, "total\t\t%.2fs\t\t%.2fs\n", tl.NarrationTotal.Seconds(), tl.Total.Seconds())
	return tw.Flush()
}
