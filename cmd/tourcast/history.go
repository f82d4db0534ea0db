// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ManuGH/tourcast/internal/ledger"
	"github.com/spf13/cobra"
)

func newHistoryCmd(g *globalFlags) *cobra.Command {
	var (
		limit  int
		runID  string
		verify bool
		full   bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs from the run ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			led, err := openLedger(ctx, cfg)
			if err != nil {
				return err
			}
			if led == nil {
				return errors.New("run ledger disabled (set ledger.path or TOURCAST_LEDGER_PATH)")
			}
			defer func() { _ = led.Close() }()

			out := cmd.OutOrStdout()
			if verify {
				problems, err := led.Verify(ctx, full)
				if err != nil {
					return err
				}
				if len(problems) > 0 {
					return fmt.Errorf("ledger integrity check failed: %s", strings.Join(problems, "; "))
				}
				fmt.Fprintln(out, "✓ ledger integrity ok")
				return nil
			}
			if runID != "" {
				attempts, err := led.Attempts(ctx, runID)
				if err != nil {
					return fmt.Errorf("run %s: %w", runID, err)
				}
				return writeAttempts(out, attempts)
			}
			runs, err := led.Runs(ctx, limit)
			if err != nil {
				return err
			}
			return writeRuns(out, runs)
		},
	}
	fl := cmd.Flags()
	fl.IntVarP(&limit, "limit", "n", 20, "number of runs to list")
	fl.StringVar(&runID, "run", "", "list the step attempts of one run")
	fl.BoolVar(&verify, "verify", false, "check ledger integrity instead of listing")
	fl.BoolVar(&full, "full", false, "with --verify, run the full integrity check")
	return cmd
}

func writeRuns(w io.Writer, runs []ledger.Run) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tMODE\tRESULT\tDURATION\tTITLE")
	for _, r := range runs {
		dur := "-"
		if r.Duration > 0 {
			dur = fmt.Sprintf("%.1fs", r.Duration.Seconds())
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.StartedAt.Format(time.DateTime), r.Mode, r.Result, dur, r.Title)
	}
	return tw.Flush()
}

func writeAttempts(w io.Writer, attempts []ledger.Attempt) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tATTEMPT\tOUTCOME\tDURATION\tERROR")
	for _, a := range attempts {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%.2fs\t%s\n", a.StepID, a.Attempt, a.Outcome, a.Duration.Seconds(), a.Error)
	}
	return tw.Flush()
}
