// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/ManuGH/tourcast/internal/capture"
	"github.com/ManuGH/tourcast/internal/timing"
	"github.com/google/renameio/v2"
)

// StepReport summarizes one step of a run.
type StepReport struct {
	ID        string  `json:"id"`
	Narration float64 `json:"narration_s"`
	Duration  float64 `json:"duration_s"`
	Attempts  int     `json:"attempts,omitempty"`
}

// PhaseReport is the wall-clock time spent in one phase.
type PhaseReport struct {
	Name    string  `json:"name"`
	Seconds float64 `json:"seconds"`
}

// Report is the outcome of a successful run.
type Report struct {
	RunID          string        `json:"run_id"`
	SpecPath       string        `json:"spec_path,omitempty"`
	Title          string        `json:"title"`
	Mode           string        `json:"mode"`
	DryRun         bool          `json:"dry_run"`
	WorkDir        string        `json:"work_dir"`
	Steps          []StepReport  `json:"steps"`
	Retries        int           `json:"retries"`
	Planned        float64       `json:"planned_s"`
	Narration      float64       `json:"narration_s"`
	OutputPath     string        `json:"output_path,omitempty"`
	OutputDuration float64       `json:"output_duration_s,omitempty"`
	OutputSize     int64         `json:"output_size_bytes,omitempty"`
	Zoomed         bool          `json:"zoomed,omitempty"`
	Phases         []PhaseReport `json:"phases"`
	Elapsed        float64       `json:"elapsed_s"`
}

func (r *Report) addPhase(name string, d time.Duration) {
	r.Phases = append(r.Phases, PhaseReport{Name: name, Seconds: d.Seconds()})
}

func (r *Report) setTimeline(tl timing.Timeline) {
	r.Steps = make([]StepReport, 0, len(tl.Entries))
	for _, e := range tl.Entries {
		r.Steps = append(r.Steps, StepReport{
			ID:        e.StepID,
			Narration: e.Narration.Seconds(),
			Duration:  e.Duration.Seconds(),
		})
	}
	r.Planned = tl.Total.Seconds()
	r.Narration = tl.NarrationTotal.Seconds()
}

func (r *Report) setAttempts(res capture.Result) {
	r.Retries = 0
	for i := range r.Steps {
		n := res.Attempts[r.Steps[i].ID]
		r.Steps[i].Attempts = n
		if n > 1 {
			r.Retries += n - 1
		}
	}
}

// WriteJSON writes the report atomically to path.
func (r *Report) WriteJSON(path string) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, append(b, '\n'), 0o644)
}

// WriteText renders a human-readable summary.
func (r *Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "run\t%s\n", r.RunID)
	fmt.Fprintf(tw, "title\t%s\n", r.Title)
	fmt.Fprintf(tw, "mode\t%s\n", r.Mode)
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "STEP\tNARRATION\tDURATION\tATTEMPTS")
	for _, s := range r.Steps {
		attempts := "-"
		if s.Attempts > 0 {
			attempts = fmt.Sprint(s.Attempts)
		}
		fmt.Fprintf(tw, "%s\t%.2fs\t%.2fs\t%s\n", s.ID, s.Narration, s.Duration, attempts)
	}
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "planned\t%.2fs (narration %.2fs)\n", r.Planned, r.Narration)
	if r.DryRun {
		fmt.Fprintln(tw, "dry run\tno capture performed")
		return tw.Flush()
	}
	fmt.Fprintf(tw, "retries\t%d\n", r.Retries)
	fmt.Fprintf(tw, "output\t%s\n", r.OutputPath)
	fmt.Fprintf(tw, "duration\t%.2fs\n", r.OutputDuration)
	fmt.Fprintf(tw, "size\t%d bytes\n", r.OutputSize)
	fmt.Fprintf(tw, "elapsed\t%.1fs\n", r.Elapsed)
	return tw.Flush()
}
