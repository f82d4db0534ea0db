// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ManuGH/tourcast/internal/media"
	"github.com/ManuGH/tourcast/internal/tour"
)

// SlideJob renders one slides segment.
type SlideJob struct {
	Step     tour.Step
	Source   *tour.SlideSource
	Duration time.Duration
	Output   string
}

// SlideRenderer turns pre-rendered slide images into a video-only clip.
type SlideRenderer interface {
	Render(ctx context.Context, job SlideJob) error
}

// FFmpegSlides renders slides with an ffmpeg image loop.
type FFmpegSlides struct {
	Runner media.Runner
	Format media.CanonicalFormat
}

func (r *FFmpegSlides) Render(ctx context.Context, job SlideJob) error {
	if job.Source == nil || job.Step.Slides == nil {
		return fmt.Errorf("step %q: no slide source", job.Step.ID)
	}
	rng := job.Step.Slides
	for n := rng.Range[0]; n <= rng.Range[1]; n++ {
		if _, err := os.Stat(job.Source.Path(n)); err != nil {
			return fmt.Errorf("step %q: slide %d: %w", job.Step.ID, n, err)
		}
	}
	pattern := job.Source.Pattern
	if pattern == "" {
		pattern = tour.DefaultSlidePattern
	}
	args := media.SlideArgs(r.Format, media.SlideRequest{
		Pattern:  filepath.Join(job.Source.Dir, pattern),
		Start:    rng.Range[0],
		Count:    rng.Count(),
		Advance:  rng.Advance(),
		Duration: job.Duration,
		Output:   job.Output,
	})
	return r.Runner.Run(ctx, "slides "+job.Step.ID, args)
}
