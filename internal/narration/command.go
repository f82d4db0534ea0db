// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package narration

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/tourcast/internal/media"
	"github.com/ManuGH/tourcast/internal/procgroup"
)

// CommandSynthesizer runs a local TTS program per step. The narration text is
// written to stdin. Argv may reference {output}, {voice}, {speed} and
// {language}; without {output} the WAV path is appended as the last argument.
type CommandSynthesizer struct {
	Argv  []string
	Grace time.Duration
}

func (s *CommandSynthesizer) Name() string { return "command" }

func (s *CommandSynthesizer) argv(req Request) []string {
	r := strings.NewReplacer(
		"{output}", req.Path,
		"{voice}", req.Voice,
		"{speed}", strconv.FormatFloat(req.Speed, 'f', -1, 64),
		"{language}", req.Language,
	)
	out := make([]string, 0, len(s.Argv)+1)
	hasOutput := false
	for _, a := range s.Argv {
		if strings.Contains(a, "{output}") {
			hasOutput = true
		}
		out = append(out, r.Replace(a))
	}
	if !hasOutput {
		out = append(out, req.Path)
	}
	return out
}

func (s *CommandSynthesizer) Synthesize(ctx context.Context, req Request) (Asset, error) {
	if len(s.Argv) == 0 {
		return Asset{}, fmt.Errorf("tts command is not configured")
	}
	argv := s.argv(req)

	// #nosec G204 -- the command is operator configuration
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = strings.NewReader(req.Text)
	ring := media.NewLineRing(16)
	cmd.Stderr = ring

	if err := procgroup.Run(ctx, cmd, s.Grace); err != nil {
		if tail := ring.Tail(4); tail != "" {
			return Asset{}, fmt.Errorf("tts command %s: %w: %s", argv[0], err, tail)
		}
		return Asset{}, fmt.Errorf("tts command %s: %w", argv[0], err)
	}
	return measure(req.StepID, req.Path)
}
