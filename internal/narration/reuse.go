// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package narration

import "context"

// Reuse measures WAVs left in place by an earlier run.
type Reuse struct{}

func (Reuse) Name() string { return "reuse" }

func (Reuse) Synthesize(_ context.Context, req Request) (Asset, error) {
	return measure(req.StepID, req.Path)
}
