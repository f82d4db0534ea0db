// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRunID   = "run_id"
	FieldStepID  = "step_id"
	FieldJobID   = "job_id"
	FieldAttempt = "attempt"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldPhase     = "phase"
	FieldMode      = "mode"
	FieldAction    = "action"
	FieldIndex     = "index"

	// Media fields
	FieldClip       = "clip"
	FieldCodec      = "codec"
	FieldResolution = "resolution"
	FieldFPS        = "fps"
	FieldDuration   = "duration_s"

	// Path / URL fields
	FieldPath      = "path"
	FieldURL       = "url"
	FieldFinalPath = "final_path"
	FieldWorkDir   = "work_dir"
)
