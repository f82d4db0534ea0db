// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package tour

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedFormat is returned for documents that are neither JSON nor YAML.
var ErrUnsupportedFormat = errors.New("unsupported spec format")

// SpecValidationError names the offending field and, where known, the step
// id and action or assertion index.
type SpecValidationError struct {
	Field  string
	StepID string
	Index  int // -1 when not applicable
	Reason string
}

func (e *SpecValidationError) Error() string {
	var b strings.Builder
	b.WriteString("spec validation: ")
	b.WriteString(e.Field)
	if e.StepID != "" {
		fmt.Fprintf(&b, " (step %q", e.StepID)
		if e.Index >= 0 {
			fmt.Fprintf(&b, ", index %d", e.Index)
		}
		b.WriteString(")")
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

func invalid(field, reason string) *SpecValidationError {
	return &SpecValidationError{Field: field, Index: -1, Reason: reason}
}

func invalidStep(field, stepID string, index int, reason string) *SpecValidationError {
	return &SpecValidationError{Field: field, StepID: stepID, Index: index, Reason: reason}
}
