// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package tour

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// document is the on-disk shape; steps and segments are folded into Body.
type document struct {
	Meta     Meta         `json:"meta" yaml:"meta"`
	Settings Settings     `json:"settings" yaml:"settings"`
	PreSetup []string     `json:"pre_setup,omitempty" yaml:"pre_setup,omitempty"`
	Output   Output       `json:"output" yaml:"output"`
	Slides   *SlideSource `json:"slides,omitempty" yaml:"slides,omitempty"`
	Steps    []Step       `json:"steps,omitempty" yaml:"steps,omitempty"`
	Segments []Segment    `json:"segments,omitempty" yaml:"segments,omitempty"`
}

// Load reads, defaults and validates a spec file. The format follows the
// extension: .json, .yaml or .yml.
func Load(path string) (*Spec, error) {
	// #nosec G304 -- spec paths are provided by the operator via CLI
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read spec: %w", err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return Parse(data, FormatJSON)
	case ".yaml", ".yml":
		return Parse(data, FormatYAML)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// Parse decodes strictly (unknown fields are errors), then validates.
func Parse(data []byte, format Format) (*Spec, error) {
	var doc document
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("strict spec parse error: %w", err)
		}
		if dec.More() {
			return nil, errors.New("spec contains trailing content")
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, invalid("spec", "document is empty")
			}
			return nil, fmt.Errorf("strict spec parse error: %w", err)
		}
		if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
			return nil, errors.New("spec contains multiple documents or trailing content")
		}
	default:
		return nil, ErrUnsupportedFormat
	}

	spec, err := doc.resolve()
	if err != nil {
		return nil, err
	}
	applyDefaults(spec)
	if err := Validate(spec); err != nil {
		return nil, err
	}
	return spec, nil
}

func (d *document) resolve() (*Spec, error) {
	s := &Spec{
		Meta:     d.Meta,
		Settings: d.Settings,
		PreSetup: d.PreSetup,
		Output:   d.Output,
		Slides:   d.Slides,
	}
	s.Settings.Mode = strings.ToLower(strings.TrimSpace(s.Settings.Mode))
	switch {
	case len(d.Steps) > 0 && len(d.Segments) > 0:
		return nil, invalid("steps", "steps and segments are mutually exclusive")
	case len(d.Steps) > 0:
		s.Body = Steps(d.Steps)
	case len(d.Segments) > 0:
		s.Body = Segments(d.Segments)
	default:
		return nil, invalid("steps", "one of steps or segments is required")
	}
	return s, nil
}
