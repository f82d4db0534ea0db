// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package tour

import (
	"fmt"
	"strings"
)

// Validate checks structural invariants and returns the first violation as
// a *SpecValidationError. It performs no I/O.
func Validate(s *Spec) error {
	if s == nil {
		return invalid("spec", "is nil")
	}
	if err := validateHeader(s); err != nil {
		return err
	}

	steps := s.Items()
	seen := make(map[string]struct{}, len(steps))
	for i, st := range steps {
		if strings.TrimSpace(st.ID) == "" {
			return invalidStep(fmt.Sprintf("steps[%d].id", i), "", -1, "is required")
		}
		if _, dup := seen[st.ID]; dup {
			return invalidStep("id", st.ID, -1, "duplicate step id")
		}
		seen[st.ID] = struct{}{}

		if strings.TrimSpace(st.Narration) == "" {
			return invalidStep("narration", st.ID, -1, "is required")
		}
		if err := validateStep(s, st); err != nil {
			return err
		}
	}

	if s.Settings.Mode == ModeContinuous {
		if _, ok := s.Body.(Steps); !ok {
			return invalid("settings.mode", "continuous mode requires a steps body")
		}
		// The session is opened once; any other location would force a reload.
		first := steps[0].URL
		for _, st := range steps[1:] {
			if st.URL != first {
				return invalidStep("url", st.ID, -1,
					fmt.Sprintf("continuous mode requires every step url to equal %q, got %q", first, st.URL))
			}
		}
	}
	return nil
}

func validateHeader(s *Spec) error {
	m := s.Meta
	if strings.TrimSpace(m.Title) == "" {
		return invalid("meta.title", "is required")
	}
	if m.TargetDurationSeconds <= 0 {
		return invalid("meta.target_duration_seconds", "must be > 0")
	}
	if m.MaxDurationSeconds < m.TargetDurationSeconds {
		return invalid("meta.max_duration_seconds", "must be >= target_duration_seconds")
	}

	st := s.Settings
	if st.Viewport.Width <= 0 || st.Viewport.Height <= 0 {
		return invalid("settings.viewport", "width and height must be > 0")
	}
	if st.Viewport.Width%2 != 0 || st.Viewport.Height%2 != 0 {
		return invalid("settings.viewport", "width and height must be even")
	}
	if strings.TrimSpace(st.Language) == "" {
		return invalid("settings.language", "is required")
	}
	switch st.Mode {
	case ModeIndependent, ModeContinuous:
	default:
		return invalid("settings.mode", "must be 'independent' or 'continuous'")
	}
	if st.DefaultStepTimeout <= 0 {
		return invalid("settings.default_step_timeout", "must be > 0")
	}
	if st.MaxRetries() < 0 {
		return invalid("settings.max_retries_per_step", "must be >= 0")
	}
	if st.SpeechSpeed <= 0 {
		return invalid("settings.speech_speed", "must be > 0")
	}
	if st.Padding() < 0 {
		return invalid("settings.padding_seconds", "must be >= 0")
	}
	if st.LeadIn() < 0 || st.LeadIn() > st.Padding() {
		return invalid("settings.lead_in_seconds", "must be within [0, padding_seconds]")
	}
	if st.TypingDelay() < 0 {
		return invalid("settings.typing_delay_ms", "must be >= 0")
	}
	if st.Browser != DefaultBrowser {
		return invalid("settings.browser", "only chromium is supported")
	}

	o := s.Output
	if strings.TrimSpace(o.Path) == "" {
		return invalid("output.path", "is required")
	}
	if o.SampleRate <= 0 {
		return invalid("output.sample_rate", "must be > 0")
	}
	if o.Channels != 1 && o.Channels != 2 {
		return invalid("output.channels", "must be 1 or 2")
	}
	if o.FPS <= 0 || o.FPS > 120 {
		return invalid("output.fps", "must be within (0, 120]")
	}
	if o.VideoCRF != nil && (*o.VideoCRF < 0 || *o.VideoCRF > 51) {
		return invalid("output.video_crf", "must be within [0, 51]")
	}
	return nil
}

func validateStep(s *Spec, st Step) error {
	if st.IsSlides() {
		if st.Slides == nil {
			return invalidStep("slides", st.ID, -1, "slides segment requires a slide range")
		}
		if s.Slides == nil || strings.TrimSpace(s.Slides.Dir) == "" {
			return invalidStep("slides", st.ID, -1, "slides segment requires top-level slides.dir")
		}
		if st.Slides.Range[0] < 1 || st.Slides.Range[1] < st.Slides.Range[0] {
			return invalidStep("slides.range", st.ID, -1, "must be [from, to] with 1 <= from <= to")
		}
		return nil
	}
	if st.Kind != "" && st.Kind != KindDemo {
		return invalidStep("type", st.ID, -1, fmt.Sprintf("unknown segment type %q", st.Kind))
	}
	if strings.TrimSpace(st.URL) == "" {
		return invalidStep("url", st.ID, -1, "is required")
	}

	for i, a := range st.AllActions() {
		if err := validateAction(st.ID, i, a); err != nil {
			return err
		}
	}
	for i, as := range st.Assertions {
		if _, ok := assertionKinds[as.Kind]; !ok {
			return invalidStep("assertions.type", st.ID, i, fmt.Sprintf("unknown assertion type %q", as.Kind))
		}
		if strings.TrimSpace(as.Value) == "" {
			return invalidStep("assertions.value", st.ID, i, "is required")
		}
	}
	if z := st.Zoom; z != nil {
		switch z.Focus {
		case "", "editor", "terminal", "full":
		default:
			return invalidStep("zoom.focus", st.ID, -1, fmt.Sprintf("unknown focus %q", z.Focus))
		}
		if z.Z != nil && (*z.Z < 1 || *z.Z > 3) {
			return invalidStep("zoom.z", st.ID, -1, "must be within [1, 3]")
		}
	}
	return nil
}

func validateAction(stepID string, i int, a Action) error {
	if _, ok := actionKinds[a.Kind]; !ok {
		return invalidStep("actions.type", stepID, i, fmt.Sprintf("unknown action type %q", a.Kind))
	}
	need := func(field, v string) error {
		if strings.TrimSpace(v) == "" {
			return invalidStep("actions."+field, stepID, i, a.Kind+" requires "+field)
		}
		return nil
	}
	if a.Duration < 0 {
		return invalidStep("actions.duration", stepID, i, "must be >= 0")
	}
	if a.TimeoutMS < 0 {
		return invalidStep("actions.timeout", stepID, i, "must be >= 0")
	}

	switch a.Kind {
	case ActionNavigate:
		return need("url", a.URL)
	case ActionWaitForSelector, ActionWaitForHidden, ActionClickSelector:
		if err := need("selector", a.Selector); err != nil {
			return err
		}
		switch a.State {
		case "", "visible", "hidden", "attached", "detached":
		default:
			return invalidStep("actions.state", stepID, i, fmt.Sprintf("unknown state %q", a.State))
		}
	case ActionTypeText, ActionTerminalType:
		return need("text", a.Text)
	case ActionPressKey:
		return need("key", a.Key)
	case ActionScroll:
		if !a.To.valid() {
			return invalidStep("actions.to", stepID, i, "must be top, bottom or a pixel offset")
		}
		switch strings.ToLower(a.Speed) {
		case "", "slow", "medium", "fast":
		default:
			return invalidStep("actions.speed", stepID, i, "must be slow, medium or fast")
		}
	case ActionHighlightLines:
		if a.FromLine < 1 || (a.ToLine != 0 && a.ToLine < a.FromLine) {
			return invalidStep("actions.from_line", stepID, i, "must satisfy 1 <= from_line <= to_line")
		}
	}
	if a.DelayMS != nil && *a.DelayMS < 0 {
		return invalidStep("actions.delay", stepID, i, "must be >= 0")
	}
	return nil
}
