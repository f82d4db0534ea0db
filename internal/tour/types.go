// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package tour models the declarative recording document: metadata, capture
// settings, output format and the ordered body of steps or segments.
package tour

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Capture topologies.
const (
	ModeIndependent = "independent"
	ModeContinuous  = "continuous"
)

// Spec is an immutable recording document. Body is resolved once at load time.
type Spec struct {
	Meta     Meta
	Settings Settings
	PreSetup []string
	Output   Output
	Slides   *SlideSource
	Body     Body
}

type Meta struct {
	Title                 string  `json:"title" yaml:"title"`
	Description           string  `json:"description,omitempty" yaml:"description,omitempty"`
	TargetDurationSeconds float64 `json:"target_duration_seconds" yaml:"target_duration_seconds"`
	MaxDurationSeconds    float64 `json:"max_duration_seconds" yaml:"max_duration_seconds"`
}

// TargetDuration is the narration budget for the whole run.
func (m Meta) TargetDuration() time.Duration { return seconds(m.TargetDurationSeconds) }

// MaxDuration caps the published output.
func (m Meta) MaxDuration() time.Duration { return seconds(m.MaxDurationSeconds) }

type Viewport struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Settings carries capture and narration parameters. Pointer fields are
// optional in the document and filled by applyDefaults.
type Settings struct {
	Viewport           Viewport `json:"viewport" yaml:"viewport"`
	Voice              string   `json:"voice,omitempty" yaml:"voice,omitempty"`
	SpeechSpeed        float64  `json:"speech_speed,omitempty" yaml:"speech_speed,omitempty"`
	Language           string   `json:"language" yaml:"language"`
	Mode               string   `json:"mode,omitempty" yaml:"mode,omitempty"`
	DefaultStepTimeout float64  `json:"default_step_timeout" yaml:"default_step_timeout"`
	MaxRetriesPerStep  *int     `json:"max_retries_per_step,omitempty" yaml:"max_retries_per_step,omitempty"`
	PaddingSeconds     *float64 `json:"padding_seconds,omitempty" yaml:"padding_seconds,omitempty"`
	LeadInSeconds      *float64 `json:"lead_in_seconds,omitempty" yaml:"lead_in_seconds,omitempty"`
	TypingDelayMS      *int     `json:"typing_delay_ms,omitempty" yaml:"typing_delay_ms,omitempty"`
	Browser            string   `json:"browser,omitempty" yaml:"browser,omitempty"`
}

func (s Settings) MaxRetries() int {
	if s.MaxRetriesPerStep == nil {
		return DefaultMaxRetries
	}
	return *s.MaxRetriesPerStep
}

func (s Settings) Padding() time.Duration {
	if s.PaddingSeconds == nil {
		return seconds(DefaultPaddingSeconds)
	}
	return seconds(*s.PaddingSeconds)
}

func (s Settings) LeadIn() time.Duration {
	if s.LeadInSeconds == nil {
		return seconds(DefaultLeadInSeconds)
	}
	return seconds(*s.LeadInSeconds)
}

func (s Settings) TypingDelay() time.Duration {
	if s.TypingDelayMS == nil {
		return DefaultTypingDelayMS * time.Millisecond
	}
	return time.Duration(*s.TypingDelayMS) * time.Millisecond
}

func (s Settings) StepTimeout() time.Duration { return seconds(s.DefaultStepTimeout) }

// Output defines the published artifact and the run's canonical format.
type Output struct {
	Path         string `json:"path" yaml:"path"`
	VideoCodec   string `json:"video_codec,omitempty" yaml:"video_codec,omitempty"`
	VideoPreset  string `json:"video_preset,omitempty" yaml:"video_preset,omitempty"`
	VideoCRF     *int   `json:"video_crf,omitempty" yaml:"video_crf,omitempty"`
	AudioCodec   string `json:"audio_codec,omitempty" yaml:"audio_codec,omitempty"`
	AudioBitrate string `json:"audio_bitrate,omitempty" yaml:"audio_bitrate,omitempty"`
	SampleRate   int    `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`
	Channels     int    `json:"channels,omitempty" yaml:"channels,omitempty"`
	FPS          int    `json:"fps,omitempty" yaml:"fps,omitempty"`
	PixelFormat  string `json:"pixel_format,omitempty" yaml:"pixel_format,omitempty"`
	Loudnorm     *bool  `json:"loudnorm,omitempty" yaml:"loudnorm,omitempty"`
	IntroClip    string `json:"intro_clip,omitempty" yaml:"intro_clip,omitempty"`
	OutroClip    string `json:"outro_clip,omitempty" yaml:"outro_clip,omitempty"`
}

func (o Output) LoudnormEnabled() bool { return o.Loudnorm == nil || *o.Loudnorm }

// SlideSource points at pre-rendered slide images.
type SlideSource struct {
	Dir string `json:"dir" yaml:"dir"`
	// Pattern is a printf pattern over the 1-based slide number.
	Pattern string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// Path returns the image path for slide n.
func (s SlideSource) Path(n int) string {
	pattern := s.Pattern
	if pattern == "" {
		pattern = DefaultSlidePattern
	}
	return strings.TrimRight(s.Dir, "/") + "/" + fmt.Sprintf(pattern, n)
}

// Kind tags a body item.
type Kind string

const (
	KindDemo   Kind = "demo"
	KindSlides Kind = "slides"
)

// Step is one narrated unit. Kind and Slides are only set for segment bodies.
type Step struct {
	ID         string      `json:"id" yaml:"id"`
	URL        string      `json:"url,omitempty" yaml:"url,omitempty"`
	Narration  string      `json:"narration" yaml:"narration"`
	Actions    []Action    `json:"actions,omitempty" yaml:"actions,omitempty"`
	Assertions []Assertion `json:"assertions,omitempty" yaml:"assertions,omitempty"`
	Scroll     *Action     `json:"scroll,omitempty" yaml:"scroll,omitempty"`
	Zoom       *ZoomHint   `json:"zoom,omitempty" yaml:"zoom,omitempty"`

	Kind   Kind        `json:"-" yaml:"-"`
	Slides *SlideRange `json:"-" yaml:"-"`
}

// AllActions returns the action list with the step-level scroll appended.
func (s Step) AllActions() []Action {
	if s.Scroll == nil {
		return s.Actions
	}
	out := make([]Action, 0, len(s.Actions)+1)
	out = append(out, s.Actions...)
	scroll := *s.Scroll
	scroll.Kind = ActionScroll
	return append(out, scroll)
}

// IsSlides reports whether the step renders slides instead of driving the browser.
func (s Step) IsSlides() bool { return s.Kind == KindSlides }

// Segment is a Step with an explicit kind tag.
type Segment struct {
	Step   `yaml:",inline"`
	Kind   Kind        `json:"type,omitempty" yaml:"type,omitempty"`
	Slides *SlideRange `json:"slides,omitempty" yaml:"slides,omitempty"`
}

// SlideRange selects slides [From, To] shown AdvanceMS apart.
type SlideRange struct {
	Range     [2]int `json:"range" yaml:"range"`
	AdvanceMS int    `json:"advance_interval,omitempty" yaml:"advance_interval,omitempty"`
}

func (r SlideRange) Count() int { return r.Range[1] - r.Range[0] + 1 }

func (r SlideRange) Advance() time.Duration {
	if r.AdvanceMS <= 0 {
		return DefaultSlideAdvance
	}
	return time.Duration(r.AdvanceMS) * time.Millisecond
}

// ZoomHint overrides the virtual camera for one step.
type ZoomHint struct {
	Focus        string   `json:"focus,omitempty" yaml:"focus,omitempty"`
	Z            *float64 `json:"z,omitempty" yaml:"z,omitempty"`
	CX           *float64 `json:"cx,omitempty" yaml:"cx,omitempty"`
	CY           *float64 `json:"cy,omitempty" yaml:"cy,omitempty"`
	TransitionMS *int     `json:"transition_ms,omitempty" yaml:"transition_ms,omitempty"`
}

// Body is the tagged step/segment variant.
type Body interface {
	// Items yields steps in document order.
	Items() []Step
	isBody()
}

type Steps []Step

func (b Steps) Items() []Step {
	out := make([]Step, len(b))
	for i, st := range b {
		st.Kind = KindDemo
		out[i] = st
	}
	return out
}
func (Steps) isBody()         {}

type Segments []Segment

func (b Segments) Items() []Step {
	out := make([]Step, 0, len(b))
	for _, seg := range b {
		st := seg.Step
		st.Kind = seg.Kind
		if st.Kind == "" {
			st.Kind = KindDemo
		}
		st.Slides = seg.Slides
		out = append(out, st)
	}
	return out
}
func (Segments) isBody() {}

// Items yields ordered steps regardless of the body variant.
func (s *Spec) Items() []Step {
	if s == nil || s.Body == nil {
		return nil
	}
	return s.Body.Items()
}

// Action kinds.
const (
	ActionNavigate             = "navigate"
	ActionWaitForLoad          = "wait_for_load"
	ActionDismissPopups        = "dismiss_popups"
	ActionPause                = "pause"
	ActionWaitForSelector      = "wait_for_selector"
	ActionWaitForHidden        = "wait_for_hidden"
	ActionScroll               = "scroll"
	ActionTypeText             = "type_text"
	ActionPressKey             = "press_key"
	ActionClickSelector        = "click_selector"
	ActionFocusEditor          = "focus_editor"
	ActionCommandPalette       = "command_palette"
	ActionTerminalType         = "terminal_type"
	ActionSelectAllAndDelete   = "select_all_and_delete"
	ActionHighlightLines       = "highlight_lines"
	ActionHideSecondarySidebar = "hide_secondary_sidebar"
)

var actionKinds = map[string]struct{}{
	ActionNavigate: {}, ActionWaitForLoad: {}, ActionDismissPopups: {}, ActionPause: {},
	ActionWaitForSelector: {}, ActionWaitForHidden: {}, ActionScroll: {}, ActionTypeText: {},
	ActionPressKey: {}, ActionClickSelector: {}, ActionFocusEditor: {}, ActionCommandPalette: {},
	ActionTerminalType: {}, ActionSelectAllAndDelete: {}, ActionHighlightLines: {},
	ActionHideSecondarySidebar: {},
}

// Action is one literal user operation. Unused parameters stay zero.
type Action struct {
	Kind          string       `json:"type" yaml:"type"`
	URL           string       `json:"url,omitempty" yaml:"url,omitempty"`
	Selector      string       `json:"selector,omitempty" yaml:"selector,omitempty"`
	State         string       `json:"state,omitempty" yaml:"state,omitempty"`
	Text          string       `json:"text,omitempty" yaml:"text,omitempty"`
	Key           string       `json:"key,omitempty" yaml:"key,omitempty"`
	Command       string       `json:"command,omitempty" yaml:"command,omitempty"`
	PressEnter    *bool        `json:"press_enter,omitempty" yaml:"press_enter,omitempty"`
	DelayMS       *int         `json:"delay,omitempty" yaml:"delay,omitempty"`
	To            ScrollTarget `json:"to,omitempty" yaml:"to,omitempty"`
	Speed         string       `json:"speed,omitempty" yaml:"speed,omitempty"`
	PauseAtBottom float64      `json:"pause_at_bottom,omitempty" yaml:"pause_at_bottom,omitempty"`
	FromLine      int          `json:"from_line,omitempty" yaml:"from_line,omitempty"`
	ToLine        int          `json:"to_line,omitempty" yaml:"to_line,omitempty"`
	// Duration is seconds; explicit for pause, optional hint otherwise.
	Duration float64 `json:"duration,omitempty" yaml:"duration,omitempty"`
	// TimeoutMS overrides the kind and step default timeout.
	TimeoutMS int `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// Optional failures are logged and the step continues.
	Optional bool `json:"optional,omitempty" yaml:"optional,omitempty"`
}

func (a Action) ExplicitDuration() time.Duration { return seconds(a.Duration) }

func (a Action) Timeout() time.Duration { return time.Duration(a.TimeoutMS) * time.Millisecond }

// Enter reports whether terminal_type submits the line (default true).
func (a Action) Enter() bool { return a.PressEnter == nil || *a.PressEnter }

// ScrollTarget is "top", "bottom" or an absolute pixel offset.
type ScrollTarget string

func (t *ScrollTarget) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*t = ScrollTarget(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("scroll target must be a string or number: %w", err)
	}
	*t = ScrollTarget(s)
	return nil
}

// Pixels returns the absolute offset; ok is false for top/bottom.
func (t ScrollTarget) Pixels() (int, bool) {
	n, err := strconv.Atoi(string(t))
	return n, err == nil
}

func (t ScrollTarget) valid() bool {
	switch strings.ToLower(string(t)) {
	case "", "top", "bottom":
		return true
	}
	_, ok := t.Pixels()
	return ok
}

// Assertion kinds.
const (
	AssertURLContains    = "url_contains"
	AssertTitleContains  = "title_contains"
	AssertElementVisible = "element_visible"
)

var assertionKinds = map[string]struct{}{
	AssertURLContains: {}, AssertTitleContains: {}, AssertElementVisible: {},
}

type Assertion struct {
	Kind  string `json:"type" yaml:"type"`
	Value string `json:"value" yaml:"value"`
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
