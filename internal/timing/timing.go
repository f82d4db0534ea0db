// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package timing resolves per-step on-screen durations from narration length
// and a static estimate of each step's actions. It is pure: no I/O, no clock.
package timing

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/ManuGH/tourcast/internal/narration"
	"github.com/ManuGH/tourcast/internal/tour"
)

// Fixed costs of composite actions. The executor waits exactly these amounts,
// so estimates and execution agree.
const (
	PaletteOpenDelay   = 500 * time.Millisecond
	TerminalFocusDelay = 300 * time.Millisecond
	HighlightStepDelay = 120 * time.Millisecond
	SidebarSettleDelay = 500 * time.Millisecond
)

// ScrollDuration maps a scroll speed to its animation time.
func ScrollDuration(speed string) time.Duration {
	switch strings.ToLower(speed) {
	case "slow":
		return 1600 * time.Millisecond
	case "fast":
		return 700 * time.Millisecond
	default:
		return 1100 * time.Millisecond
	}
}

// CharDelay is the per-character typing delay for a, falling back to def.
func CharDelay(a tour.Action, def time.Duration) time.Duration {
	if a.DelayMS != nil {
		return time.Duration(*a.DelayMS) * time.Millisecond
	}
	return def
}

// RuneCount counts characters after NFC so "é" typed either way costs one key.
func RuneCount(s string) int {
	return utf8.RuneCountInString(norm.NFC.String(s))
}

// EstimateAction is the static duration of one action.
func EstimateAction(a tour.Action, typingDelay time.Duration) time.Duration {
	var d time.Duration
	switch a.Kind {
	case tour.ActionPause:
		return a.ExplicitDuration()
	case tour.ActionTypeText:
		d = time.Duration(RuneCount(a.Text)) * CharDelay(a, typingDelay)
	case tour.ActionTerminalType:
		d = TerminalFocusDelay + time.Duration(RuneCount(a.Text))*CharDelay(a, typingDelay)
	case tour.ActionCommandPalette:
		d = PaletteOpenDelay + time.Duration(RuneCount(a.Command))*CharDelay(a, typingDelay)
	case tour.ActionScroll:
		d = ScrollDuration(a.Speed) + time.Duration(a.PauseAtBottom*float64(time.Second))
	case tour.ActionHighlightLines:
		d = 2 * HighlightStepDelay
	case tour.ActionHideSecondarySidebar:
		d = SidebarSettleDelay
	}
	// An explicit duration on any other kind is a lower bound hint.
	return max(d, a.ExplicitDuration())
}

// EstimateActions sums the action list in order.
func EstimateActions(actions []tour.Action, typingDelay time.Duration) time.Duration {
	var total time.Duration
	for _, a := range actions {
		total += EstimateAction(a, typingDelay)
	}
	return total
}

// EstimateStep covers slides segments, which show every slide once.
func EstimateStep(st tour.Step, typingDelay time.Duration) time.Duration {
	if st.IsSlides() && st.Slides != nil {
		return time.Duration(st.Slides.Count()) * st.Slides.Advance()
	}
	return EstimateActions(st.AllActions(), typingDelay)
}

// Entry is one step's resolved timing. Narration starts LeadIn after the
// step's video start.
type Entry struct {
	StepID    string
	Narration time.Duration
	Action    time.Duration
	Duration  time.Duration
	LeadIn    time.Duration
}

// Timeline is the ordered resolution of a run.
type Timeline struct {
	Entries        []Entry
	Total          time.Duration
	NarrationTotal time.Duration
}

// Entry looks up a step by id.
func (t Timeline) Entry(stepID string) (Entry, bool) {
	for _, e := range t.Entries {
		if e.StepID == stepID {
			return e, true
		}
	}
	return Entry{}, false
}

// DurationBudgetExceededError reports narration longer than the run budget.
type DurationBudgetExceededError struct {
	Narration time.Duration
	Budget    time.Duration
	// Longest names the step with the most narration, the usual place to cut.
	Longest string
}

func (e *DurationBudgetExceededError) Error() string {
	return fmt.Sprintf("narration %.2fs exceeds target duration %.2fs (longest step %q)",
		e.Narration.Seconds(), e.Budget.Seconds(), e.Longest)
}

// Resolve computes step_duration = max(narration, actions) + padding for each
// step and fails fast when total narration exceeds target.
func Resolve(steps []tour.Step, assets []narration.Asset, settings tour.Settings, target time.Duration) (Timeline, error) {
	byID := make(map[string]narration.Asset, len(assets))
	for _, a := range assets {
		byID[a.StepID] = a
	}

	padding := settings.Padding()
	leadIn := settings.LeadIn()
	typing := settings.TypingDelay()

	tl := Timeline{Entries: make([]Entry, 0, len(steps))}
	var longest Entry
	for _, st := range steps {
		a, ok := byID[st.ID]
		if !ok {
			return Timeline{}, fmt.Errorf("no narration asset for step %q", st.ID)
		}
		e := Entry{
			StepID:    st.ID,
			Narration: a.Duration,
			Action:    EstimateStep(st, typing),
			LeadIn:    leadIn,
		}
		e.Duration = max(e.Narration, e.Action) + padding
		tl.Entries = append(tl.Entries, e)
		tl.Total += e.Duration
		tl.NarrationTotal += e.Narration
		if e.Narration > longest.Narration {
			longest = e
		}
	}

	if target > 0 && tl.NarrationTotal > target {
		return Timeline{}, &DurationBudgetExceededError{
			Narration: tl.NarrationTotal,
			Budget:    target,
			Longest:   longest.StepID,
		}
	}
	return tl, nil
}
