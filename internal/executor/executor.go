// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package executor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/tourcast/internal/log"
	"github.com/ManuGH/tourcast/internal/timing"
	"github.com/ManuGH/tourcast/internal/tour"
)

// DefaultActionTimeout applies when neither the action, the spec settings,
// nor the action kind name one.
const DefaultActionTimeout = 30 * time.Second

// timeoutSlack is added on top of an action's own estimated running time so
// long pauses and typing never trip their timeout.
const timeoutSlack = 10 * time.Second

// kindTimeouts apply only when the spec sets no default_step_timeout.
var kindTimeouts = map[string]time.Duration{
	tour.ActionNavigate:        30 * time.Second,
	tour.ActionWaitForLoad:     30 * time.Second,
	tour.ActionWaitForSelector: 10 * time.Second,
	tour.ActionWaitForHidden:   10 * time.Second,
	tour.ActionClickSelector:   10 * time.Second,
	tour.ActionDismissPopups:   5 * time.Second,
}

// Key chords used by composite actions.
const (
	KeyCommandPalette = "Control+Shift+P"
	KeyGoToLine       = "Control+G"
	KeySelectAll      = "Control+A"
	KeyExtendDown     = "Shift+ArrowDown"
	KeyEnter          = "Enter"
	KeyDelete         = "Delete"
	KeyEnd            = "End"
)

// Executor runs one attempt of a step.
type Executor struct {
	Clock       Clock
	TypingDelay time.Duration
	StepTimeout time.Duration
}

// New builds an executor from the spec settings.
func New(settings tour.Settings, clock Clock) *Executor {
	if clock == nil {
		clock = RealClock{}
	}
	return &Executor{
		Clock:       clock,
		TypingDelay: settings.TypingDelay(),
		StepTimeout: settings.StepTimeout(),
	}
}

// Attempt runs the step's actions in order, then its assertions in order.
// Optional actions that fail are logged and skipped.
func (e *Executor) Attempt(ctx context.Context, target Target, step tour.Step) error {
	logger := log.WithComponentFromContext(ctx, "executor")

	for i, a := range step.AllActions() {
		err := e.runAction(ctx, target, step.ID, i, a)
		if err == nil {
			continue
		}
		if a.Optional && ctx.Err() == nil {
			logger.Warn().Err(err).
				Str(log.FieldEvent, "step.action_skipped").
				Str(log.FieldStepID, step.ID).
				Int(log.FieldIndex, i).
				Str(log.FieldAction, a.Kind).
				Msg("optional action failed, continuing")
			continue
		}
		return err
	}

	for i, as := range step.Assertions {
		if err := e.check(ctx, target, step.ID, i, as); err != nil {
			return err
		}
	}
	return nil
}

// Timeout resolves the timeout for action a. An explicit action timeout is
// used as written. Otherwise the spec's default_step_timeout applies, then
// the kind default, and the result is raised to cover the action's own
// estimated running time.
func (e *Executor) Timeout(a tour.Action) time.Duration {
	if d := a.Timeout(); d > 0 {
		return d
	}
	d := e.StepTimeout
	if d <= 0 {
		d = kindTimeouts[a.Kind]
	}
	if d <= 0 {
		d = DefaultActionTimeout
	}
	if own := timing.EstimateAction(a, e.TypingDelay); own > 0 && d < own+timeoutSlack {
		d = own + timeoutSlack
	}
	return d
}

func (e *Executor) runAction(ctx context.Context, target Target, stepID string, index int, a tour.Action) error {
	actx, cancel := context.WithTimeout(ctx, e.Timeout(a))
	defer cancel()

	err := e.do(actx, target, a)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || actx.Err() != nil {
		return &ActionTimeoutError{StepID: stepID, Index: index, Kind: a.Kind, Err: err}
	}
	return &ActionError{StepID: stepID, Index: index, Kind: a.Kind, Err: err}
}

func (e *Executor) do(ctx context.Context, t Target, a tour.Action) error {
	delay := timing.CharDelay(a, e.TypingDelay)

	switch a.Kind {
	case tour.ActionNavigate:
		return t.Navigate(ctx, a.URL)
	case tour.ActionWaitForLoad:
		state := a.State
		if state == "" {
			state = "load"
		}
		return t.WaitFor(ctx, Condition{Kind: CondLoad, State: state})
	case tour.ActionWaitForSelector:
		return t.WaitFor(ctx, Condition{Kind: CondVisible, Selector: a.Selector})
	case tour.ActionWaitForHidden:
		return t.WaitFor(ctx, Condition{Kind: CondHidden, Selector: a.Selector})
	case tour.ActionDismissPopups:
		return t.Hide(ctx, RegionPopups)
	case tour.ActionPause:
		return e.Clock.Sleep(ctx, a.ExplicitDuration())
	case tour.ActionScroll:
		return e.scroll(ctx, t, a)
	case tour.ActionTypeText:
		return t.Type(ctx, a.Text, delay)
	case tour.ActionPressKey:
		return t.Press(ctx, a.Key)
	case tour.ActionClickSelector:
		return t.Click(ctx, a.Selector)
	case tour.ActionFocusEditor:
		return t.Focus(ctx, RegionEditor)
	case tour.ActionCommandPalette:
		return e.commandPalette(ctx, t, a.Command, delay)
	case tour.ActionTerminalType:
		return e.terminalType(ctx, t, a, delay)
	case tour.ActionSelectAllAndDelete:
		if err := t.Press(ctx, KeySelectAll); err != nil {
			return err
		}
		return t.Press(ctx, KeyDelete)
	case tour.ActionHighlightLines:
		return e.highlightLines(ctx, t, a.FromLine, a.ToLine)
	case tour.ActionHideSecondarySidebar:
		if err := t.Hide(ctx, RegionSecondarySidebar); err != nil {
			return err
		}
		return e.Clock.Sleep(ctx, timing.SidebarSettleDelay)
	default:
		return fmt.Errorf("unknown action %q", a.Kind)
	}
}

func (e *Executor) scroll(ctx context.Context, t Target, a tour.Action) error {
	req := ScrollRequest{To: strings.ToLower(string(a.To)), Duration: timing.ScrollDuration(a.Speed)}
	if px, ok := a.To.Pixels(); ok {
		req.To, req.Pixels, req.Absolute = "", px, true
	} else if req.To == "" {
		req.To = "bottom"
	}
	if err := t.Scroll(ctx, req); err != nil {
		return err
	}
	if err := e.Clock.Sleep(ctx, req.Duration); err != nil {
		return err
	}
	return e.Clock.Sleep(ctx, time.Duration(a.PauseAtBottom*float64(time.Second)))
}

func (e *Executor) commandPalette(ctx context.Context, t Target, command string, delay time.Duration) error {
	if err := t.Press(ctx, KeyCommandPalette); err != nil {
		return err
	}
	if err := e.Clock.Sleep(ctx, timing.PaletteOpenDelay); err != nil {
		return err
	}
	if err := t.Type(ctx, command, delay); err != nil {
		return err
	}
	return t.Press(ctx, KeyEnter)
}

func (e *Executor) terminalType(ctx context.Context, t Target, a tour.Action, delay time.Duration) error {
	if err := t.Focus(ctx, RegionTerminal); err != nil {
		return err
	}
	if err := e.Clock.Sleep(ctx, timing.TerminalFocusDelay); err != nil {
		return err
	}
	if err := t.Type(ctx, a.Text, delay); err != nil {
		return err
	}
	if !a.Enter() {
		return nil
	}
	return t.Press(ctx, KeyEnter)
}

// highlightLines jumps to from and extends the selection down to to.
func (e *Executor) highlightLines(ctx context.Context, t Target, from, to int) error {
	if err := t.Focus(ctx, RegionEditor); err != nil {
		return err
	}
	if err := t.Press(ctx, KeyGoToLine); err != nil {
		return err
	}
	if err := e.Clock.Sleep(ctx, timing.HighlightStepDelay); err != nil {
		return err
	}
	if err := t.Type(ctx, strconv.Itoa(from), 0); err != nil {
		return err
	}
	if err := t.Press(ctx, KeyEnter); err != nil {
		return err
	}
	if err := e.Clock.Sleep(ctx, timing.HighlightStepDelay); err != nil {
		return err
	}
	for range to - from + 1 {
		if err := t.Press(ctx, KeyExtendDown); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) check(ctx context.Context, t Target, stepID string, index int, as tour.Assertion) error {
	fail := &AssertionFailure{StepID: stepID, Index: index, Kind: as.Kind, Value: as.Value}

	switch as.Kind {
	case tour.AssertURLContains:
		got, err := t.Location(ctx)
		if err != nil {
			fail.Err = err
			return fail
		}
		if !strings.Contains(got, as.Value) {
			fail.Got = got
			return fail
		}
	case tour.AssertTitleContains:
		got, err := t.Title(ctx)
		if err != nil {
			fail.Err = err
			return fail
		}
		if !strings.Contains(got, as.Value) {
			fail.Got = got
			return fail
		}
	case tour.AssertElementVisible:
		ok, err := t.Visible(ctx, as.Value)
		if err != nil || !ok {
			fail.Err = err
			return fail
		}
	default:
		fail.Err = fmt.Errorf("unknown assertion %q", as.Kind)
		return fail
	}
	return nil
}
