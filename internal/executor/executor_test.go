// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/tourcast/internal/timing"
	"github.com/ManuGH/tourcast/internal/tour"
)

// fakeTarget records every call as a short string.
type fakeTarget struct {
	mu       sync.Mutex
	calls    []string
	location string
	title    string
	visible  map[string]bool
	failOn   map[string]error
	// block makes the named call wait for ctx cancellation.
	block string
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{visible: map[string]bool{}, failOn: map[string]error{}}
}

func (f *fakeTarget) record(ctx context.Context, call string) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	err := f.failOn[call]
	block := f.block == call
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (f *fakeTarget) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeTarget) Navigate(ctx context.Context, url string) error {
	if err := f.record(ctx, "navigate "+url); err != nil {
		return err
	}
	f.mu.Lock()
	f.location = url
	f.mu.Unlock()
	return nil
}

func (f *fakeTarget) Location(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.location, nil
}

func (f *fakeTarget) Title(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.title, nil
}

func (f *fakeTarget) Type(ctx context.Context, text string, delay time.Duration) error {
	return f.record(ctx, fmt.Sprintf("type %s @%s", text, delay))
}

func (f *fakeTarget) Press(ctx context.Context, key string) error {
	return f.record(ctx, "press "+key)
}

func (f *fakeTarget) Click(ctx context.Context, selector string) error {
	return f.record(ctx, "click "+selector)
}

func (f *fakeTarget) Visible(ctx context.Context, selector string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible[selector], nil
}

func (f *fakeTarget) WaitFor(ctx context.Context, cond Condition) error {
	return f.record(ctx, fmt.Sprintf("wait %s %s%s", cond.Kind, cond.Selector, cond.State))
}

func (f *fakeTarget) Focus(ctx context.Context, region Region) error {
	return f.record(ctx, "focus "+string(region))
}

func (f *fakeTarget) Hide(ctx context.Context, region Region) error {
	return f.record(ctx, "hide "+string(region))
}

func (f *fakeTarget) Scroll(ctx context.Context, req ScrollRequest) error {
	if req.Absolute {
		return f.record(ctx, fmt.Sprintf("scroll %dpx", req.Pixels))
	}
	return f.record(ctx, "scroll "+req.To)
}

func newExecutor() (*Executor, *StepClock) {
	clock := NewStepClock(time.Unix(0, 0))
	delay := 50
	return New(tour.Settings{TypingDelayMS: &delay}, clock), clock
}

func TestAttempt_RunsActionsInOrder(t *testing.T) {
	exec, clock := newExecutor()
	target := newFakeTarget()
	step := tour.Step{
		ID: "intro",
		Actions: []tour.Action{
			{Kind: tour.ActionNavigate, URL: "http://app.local/"},
			{Kind: tour.ActionWaitForLoad},
			{Kind: tour.ActionDismissPopups},
			{Kind: tour.ActionWaitForSelector, Selector: "#main"},
			{Kind: tour.ActionClickSelector, Selector: "#go"},
			{Kind: tour.ActionTypeText, Text: "hi"},
			{Kind: tour.ActionPause, Duration: 1.5},
			{Kind: tour.ActionCommandPalette, Command: "Reload"},
			{Kind: tour.ActionTerminalType, Text: "ls"},
			{Kind: tour.ActionSelectAllAndDelete},
			{Kind: tour.ActionHideSecondarySidebar},
		},
		Scroll: &tour.Action{To: "bottom", Speed: "slow"},
	}

	require.NoError(t, exec.Attempt(context.Background(), target, step))

	want := []string{
		"navigate http://app.local/",
		"wait load load",
		"hide popups",
		"wait visible #main",
		"click #go",
		"type hi @50ms",
		"press " + KeyCommandPalette,
		"type Reload @50ms",
		"press Enter",
		"focus terminal",
		"type ls @50ms",
		"press Enter",
		"press " + KeySelectAll,
		"press Delete",
		"hide secondary_sidebar",
		"scroll bottom",
	}
	if diff := cmp.Diff(want, target.Calls()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}

	wantSleep := 1500*time.Millisecond + timing.PaletteOpenDelay + timing.TerminalFocusDelay +
		timing.SidebarSettleDelay + timing.ScrollDuration("slow")
	assert.Equal(t, wantSleep, clock.Slept())
}

func TestAttempt_HighlightLines(t *testing.T) {
	exec, _ := newExecutor()
	target := newFakeTarget()
	step := tour.Step{ID: "hl", Actions: []tour.Action{{Kind: tour.ActionHighlightLines, FromLine: 3, ToLine: 4}}}

	require.NoError(t, exec.Attempt(context.Background(), target, step))
	assert.Equal(t, []string{
		"focus editor", "press " + KeyGoToLine, "type 3 @0s", "press Enter",
		"press " + KeyExtendDown, "press " + KeyExtendDown,
	}, target.Calls())
}

func TestAttempt_ScrollPixels(t *testing.T) {
	exec, _ := newExecutor()
	target := newFakeTarget()
	step := tour.Step{ID: "s", Actions: []tour.Action{{Kind: tour.ActionScroll, To: "640"}}}

	require.NoError(t, exec.Attempt(context.Background(), target, step))
	assert.Equal(t, []string{"scroll 640px"}, target.Calls())
}

func TestAttempt_ActionErrorStopsStep(t *testing.T) {
	exec, _ := newExecutor()
	target := newFakeTarget()
	boom := errors.New("no such element")
	target.failOn["click #missing"] = boom
	step := tour.Step{ID: "s1", Actions: []tour.Action{
		{Kind: tour.ActionClickSelector, Selector: "#missing"},
		{Kind: tour.ActionPressKey, Key: "Enter"},
	}}

	err := exec.Attempt(context.Background(), target, step)

	var ae *ActionError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "s1", ae.StepID)
	assert.Equal(t, 0, ae.Index)
	assert.Equal(t, tour.ActionClickSelector, ae.Kind)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"click #missing"}, target.Calls())
}

func TestAttempt_OptionalActionFailureContinues(t *testing.T) {
	exec, _ := newExecutor()
	target := newFakeTarget()
	target.failOn["click #cookie"] = errors.New("not found")
	step := tour.Step{ID: "s1", Actions: []tour.Action{
		{Kind: tour.ActionClickSelector, Selector: "#cookie", Optional: true},
		{Kind: tour.ActionPressKey, Key: "Enter"},
	}}

	require.NoError(t, exec.Attempt(context.Background(), target, step))
	assert.Equal(t, []string{"click #cookie", "press Enter"}, target.Calls())
}

func TestAttempt_ActionTimeout(t *testing.T) {
	exec, _ := newExecutor()
	target := newFakeTarget()
	target.block = "wait visible #never"
	step := tour.Step{ID: "slow", Actions: []tour.Action{
		{Kind: tour.ActionWaitForSelector, Selector: "#never", TimeoutMS: 20},
	}}

	err := exec.Attempt(context.Background(), target, step)

	var te *ActionTimeoutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "slow", te.StepID)
	assert.Equal(t, tour.ActionWaitForSelector, te.Kind)
	assert.Equal(t, "timeout", Outcome(err))
}

func TestAttempt_Assertions(t *testing.T) {
	exec, _ := newExecutor()
	target := newFakeTarget()
	target.title = "Dashboard - App"
	target.visible["#chart"] = true
	step := tour.Step{
		ID:      "dash",
		Actions: []tour.Action{{Kind: tour.ActionNavigate, URL: "http://app.local/dashboard"}},
		Assertions: []tour.Assertion{
			{Kind: tour.AssertURLContains, Value: "/dashboard"},
			{Kind: tour.AssertTitleContains, Value: "Dashboard"},
			{Kind: tour.AssertElementVisible, Value: "#chart"},
		},
	}
	require.NoError(t, exec.Attempt(context.Background(), target, step))

	step.Assertions = append(step.Assertions, tour.Assertion{Kind: tour.AssertURLContains, Value: "/settings"})
	err := exec.Attempt(context.Background(), target, step)

	var af *AssertionFailure
	require.True(t, errors.As(err, &af))
	assert.Equal(t, 3, af.Index)
	assert.Equal(t, "http://app.local/dashboard", af.Got)
	assert.Equal(t, "assertion", Outcome(err))
}

func TestTimeout_Resolution(t *testing.T) {
	exec, _ := newExecutor()
	exec.StepTimeout = 45 * time.Second

	assert.Equal(t, 2*time.Second, exec.Timeout(tour.Action{Kind: tour.ActionClickSelector, TimeoutMS: 2000}))
	assert.Equal(t, 45*time.Second, exec.Timeout(tour.Action{Kind: tour.ActionWaitForSelector}))
	assert.Equal(t, 45*time.Second, exec.Timeout(tour.Action{Kind: tour.ActionNavigate}))
	assert.Equal(t, 45*time.Second, exec.Timeout(tour.Action{Kind: tour.ActionPressKey}))
	// A long pause extends its own timeout.
	assert.Equal(t, 70*time.Second, exec.Timeout(tour.Action{Kind: tour.ActionPause, Duration: 60}))
	long := strings.Repeat("x", 1000)
	assert.Greater(t, exec.Timeout(tour.Action{Kind: tour.ActionTypeText, Text: long}), 50*time.Second)
}

func TestTimeout_StepDefaultOverridesKind(t *testing.T) {
	exec, _ := newExecutor()
	wait := tour.Action{Kind: tour.ActionWaitForSelector, Selector: "#app"}

	exec.StepTimeout = 5 * time.Second
	assert.Equal(t, 5*time.Second, exec.Timeout(wait))
	exec.StepTimeout = 60 * time.Second
	assert.Equal(t, 60*time.Second, exec.Timeout(wait))

	exec.StepTimeout = 0
	assert.Equal(t, 10*time.Second, exec.Timeout(wait), "kind default without a step default")
	assert.Equal(t, DefaultActionTimeout, exec.Timeout(tour.Action{Kind: tour.ActionPressKey}))
}

func TestTimeout_ExplicitIsNeverRaised(t *testing.T) {
	exec, _ := newExecutor()
	exec.StepTimeout = 45 * time.Second
	typing := tour.Action{Kind: tour.ActionTypeText, Text: strings.Repeat("x", 40), TimeoutMS: 500}

	assert.Equal(t, 500*time.Millisecond, exec.Timeout(typing))
	assert.Equal(t, 1500*time.Millisecond, exec.Timeout(tour.Action{Kind: tour.ActionPause, Duration: 30, TimeoutMS: 1500}))
}
